package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS performances (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	team       TEXT,
	event_date TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tracks (
	id             TEXT PRIMARY KEY,
	performance_id TEXT NOT NULL UNIQUE REFERENCES performances(id) ON DELETE CASCADE,
	file_name      TEXT NOT NULL,
	audio_path     TEXT NOT NULL DEFAULT '',
	duration_sec   REAL NOT NULL,
	bpm            REAL NOT NULL,
	offset_sec     REAL NOT NULL,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS count_notes (
	id               TEXT PRIMARY KEY,
	performance_id   TEXT NOT NULL REFERENCES performances(id) ON DELETE CASCADE,
	measure_index    INTEGER NOT NULL,
	count_in_measure INTEGER NOT NULL,
	at_sec           REAL NOT NULL,
	text             TEXT NOT NULL DEFAULT '',
	UNIQUE (performance_id, measure_index, count_in_measure)
);
`

const timeLayout = time.RFC3339Nano

// Store is the SQLite-backed home of performances, tracks and count notes.
// Open it once at startup and Close it at shutdown.
type Store struct {
	db    *sql.DB
	locks *keyedMutex
	now   func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open database"))
	}
	// SQLite allows one writer; a single connection keeps transactions simple.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fault.Wrap(err, fmsg.With("apply schema"))
	}

	log.WithField("path", path).Info("database ready")
	return &Store{
		db:    db,
		locks: newKeyedMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func notFound(what string) error {
	return fault.New(what+" not found",
		ftag.With(ftag.NotFound),
		fmsg.WithDesc("lookup", what+" not found"))
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fault.Wrap(err, fmsg.With("begin transaction"))
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fault.Wrap(err, fmsg.With("commit transaction"))
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- performances ---

// CreatePerformance inserts a performance without a track.
func (s *Store) CreatePerformance(ctx context.Context, in PerformanceInput) (*Performance, error) {
	p := s.newPerformance(in)
	if err := insertPerformance(ctx, s.db, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) newPerformance(in PerformanceInput) *Performance {
	now := s.now()
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &Performance{
		ID:         id,
		Name:       in.Name,
		Team:       in.Team,
		EventDate:  in.EventDate,
		CreatedAt:  now,
		UpdatedAt:  now,
		CountNotes: []CountNote{},
	}
}

func insertPerformance(ctx context.Context, q queryer, p *Performance) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO performances (id, name, team, event_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullString(p.Team), nullTime(p.EventDate), p.CreatedAt.Format(timeLayout), p.UpdatedAt.Format(timeLayout))
	if err != nil {
		return wrapInsert(err, "insert performance")
	}
	return nil
}

// wrapInsert tags unique-constraint failures as conflicts.
func wrapInsert(err error, msg string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fault.Wrap(err, fmsg.WithDesc(msg, "Record already exists"), ftag.With(ftag.AlreadyExists))
	}
	return fault.Wrap(err, fmsg.With(msg))
}

// ListPerformances returns every performance with its track and notes,
// most recently updated first.
func (s *Store) ListPerformances(ctx context.Context) ([]Performance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, team, event_date, created_at, updated_at FROM performances ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("list performances"))
	}
	var perfs []Performance
	for rows.Next() {
		p, err := scanPerformance(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		perfs = append(perfs, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(err, fmsg.With("list performances"))
	}

	// rows must be closed before these queries: the pool holds one connection
	for i := range perfs {
		if err := s.attachDetail(ctx, s.db, &perfs[i]); err != nil {
			return nil, err
		}
	}
	if perfs == nil {
		perfs = []Performance{}
	}
	return perfs, nil
}

// GetPerformance returns a performance with its track and notes ordered by
// (measure, count).
func (s *Store) GetPerformance(ctx context.Context, id string) (*Performance, error) {
	return s.getPerformance(ctx, s.db, id)
}

func (s *Store) getPerformance(ctx context.Context, q queryer, id string) (*Performance, error) {
	p, err := scanPerformance(q.QueryRowContext(ctx,
		`SELECT id, name, team, event_date, created_at, updated_at FROM performances WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := s.attachDetail(ctx, q, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) attachDetail(ctx context.Context, q queryer, p *Performance) error {
	t, err := getTrack(ctx, q, p.ID)
	if err != nil && ftag.Get(err) != ftag.NotFound {
		return err
	}
	p.Track = t

	notes, err := listNotes(ctx, q, p.ID)
	if err != nil {
		return err
	}
	p.CountNotes = notes
	return nil
}

// UpdatePerformance changes the metadata fields that are set in u.
func (s *Store) UpdatePerformance(ctx context.Context, id string, u PerformanceUpdate) (*Performance, error) {
	var out *Performance
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getPerformance(ctx, tx, id)
		if err != nil {
			return err
		}
		if u.Name != nil {
			p.Name = *u.Name
		}
		if u.Team != nil {
			p.Team = u.Team
		}
		if u.EventDate != nil {
			p.EventDate = u.EventDate
		}
		p.UpdatedAt = s.now()

		if _, err := tx.ExecContext(ctx,
			`UPDATE performances SET name = ?, team = ?, event_date = ?, updated_at = ? WHERE id = ?`,
			p.Name, nullString(p.Team), nullTime(p.EventDate), p.UpdatedAt.Format(timeLayout), id); err != nil {
			return fault.Wrap(err, fmsg.With("update performance"))
		}
		out = p
		return nil
	})
	return out, err
}

// DeletePerformance removes a performance with its track and notes.
func (s *Store) DeletePerformance(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM performances WHERE id = ?`, id)
	if err != nil {
		return fault.Wrap(err, fmsg.With("delete performance"))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("Performance")
	}
	log.WithField("performance", id).Info("performance deleted")
	return nil
}

func (s *Store) touch(ctx context.Context, q queryer, id string) error {
	_, err := q.ExecContext(ctx, `UPDATE performances SET updated_at = ? WHERE id = ?`, s.now().Format(timeLayout), id)
	if err != nil {
		return fault.Wrap(err, fmsg.With("touch performance"))
	}
	return nil
}

// --- scanning ---

type scanner interface {
	Scan(dest ...any) error
}

func scanPerformance(row scanner) (*Performance, error) {
	var (
		p                Performance
		team, eventDate  sql.NullString
		created, updated string
	)
	if err := row.Scan(&p.ID, &p.Name, &team, &eventDate, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Performance")
		}
		return nil, fault.Wrap(err, fmsg.With("scan performance"))
	}
	if team.Valid {
		p.Team = &team.String
	}
	if eventDate.Valid {
		if t, err := time.Parse(timeLayout, eventDate.String); err == nil {
			p.EventDate = &t
		}
	}
	p.CreatedAt, _ = time.Parse(timeLayout, created)
	p.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}
