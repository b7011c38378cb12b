package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/countsheet/internal/grid"
)

func invalid(msg string) error {
	return fault.New(msg, ftag.With(ftag.InvalidArgument), fmsg.WithDesc("validate", msg))
}

func validParams(bpm, offsetSec float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return invalid("bpm must be a positive number")
	}
	if math.IsNaN(offsetSec) || math.IsInf(offsetSec, 0) {
		return invalid("offsetSec must be a finite number")
	}
	return nil
}

// SaveWithTrack upserts a performance and replaces its track and notes in
// one transaction. When notes is empty the grid is computed from the track
// and every count starts with empty text.
func (s *Store) SaveWithTrack(ctx context.Context, in PerformanceInput, t TrackInput, notes []grid.Note) (*Performance, error) {
	if err := validParams(t.BPM, t.OffsetSec); err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		notes = grid.EmptyNotes(grid.Compute(t.DurationSec, t.BPM, t.OffsetSec))
	}

	p := s.newPerformance(in)
	unlock := s.locks.Lock(p.ID)
	defer unlock()

	var out *Performance
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO performances (id, name, team, event_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, team = excluded.team,
			   event_date = excluded.event_date, updated_at = excluded.updated_at`,
			p.ID, p.Name, nullString(p.Team), nullTime(p.EventDate),
			p.CreatedAt.Format(timeLayout), p.UpdatedAt.Format(timeLayout)); err != nil {
			return fault.Wrap(err, fmsg.With("upsert performance"))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE performance_id = ?`, p.ID); err != nil {
			return fault.Wrap(err, fmsg.With("delete track"))
		}
		if _, err := s.insertTrack(ctx, tx, p.ID, t); err != nil {
			return err
		}
		if err := replaceNotes(ctx, tx, p.ID, notes); err != nil {
			return err
		}
		var err error
		out, err = s.getPerformance(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"performance": out.ID,
		"bpm":         t.BPM,
		"counts":      len(out.CountNotes),
	}).Info("performance saved with track")
	return out, nil
}

// ReplaceTrack attaches t to the performance, replacing any existing track.
// Notes are merged onto the new grid so text at surviving positions is kept.
func (s *Store) ReplaceTrack(ctx context.Context, performanceID string, t TrackInput) (*Performance, error) {
	if err := validParams(t.BPM, t.OffsetSec); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(performanceID)
	defer unlock()

	var out *Performance
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.getPerformance(ctx, tx, performanceID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE performance_id = ?`, performanceID); err != nil {
			return fault.Wrap(err, fmsg.With("delete track"))
		}
		track, err := s.insertTrack(ctx, tx, performanceID, t)
		if err != nil {
			return err
		}
		merged := grid.Merge(track.Cells(), Notes(existing.CountNotes))
		if err := replaceNotes(ctx, tx, performanceID, merged); err != nil {
			return err
		}
		if err := s.touch(ctx, tx, performanceID); err != nil {
			return err
		}
		out, err = s.getPerformance(ctx, tx, performanceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RebuildGrid recomputes the grid with the given BPM and offset (nil keeps
// the current value) and replaces the notes with the merged set, all in one
// transaction. Rebuilds of one performance are serialized.
func (s *Store) RebuildGrid(ctx context.Context, performanceID string, bpm, offsetSec *float64) (*Performance, error) {
	unlock := s.locks.Lock(performanceID)
	defer unlock()

	var out *Performance
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getPerformance(ctx, tx, performanceID)
		if err != nil {
			return err
		}
		if p.Track == nil {
			return notFound("Track")
		}

		t := *p.Track
		if bpm != nil {
			t.BPM = *bpm
		}
		if offsetSec != nil {
			t.OffsetSec = *offsetSec
		}
		if err := validParams(t.BPM, t.OffsetSec); err != nil {
			return err
		}
		t.UpdatedAt = s.now()

		if _, err := tx.ExecContext(ctx,
			`UPDATE tracks SET bpm = ?, offset_sec = ?, updated_at = ? WHERE id = ?`,
			t.BPM, t.OffsetSec, t.UpdatedAt.Format(timeLayout), t.ID); err != nil {
			return fault.Wrap(err, fmsg.With("update track"))
		}

		merged := grid.Merge(t.Cells(), Notes(p.CountNotes))
		if err := replaceNotes(ctx, tx, performanceID, merged); err != nil {
			return err
		}
		if err := s.touch(ctx, tx, performanceID); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"performance": performanceID,
			"bpm":         t.BPM,
			"offset":      t.OffsetSec,
			"counts":      len(merged),
		}).Info("grid rebuilt")

		out, err = s.getPerformance(ctx, tx, performanceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateNoteText sets the text of one count note of a performance.
func (s *Store) UpdateNoteText(ctx context.Context, performanceID, noteID, text string) (*CountNote, error) {
	var out *CountNote
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := getNote(ctx, tx, noteID)
		if err != nil {
			return err
		}
		if performanceID != "" && n.PerformanceID != performanceID {
			return notFound("Note")
		}
		if _, err := tx.ExecContext(ctx, `UPDATE count_notes SET text = ? WHERE id = ?`, text, noteID); err != nil {
			return fault.Wrap(err, fmsg.With("update note"))
		}
		if err := s.touch(ctx, tx, n.PerformanceID); err != nil {
			return err
		}
		n.Text = text
		out = n
		return nil
	})
	return out, err
}

// --- tracks ---

func (s *Store) insertTrack(ctx context.Context, q queryer, performanceID string, in TrackInput) (*Track, error) {
	now := s.now()
	t := &Track{
		ID:            uuid.NewString(),
		PerformanceID: performanceID,
		FileName:      in.FileName,
		AudioPath:     in.AudioPath,
		DurationSec:   in.DurationSec,
		BPM:           in.BPM,
		OffsetSec:     in.OffsetSec,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO tracks (id, performance_id, file_name, audio_path, duration_sec, bpm, offset_sec, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PerformanceID, t.FileName, t.AudioPath, t.DurationSec, t.BPM, t.OffsetSec,
		now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("insert track"))
	}
	return t, nil
}

func getTrack(ctx context.Context, q queryer, performanceID string) (*Track, error) {
	var (
		t                Track
		created, updated string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, performance_id, file_name, audio_path, duration_sec, bpm, offset_sec, created_at, updated_at
		 FROM tracks WHERE performance_id = ?`, performanceID).
		Scan(&t.ID, &t.PerformanceID, &t.FileName, &t.AudioPath, &t.DurationSec, &t.BPM, &t.OffsetSec, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Track")
		}
		return nil, fault.Wrap(err, fmsg.With("get track"))
	}
	t.CreatedAt, _ = time.Parse(timeLayout, created)
	t.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &t, nil
}

// --- notes ---

func listNotes(ctx context.Context, q queryer, performanceID string) ([]CountNote, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, performance_id, measure_index, count_in_measure, at_sec, text
		 FROM count_notes WHERE performance_id = ?
		 ORDER BY measure_index, count_in_measure`, performanceID)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("list notes"))
	}
	defer rows.Close()

	notes := []CountNote{}
	for rows.Next() {
		var n CountNote
		if err := rows.Scan(&n.ID, &n.PerformanceID, &n.MeasureIndex, &n.CountInMeasure, &n.AtSec, &n.Text); err != nil {
			return nil, fault.Wrap(err, fmsg.With("scan note"))
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(err, fmsg.With("list notes"))
	}
	return notes, nil
}

func getNote(ctx context.Context, q queryer, noteID string) (*CountNote, error) {
	var n CountNote
	err := q.QueryRowContext(ctx,
		`SELECT id, performance_id, measure_index, count_in_measure, at_sec, text FROM count_notes WHERE id = ?`, noteID).
		Scan(&n.ID, &n.PerformanceID, &n.MeasureIndex, &n.CountInMeasure, &n.AtSec, &n.Text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Note")
		}
		return nil, fault.Wrap(err, fmsg.With("get note"))
	}
	return &n, nil
}

func insertNotes(ctx context.Context, q queryer, performanceID string, notes []grid.Note) ([]CountNote, error) {
	out := make([]CountNote, 0, len(notes))
	for _, n := range notes {
		rec := CountNote{
			ID:             uuid.NewString(),
			PerformanceID:  performanceID,
			MeasureIndex:   n.MeasureIndex,
			CountInMeasure: n.CountInMeasure,
			AtSec:          n.AtSec,
			Text:           n.Text,
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO count_notes (id, performance_id, measure_index, count_in_measure, at_sec, text) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.PerformanceID, rec.MeasureIndex, rec.CountInMeasure, rec.AtSec, rec.Text); err != nil {
			return nil, wrapInsert(err, "insert note")
		}
		out = append(out, rec)
	}
	return out, nil
}

func replaceNotes(ctx context.Context, q queryer, performanceID string, notes []grid.Note) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM count_notes WHERE performance_id = ?`, performanceID); err != nil {
		return fault.Wrap(err, fmsg.With("delete notes"))
	}
	_, err := insertNotes(ctx, q, performanceID, notes)
	return err
}
