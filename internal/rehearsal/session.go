// Package rehearsal drives the rehearsal player: it loads a performance's
// track into the audio pipeline and follows the active count as it plays.
package rehearsal

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	log "github.com/sirupsen/logrus"

	"github.com/satindergrewal/countsheet/internal/audio"
	"github.com/satindergrewal/countsheet/internal/grid"
	"github.com/satindergrewal/countsheet/internal/store"
	"github.com/satindergrewal/countsheet/internal/stream"
)

// CueBuffer is the per-listener queue of cue messages.
const CueBuffer = 64

// DefaultPoll is how often Run samples the playback position.
const DefaultPoll = 10 * time.Millisecond

// Player is the part of the audio pipeline the session drives.
type Player interface {
	Load(t audio.TrackInfo, startSec float64)
	Stop()
	Playing() bool
	Status() (track audio.TrackInfo, position, duration time.Duration)
}

// Loader fetches performances with their track and notes.
type Loader interface {
	GetPerformance(ctx context.Context, id string) (*store.Performance, error)
}

// Status is the rehearsal state. It is also the JSON cue pushed to listeners.
type Status struct {
	PerformanceID string     `json:"performanceId,omitempty"`
	Playing       bool       `json:"playing"`
	PositionSec   float64    `json:"positionSec"`
	DurationSec   float64    `json:"durationSec"`
	Index         int        `json:"index"`
	Cell          *grid.Cell `json:"cell"`
	Text          string     `json:"text"`
}

// Session follows one performance at a time.
type Session struct {
	player Player
	perfs  Loader
	cues   *stream.Fanout[[]byte]
	poll   time.Duration

	mu     sync.RWMutex
	perfID string
	notes  []grid.Note
	cells  []grid.Cell
	last   Status
}

// NewSession creates a session over player, loading performances from perfs.
func NewSession(player Player, perfs Loader) *Session {
	return &Session{
		player: player,
		perfs:  perfs,
		cues:   stream.NewFanout[[]byte](CueBuffer),
		poll:   DefaultPoll,
		last:   Status{Index: -1},
	}
}

// Cues returns the fan-out carrying JSON-encoded Status messages whenever the
// active count or the playing state changes.
func (s *Session) Cues() *stream.Fanout[[]byte] {
	return s.cues
}

// Start loads the performance and plays its track from fromSec.
func (s *Session) Start(ctx context.Context, performanceID string, fromSec float64) (Status, error) {
	if math.IsNaN(fromSec) || math.IsInf(fromSec, 0) || fromSec < 0 {
		return Status{}, fault.New("invalid start position",
			ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("rehearsal start", "fromSec must be a non-negative number"))
	}

	p, err := s.perfs.GetPerformance(ctx, performanceID)
	if err != nil {
		return Status{}, fault.Wrap(err, fmsg.With("rehearsal start"))
	}
	if p.Track == nil {
		return Status{}, fault.New("no track",
			ftag.With(ftag.NotFound),
			fmsg.WithDesc("rehearsal start", "Track not found"))
	}
	if !p.Track.HasAudio() {
		return Status{}, fault.New("no audio",
			ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("rehearsal start", "Performance has no uploaded audio"))
	}

	s.setPerformance(p)
	s.player.Load(audio.TrackInfo{
		ID:            p.Track.ID,
		PerformanceID: p.ID,
		Path:          p.Track.AudioPath,
		Name:          p.Track.FileName,
	}, fromSec)

	log.WithFields(log.Fields{
		"performance": p.ID,
		"from":        fromSec,
	}).Info("rehearsal started")

	st := s.statusAt(fromSec, false, p.Track.DurationSec)
	return st, nil
}

// Stop fades out the current playback.
func (s *Session) Stop() {
	s.player.Stop()
}

// Refresh reloads the grid and notes if performanceID is the one being
// rehearsed. Call it after edits so cues carry the new timing.
func (s *Session) Refresh(ctx context.Context, performanceID string) error {
	s.mu.RLock()
	current := s.perfID
	s.mu.RUnlock()
	if current == "" || current != performanceID {
		return nil
	}

	p, err := s.perfs.GetPerformance(ctx, performanceID)
	if err != nil {
		return fault.Wrap(err, fmsg.With("rehearsal refresh"))
	}
	s.setPerformance(p)
	return nil
}

// Forget drops the rehearsed performance if it is performanceID, stopping
// playback. Used when a performance is deleted.
func (s *Session) Forget(performanceID string) {
	s.mu.Lock()
	match := s.perfID == performanceID
	if match {
		s.perfID, s.notes, s.cells = "", nil, nil
		s.last = Status{Index: -1}
	}
	s.mu.Unlock()
	if match {
		s.player.Stop()
	}
}

func (s *Session) setPerformance(p *store.Performance) {
	notes := store.Notes(p.CountNotes)
	cells := make([]grid.Cell, len(notes))
	for i, n := range notes {
		cells[i] = n.Cell
	}

	s.mu.Lock()
	s.perfID = p.ID
	s.notes = notes
	s.cells = cells
	s.mu.Unlock()
}

// Status reports the current rehearsal state.
func (s *Session) Status() Status {
	track, pos, dur := s.player.Status()

	s.mu.RLock()
	current := s.perfID
	s.mu.RUnlock()

	if current == "" || track.PerformanceID != current {
		return Status{PerformanceID: current, Index: -1}
	}
	return s.statusAt(pos.Seconds(), s.player.Playing(), dur.Seconds())
}

func (s *Session) statusAt(positionSec float64, playing bool, durationSec float64) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		PerformanceID: s.perfID,
		Playing:       playing,
		PositionSec:   positionSec,
		DurationSec:   durationSec,
		Index:         grid.NearestCountAt(positionSec, s.cells),
	}
	if st.Index >= 0 {
		cell := s.cells[st.Index]
		st.Cell = &cell
		st.Text = s.notes[st.Index].Text
	}
	return st
}

// Run samples playback and publishes a cue on every count change. Blocks
// until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Session) tick() {
	st := s.Status()

	s.mu.Lock()
	changed := st.PerformanceID != s.last.PerformanceID ||
		st.Index != s.last.Index ||
		st.Playing != s.last.Playing
	s.last = st
	s.mu.Unlock()

	if !changed || st.PerformanceID == "" {
		return
	}

	msg, err := json.Marshal(st)
	if err != nil {
		log.Printf("Cue encode error: %v", err)
		return
	}
	s.cues.Publish(msg)
}
