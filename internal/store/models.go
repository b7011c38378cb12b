package store

import (
	"time"

	"github.com/satindergrewal/countsheet/internal/grid"
)

// Performance is a routine being choreographed. Track and CountNotes are
// filled by the detail queries.
type Performance struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Team       *string     `json:"team"`
	EventDate  *time.Time  `json:"eventDate"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	Track      *Track      `json:"track"`
	CountNotes []CountNote `json:"countNotes"`
}

// Track is the audio a performance is counted against.
type Track struct {
	ID            string    `json:"id"`
	PerformanceID string    `json:"performanceId"`
	FileName      string    `json:"fileName"`
	AudioPath     string    `json:"-"`
	DurationSec   float64   `json:"durationSec"`
	BPM           float64   `json:"bpm"`
	OffsetSec     float64   `json:"offsetSec"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasAudio reports whether an uploaded audio file is stored for the track.
func (t *Track) HasAudio() bool {
	return t != nil && t.AudioPath != ""
}

// Cells recomputes the grid for the track's current parameters.
func (t *Track) Cells() []grid.Cell {
	return grid.Compute(t.DurationSec, t.BPM, t.OffsetSec)
}

// CountNote is the persisted annotation of one count.
type CountNote struct {
	ID             string  `json:"id"`
	PerformanceID  string  `json:"performanceId"`
	MeasureIndex   int     `json:"measureIndex"`
	CountInMeasure int     `json:"countInMeasure"`
	AtSec          float64 `json:"atSec"`
	Text           string  `json:"text"`
}

// Note converts the record to its grid form.
func (n CountNote) Note() grid.Note {
	return grid.Note{
		Cell: grid.Cell{MeasureIndex: n.MeasureIndex, CountInMeasure: n.CountInMeasure, AtSec: n.AtSec},
		Text: n.Text,
	}
}

// Notes converts records to grid notes, preserving order.
func Notes(records []CountNote) []grid.Note {
	notes := make([]grid.Note, len(records))
	for i, r := range records {
		notes[i] = r.Note()
	}
	return notes
}

// PerformanceInput creates a performance. An empty ID gets a fresh UUID.
type PerformanceInput struct {
	ID        string
	Name      string
	Team      *string
	EventDate *time.Time
}

// PerformanceUpdate changes metadata; nil fields are left as they are.
type PerformanceUpdate struct {
	Name      *string
	Team      *string
	EventDate *time.Time
}

// TrackInput describes a track to attach to a performance.
type TrackInput struct {
	FileName    string
	AudioPath   string
	DurationSec float64
	BPM         float64
	OffsetSec   float64
}
