package api

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/satindergrewal/countsheet/internal/grid"
	"github.com/satindergrewal/countsheet/internal/store"
	"github.com/satindergrewal/countsheet/internal/tempo"
)

// performanceBody is the JSON shape of performance metadata.
type performanceBody struct {
	ID        string  `json:"id,omitempty"`
	Name      *string `json:"name"`
	Team      *string `json:"team"`
	EventDate *string `json:"eventDate"`
}

type trackBody struct {
	PerformanceID string  `json:"performanceId"`
	FileName      string  `json:"fileName"`
	DurationSec   float64 `json:"durationSec"`
	BPM           float64 `json:"bpm"`
	OffsetSec     float64 `json:"offsetSec"`
}

type noteBody struct {
	MeasureIndex   int     `json:"measureIndex"`
	CountInMeasure int     `json:"countInMeasure"`
	AtSec          float64 `json:"atSec"`
	Text           string  `json:"text"`
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func validateBPM(bpm float64) error {
	if !finite(bpm) || !tempo.Valid(bpm) {
		return badRequest("bpm must be between 40 and 240")
	}
	return nil
}

func validateOffset(offset float64) error {
	if !finite(offset) {
		return badRequest("offsetSec must be a finite number")
	}
	return nil
}

func parseEventDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, badRequest("eventDate must be an RFC 3339 timestamp")
	}
	return &t, nil
}

func newPerformanceInput(b performanceBody) (store.PerformanceInput, error) {
	if b.Name == nil || strings.TrimSpace(*b.Name) == "" {
		return store.PerformanceInput{}, badRequest("name is required")
	}
	date, err := parseEventDate(b.EventDate)
	if err != nil {
		return store.PerformanceInput{}, err
	}
	return store.PerformanceInput{
		ID:        b.ID,
		Name:      strings.TrimSpace(*b.Name),
		Team:      b.Team,
		EventDate: date,
	}, nil
}

func newPerformanceUpdate(b performanceBody) (store.PerformanceUpdate, error) {
	var u store.PerformanceUpdate
	if b.Name != nil {
		name := strings.TrimSpace(*b.Name)
		if name == "" {
			return u, badRequest("name must not be empty")
		}
		u.Name = &name
	}
	u.Team = b.Team
	date, err := parseEventDate(b.EventDate)
	if err != nil {
		return u, err
	}
	u.EventDate = date
	return u, nil
}

func newTrackInput(b trackBody) (store.TrackInput, error) {
	if !finite(b.DurationSec) || b.DurationSec <= 0 {
		return store.TrackInput{}, badRequest("durationSec must be greater than 0")
	}
	if err := validateBPM(b.BPM); err != nil {
		return store.TrackInput{}, err
	}
	if err := validateOffset(b.OffsetSec); err != nil {
		return store.TrackInput{}, err
	}
	return store.TrackInput{
		FileName:    b.FileName,
		DurationSec: b.DurationSec,
		BPM:         b.BPM,
		OffsetSec:   b.OffsetSec,
	}, nil
}

func newNotes(bodies []noteBody) ([]grid.Note, error) {
	notes := make([]grid.Note, len(bodies))
	for i, b := range bodies {
		if b.MeasureIndex < 0 {
			return nil, badRequest("measureIndex must be 0 or greater")
		}
		if b.CountInMeasure < 1 || b.CountInMeasure > grid.CountsPerMeasure {
			return nil, badRequest("countInMeasure must be between 1 and 8")
		}
		if !finite(b.AtSec) {
			return nil, badRequest("atSec must be a finite number")
		}
		notes[i] = grid.Note{
			Cell: grid.Cell{MeasureIndex: b.MeasureIndex, CountInMeasure: b.CountInMeasure, AtSec: b.AtSec},
			Text: b.Text,
		}
	}
	return notes, nil
}

// parseFormFloat reads an optional numeric form field.
func parseFormFloat(v, name string) (*float64, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || !finite(f) {
		return nil, badRequest(name + " must be a number")
	}
	return &f, nil
}
