package export

import (
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/satindergrewal/countsheet/internal/grid"
)

const (
	ticksPerQuarterNote = 960

	// General MIDI percussion lives on channel 10.
	clickChannel  = 9
	accentKey     = 76 // high wood block
	clickKey      = 77 // low wood block
	accentVel     = 120
	clickVel      = 90
	clickDuration = ticksPerQuarterNote / 4
)

// MIDI writes a Standard MIDI File click track of the grid: a tempo track
// followed by one percussion track with a quarter-note click per count,
// accented on count 1. Cells before zero are skipped.
func MIDI(w io.Writer, bpm float64, cells []grid.Cell) error {
	sm, err := buildSMF(bpm, cells)
	if err != nil {
		return err
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("error writing MIDI file: %w", err)
	}
	return nil
}

func buildSMF(bpm float64, cells []grid.Cell) (*smf.SMF, error) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return nil, fmt.Errorf("invalid bpm %v", bpm)
	}

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticksPerQuarterNote)

	// Track 0: tempo
	var track0 smf.Track
	track0.Add(0, smf.MetaMeter(4, 4))
	track0.Add(0, smf.MetaTempo(bpm))
	track0.Close(0)
	if err := sm.Add(track0); err != nil {
		return nil, fmt.Errorf("error adding tempo track: %w", err)
	}

	var click smf.Track
	var lastTick uint32
	for _, c := range cells {
		if c.AtSec < 0 {
			continue
		}
		pos := secondsToTicks(c.AtSec, bpm)
		if pos < lastTick {
			pos = lastTick
		}
		key, vel := uint8(clickKey), uint8(clickVel)
		if c.CountInMeasure == 1 {
			key, vel = accentKey, accentVel
		}
		click.Add(pos-lastTick, midi.NoteOn(clickChannel, key, vel))
		click.Add(clickDuration, midi.NoteOff(clickChannel, key))
		lastTick = pos + clickDuration
	}
	click.Close(0)
	if err := sm.Add(click); err != nil {
		return nil, fmt.Errorf("error adding click track: %w", err)
	}
	return sm, nil
}

// secondsToTicks converts a time at constant tempo to an absolute tick.
func secondsToTicks(sec, bpm float64) uint32 {
	return uint32(math.Round(sec * bpm / 60 * ticksPerQuarterNote))
}
