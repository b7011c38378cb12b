package main

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/countsheet/internal/grid"
	"github.com/satindergrewal/countsheet/internal/store"
)

const (
	seedMeasures = 16
	seedBPM      = 120
	seedDuration = 32
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo performance",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedNotes writes a fixed number of measures regardless of the track length.
func seedNotes(measures int, bpm, offsetSec float64) []grid.Note {
	beat := 60 / bpm
	notes := make([]grid.Note, 0, measures*grid.CountsPerMeasure)
	for m := 0; m < measures; m++ {
		for c := 1; c <= grid.CountsPerMeasure; c++ {
			notes = append(notes, grid.Note{Cell: grid.Cell{
				MeasureIndex:   m,
				CountInMeasure: c,
				AtSec:          offsetSec + float64(m*grid.CountsPerMeasure)*beat + float64(c-1)*beat,
			}})
		}
	}
	return notes
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	// The demo stores 16 measures on a 32 s track, so half the notes sit past
	// the end of the track. The first rebuild merges them onto the real grid
	// and drops them.
	team := "Sample Squad"
	date := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	p, err := st.SaveWithTrack(ctx,
		store.PerformanceInput{Name: "Demo Routine", Team: &team, EventDate: &date},
		store.TrackInput{FileName: "demo-track.mp3", DurationSec: seedDuration, BPM: seedBPM},
		seedNotes(seedMeasures, seedBPM, 0))
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"performance": p.ID,
		"notes":       len(p.CountNotes),
	}).Infof("Created performance: %s", p.Name)
	return nil
}
