package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/countsheet/internal/grid"
	"github.com/satindergrewal/countsheet/internal/store"
	"github.com/satindergrewal/countsheet/internal/tui"
)

var rehearseCmd = &cobra.Command{
	Use:   "rehearse ID",
	Short: "Count along with a performance in the terminal",
	Long: `Start a terminal count-along view for a performance. The playhead runs on
the wall clock; tap t on the beat and press enter to rebuild the grid at the
tapped tempo, keeping every note that still has a count.`,
	Args: cobra.ExactArgs(1),
	RunE: runRehearse,
}

func init() {
	rootCmd.AddCommand(rehearseCmd)
}

func runRehearse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	id := args[0]
	p, err := st.GetPerformance(ctx, id)
	if err != nil {
		return err
	}
	if p.Track == nil {
		return fmt.Errorf("performance %q has no track yet", p.Name)
	}

	m := tui.New(tui.Options{
		Name:        p.Name,
		DurationSec: p.Track.DurationSec,
		BPM:         p.Track.BPM,
		OffsetSec:   p.Track.OffsetSec,
		Notes:       store.Notes(p.CountNotes),
		Apply: func(bpm float64) ([]grid.Note, error) {
			rebuilt, err := st.RebuildGrid(ctx, id, &bpm, nil)
			if err != nil {
				return nil, err
			}
			return store.Notes(rebuilt.CountNotes), nil
		},
	})

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
