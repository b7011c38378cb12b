package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/countsheet/internal/audio"
	"github.com/satindergrewal/countsheet/internal/grid"
)

var bpmJSON bool

var bpmCmd = &cobra.Command{
	Use:   "bpm FILE",
	Short: "Decode an audio file and estimate its tempo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := audio.Analyze(args[0])
		if err != nil {
			return err
		}
		if bpmJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(a)
		}
		fmt.Printf("File:     %s\n", args[0])
		fmt.Printf("Duration: %s (%.3fs @ %d Hz)\n", grid.FormatDuration(a.DurationSec), a.DurationSec, a.SampleRate)
		fmt.Printf("BPM:      %d\n", a.BPM)
		fmt.Printf("Grid:     %d measures, %d counts\n", a.Measures, a.TotalCounts)
		return nil
	},
}

func init() {
	bpmCmd.Flags().BoolVar(&bpmJSON, "json", false, "print the analysis as JSON")
	rootCmd.AddCommand(bpmCmd)
}
