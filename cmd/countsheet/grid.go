package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/countsheet/internal/grid"
	"github.com/satindergrewal/countsheet/internal/tempo"
)

var gridFlags struct {
	duration float64
	bpm      float64
	offset   float64
	json     bool
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Print the 8-count grid for a duration, tempo and offset",
	Example: `  countsheet grid --duration 32 --bpm 120
  countsheet grid --duration 95.5 --bpm 144 --offset 0.35 --json`,
	Args: cobra.NoArgs,
	RunE: runGrid,
}

func init() {
	f := gridCmd.Flags()
	f.Float64Var(&gridFlags.duration, "duration", 0, "track duration in seconds")
	f.Float64Var(&gridFlags.bpm, "bpm", tempo.DefaultBPM, "tempo in beats per minute")
	f.Float64Var(&gridFlags.offset, "offset", 0, "seconds from track start to count 1")
	f.BoolVar(&gridFlags.json, "json", false, "print the cells as JSON")
	gridCmd.MarkFlagRequired("duration")
	rootCmd.AddCommand(gridCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	accentStyle = cellStyle.Foreground(lipgloss.Color("#FFD700"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

func runGrid(cmd *cobra.Command, args []string) error {
	if gridFlags.duration <= 0 {
		return fmt.Errorf("--duration must be greater than 0")
	}
	if !tempo.Valid(gridFlags.bpm) {
		return fmt.Errorf("--bpm must be between %d and %d", tempo.MinBPM, tempo.MaxBPM)
	}

	cells := grid.Compute(gridFlags.duration, gridFlags.bpm, gridFlags.offset)
	if gridFlags.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cells)
	}

	fmt.Println(renderGrid(cells))
	measures, total := grid.CountsFor(gridFlags.duration, gridFlags.bpm)
	fmt.Printf("%d measures, %d counts on the grid (%d before trimming to %s)\n",
		measures, len(cells), total, grid.FormatDuration(gridFlags.duration))
	return nil
}

// renderGrid lays the cells out one measure per row.
func renderGrid(cells []grid.Cell) string {
	headers := []string{"Measure"}
	for c := 1; c <= grid.CountsPerMeasure; c++ {
		headers = append(headers, strconv.Itoa(c))
	}

	var rows [][]string
	for _, c := range cells {
		if c.CountInMeasure == 1 || len(rows) == 0 {
			row := make([]string, grid.CountsPerMeasure+1)
			row[0] = strconv.Itoa(c.MeasureIndex + 1)
			rows = append(rows, row)
		}
		rows[len(rows)-1][c.CountInMeasure] = grid.FormatTime(c.AtSec)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1:
				return accentStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		Render()
}
