package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/countsheet/internal/export"
	"github.com/satindergrewal/countsheet/internal/store"
)

var exportFlags struct {
	format string
	output string
}

var exportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Export a performance's count sheet as CSV, JSON or MIDI",
	Example: `  countsheet export 3f1c... --format csv
  countsheet export 3f1c... --format midi -o routine.mid`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.format, "format", "csv", "csv, json or midi")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := st.GetPerformance(ctx, args[0])
	if err != nil {
		return err
	}

	data, err := render(p, exportFlags.format)
	if err != nil {
		return err
	}

	if exportFlags.output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportFlags.output, data, 0644); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"performance": p.ID,
		"format":      exportFlags.format,
		"file":        exportFlags.output,
	}).Info("exported")
	return nil
}

func render(p *store.Performance, format string) ([]byte, error) {
	var buf bytes.Buffer
	var w io.Writer = &buf
	switch format {
	case "csv":
		if err := export.WriteCSV(w, store.Notes(p.CountNotes)); err != nil {
			return nil, err
		}
	case "json":
		if err := export.WriteJSON(w, p); err != nil {
			return nil, err
		}
	case "midi", "mid":
		if p.Track == nil {
			return nil, fmt.Errorf("performance %s has no track", p.ID)
		}
		if err := export.MIDI(w, p.Track.BPM, p.Track.Cells()); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format %q (want csv, json or midi)", format)
	}
	return buf.Bytes(), nil
}
