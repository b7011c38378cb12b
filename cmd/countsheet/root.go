package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/countsheet/internal/audio"
	"github.com/satindergrewal/countsheet/internal/config"
	"github.com/satindergrewal/countsheet/internal/store"
)

var (
	cfg    = config.Load()
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "countsheet",
	Short: "8-count choreography sheets for dance and cheer routines",
	Long: `countsheet lays an 8-count grid over a routine's music, stores a note for
every count and streams the track to the team with the active count in sync.

Configuration comes from COUNTSHEET_* environment variables; flags override them.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg.DBPath = dbPath
		cfg.SetupLogging()
		audio.FFmpegPath = cfg.FFmpegPath
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DBPath, "SQLite database path")
}

// openStore opens the configured database for a one-shot command.
func openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, cfg.DBPath)
}
