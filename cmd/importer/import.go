package main

import (
	"log/slog"
	"os"

	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/JonMunkholm/kartlog/internal/store/postgres"
	"github.com/spf13/cobra"
)

// runImport reads the export, uploads it for userID and prints progress and
// the summary on stdout. Skipped rows do not fail the command.
func runImport(cmd *cobra.Command, userID string, flags rootFlags) error {
	cfg, pool, err := setup(cmd, flags)
	if err != nil {
		return err
	}
	defer pool.Close()

	loc, err := cfg.Import.Location()
	if err != nil {
		return &core.SetupError{Op: "config", Err: err}
	}

	f, err := os.Open(cfg.Import.InputFile)
	if err != nil {
		return &core.SetupError{Op: "read export", Err: err}
	}
	defer f.Close()

	importer := core.NewImporter(
		postgres.NewReferenceStore(pool),
		postgres.NewSessionStore(pool),
		core.Options{
			BatchSize: cfg.Import.BatchSize,
			Workers:   cfg.Import.Workers,
			CacheSize: cfg.Import.CacheSize,
			SourceTag: cfg.Import.SourceTag,
			Location:  loc,
			Logger:    slog.Default(),
		},
	)

	out := cmd.OutOrStdout()
	summary, err := importer.Run(cmd.Context(), userID, f, core.ConsoleProgress(out))
	if summary.RunID != "" {
		core.PrintSummary(out, summary)
	}
	return err
}
