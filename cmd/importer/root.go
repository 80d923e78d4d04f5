package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/kartlog/internal/config"
	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/JonMunkholm/kartlog/internal/logging"
	"github.com/JonMunkholm/kartlog/internal/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	input       string
	credentials string
	workers     int
	batchSize   int
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "kartlog-import <userID>",
		Short: "Import a karting session log export",
		Long: "Import a karting session log export for userID.\n\n" +
			"A user id that collides with a subcommand name (migrate, import) must be\n" +
			"passed through the import subcommand: kartlog-import import migrate.",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runImport(cmd, args[0], flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.input, "input", "", "Export file (overrides IMPORT_INPUT_FILE)")
	pf.StringVar(&flags.credentials, "credentials", "", "Credentials file (overrides IMPORT_CREDENTIALS_FILE)")
	pf.IntVar(&flags.workers, "workers", 0, "Rows resolved concurrently (overrides IMPORT_WORKERS)")
	pf.IntVar(&flags.batchSize, "batch-size", 0, "Sessions per commit, at most 500 (overrides IMPORT_BATCH_SIZE)")

	cmd.AddCommand(newImportCmd(&flags))
	cmd.AddCommand(newMigrateCmd(&flags))
	return cmd
}

// newImportCmd is the explicit form of the root command. Its argument is
// never matched against subcommand names.
func newImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <userID>",
		Short: "Import a karting session log export for userID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runImport(cmd, args[0], *flags)
		},
	}
}

// apply copies non-zero flags over cfg.
func (f rootFlags) apply(cfg *config.Config) error {
	if f.input != "" {
		cfg.Import.InputFile = f.input
	}
	if f.credentials != "" {
		cfg.Import.CredentialsFile = f.credentials
	}
	if f.workers != 0 {
		cfg.Import.Workers = f.workers
	}
	if f.batchSize != 0 {
		cfg.Import.BatchSize = f.batchSize
	}
	return cfg.Validate()
}

// setup loads configuration, configures logging on stderr and opens the pool.
func setup(cmd *cobra.Command, flags rootFlags) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.LoadWithDotenv()
	if err != nil {
		return nil, nil, &core.SetupError{Op: "config", Err: err}
	}
	if err := flags.apply(cfg); err != nil {
		return nil, nil, &core.SetupError{Op: "config", Err: err}
	}
	logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	dbURL, creds, err := databaseURL(cfg)
	if err != nil {
		return nil, nil, err
	}
	pool, err := postgres.Connect(cmd.Context(), dbURL, cfg.Database)
	if err != nil {
		return nil, nil, &core.SetupError{Op: "database", Err: err}
	}
	slog.Info("connected to database", "name", databaseName(dbURL), "project_id", creds.ProjectID)
	return cfg, pool, nil
}

// databaseURL reads the credential file and picks the connection string.
// The file must exist; DATABASE_URL may stand in for its database_url.
func databaseURL(cfg *config.Config) (string, *config.Credentials, error) {
	creds, err := config.LoadCredentials(cfg.Import.CredentialsFile)
	if err != nil {
		return "", nil, &core.SetupError{Op: "credentials", Err: err}
	}
	dbURL, err := cfg.DatabaseURL(creds)
	if err != nil {
		return "", nil, &core.SetupError{Op: "credentials", Err: err}
	}
	return dbURL, creds, nil
}

func databaseName(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			_, pool, err := setup(cmd, *flags)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}
