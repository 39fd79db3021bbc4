/*
main.go - Application entry point

PURPOSE:
  Builds the `ledger` command tree. `serve` runs the HTTP API, `report`
  prints ledger reports straight from the store.

CONFIGURATION:
  Read in this order, later wins:
  1. Defaults in config.Load
  2. .env in the working directory
  3. Environment variables (HTTP_PORT, DB_DRIVER, DB_PATH, DATABASE_URL,
     LOG_LEVEL, LOG_FORMAT, CORS_ORIGINS, SHUTDOWN_TIMEOUT)
  4. Command-line flags

EXAMPLES:
  # Run with file database
  ledger serve --db-path=./data/ledger.db

  # Run with in-memory database
  ledger serve --db-path=":memory:"

  # Run against PostgreSQL
  ledger serve --db-driver=postgres --database-url=postgres://localhost/ledger

  # Print a P&L for business 1
  ledger report pnl --business 1 --start 2025-01-01 --end 2025-01-31

SEE ALSO:
  - serve.go: HTTP server with graceful shutdown
  - report.go: Report subcommands
  - config/config.go: Environment keys
*/
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/bookkeeping/config"
	"github.com/warp/bookkeeping/logger"
)

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	cfg config.Config
	log zerolog.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var (
		envFile     string
		dbDriver    string
		dbPath      string
		databaseURL string
		logLevel    string
		logFormat   string
	)

	rootCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Double-entry bookkeeping ledger service",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("db-driver") {
				cfg.DBDriver = dbDriver
			}
			if flags.Changed("db-path") {
				cfg.DBPath = dbPath
			}
			if flags.Changed("database-url") {
				cfg.DatabaseURL = databaseURL
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if flags.Changed("port") {
				cfg.HTTPPort, _ = flags.GetInt("port")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a.cfg = cfg
			a.log = logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.StringVar(&dbDriver, "db-driver", config.DriverSQLite, "store backend: sqlite or postgres")
	pf.StringVar(&dbPath, "db-path", "ledger.db", `SQLite database path (":memory:" for in-memory)`)
	pf.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL")
	pf.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "console", "console or json")

	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newReportCommand(a))

	return rootCmd
}
