package cli

import (
	"github.com/spf13/cobra"

	"github.com/eleven-am/dbhelper/internal/logger"
	"github.com/eleven-am/dbhelper/pkg/version"
)

// Global configuration variables
var (
	configFile  string
	config      *Config
	databaseURL string
	driverName  string
	scriptDirs  []string
	debug       bool
	verbose     bool
	showMetrics bool

	current *session
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dbhelper",
		Short: "dbhelper - SQL statements, routines and scripts",
		Long: `dbhelper runs SQL against PostgreSQL through one convenience layer.

A statement can be:
- plain SQL text
- a routine name such as get_users or [reporting].[daily_totals]
- a script reference such as users/Active.sql, resolved from the
  configured script directories and the built-in bundle`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			current = nil

			loaded, err := LoadConfig(configFile)
			if err != nil {
				if verbose {
					cmd.PrintErrf("Warning: Failed to load config file: %v\n", err)
				}
				loaded = DefaultConfig()
			}
			config = loaded

			if databaseURL == "" {
				databaseURL = config.Database.URL
			}
			if driverName == "" {
				driverName = config.Database.Driver
			}
			if len(scriptDirs) == 0 {
				scriptDirs = config.Scripts.Directories
			}

			configureLogging(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !showMetrics || current == nil {
				return nil
			}
			return current.writeMetrics(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: dbhelper.yaml)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "url", "", "database connection URL")
	rootCmd.PersistentFlags().StringVar(&driverName, "driver", "", "database/sql driver (postgres, pgx)")
	rootCmd.PersistentFlags().StringSliceVar(&scriptDirs, "scripts", nil, "script directories, searched in order")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print collected metrics to stderr when done")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(scriptsCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// configureLogging applies the logging section; --debug and --verbose raise the level
func configureLogging(cmd *cobra.Command) {
	logger.Configure(cmd.ErrOrStderr(), config.Logging.Format == "json")

	level := logger.Level(config.Logging.Level)
	switch {
	case verbose:
		level = logger.LevelDebug
	case debug:
		level = logger.LevelInfo
	}

	if err := logger.SetLevel(level); err != nil {
		logger.CLI().WithError(err).Warn("invalid log level %q, keeping %s", level, logger.GetLevel())
	}
}
