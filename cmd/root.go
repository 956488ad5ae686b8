package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"peerreview/kgraph/internal/config"
	"peerreview/kgraph/internal/db"
	"peerreview/kgraph/internal/observability"
)

var (
	cfgFile  string
	logLevel string
	dbPath   string

	// set by the root pre-run
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "kgraph",
	Short:         "Knowledge-graph metrics for LLM and human peer reviews",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(); err != nil {
			return err
		}
		v := viper.New()
		if err := initializeConfig(v); err != nil {
			return err
		}
		if logLevel != "" {
			v.Set("logger.level", logLevel)
		}

		c, err := config.NewConfigFromViper(v)
		if err != nil {
			observability.InitializeLogger(config.NewDefaultConfig().Logger)
			return err
		}
		cfg = c
		observability.InitializeLogger(cfg.Logger)
		logger = observability.GetLogger()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		observability.Sync()
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("Command failed", zap.Error(err))
			observability.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database for runs and the embedding cache (overrides database.path)")
}

// initializeConfig reads the config file, if any, and binds KGRAPH_* env vars
func initializeConfig(v *viper.Viper) error {
	config.SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	config.BindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// DiscoverDB returns the database path: --db flag, then KGRAPH_DB, then
// database.path. Empty means no database is configured.
func DiscoverDB() string {
	if dbPath != "" {
		return dbPath
	}
	if envPath := os.Getenv(config.EnvPrefix + "_DB"); envPath != "" {
		return envPath
	}
	if cfg != nil {
		return cfg.Database.Path
	}
	return ""
}

// OpenDatabase opens the configured database, or returns nil when none is set
func OpenDatabase() (*db.DB, error) {
	path := DiscoverDB()
	if path == "" {
		return nil, nil
	}
	d, err := db.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return d, nil
}

// RequireDatabase is OpenDatabase for commands that cannot run without one
func RequireDatabase() (*db.DB, error) {
	d, err := OpenDatabase()
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errors.New("no database configured (use --db, KGRAPH_DB or database.path)")
	}
	return d, nil
}

func truncText(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	// back off to a rune boundary
	truncated := s[:max]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "..."
}
