package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/techtree/internal/config"
	"github.com/abhisek/techtree/internal/interaction"
	"github.com/abhisek/techtree/internal/llm"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/tutor"
)

var (
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "techtree",
	Short:         "AI tutor for structured lessons",
	Long:          "techtree runs tutoring sessions against lessons: chat, practice exercises, assessments and graded answers.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if f, _ := cmd.Flags().GetString("log-format"); f != "" {
			c.Log.Format = f
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := c.Log.Logger(verbose)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (overrides TECHTREE_CONFIG)")
	rootCmd.PersistentFlags().String("db", "", "Path to a SQLite database file (overrides the store config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: json or console")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(turnCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(lessonCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore opens the database from --db (highest priority), then the store
// config, then the default XDG path.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	driver, dsn := cfg.Store.Driver, cfg.Store.DSN
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		if err := store.EnsureDir(p); err != nil {
			return nil, err
		}
		driver, dsn = store.DriverSQLite, p
	}
	if driver == store.DriverSQLite && dsn == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		dsn = p
	}

	st, err := store.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// newService builds the tutor and turn controller. A missing provider is
// not fatal; the tutor answers with its configuration fallbacks.
func newService(ctx context.Context, st *store.Store) (*interaction.Service, error) {
	provider, err := llm.NewProvider(ctx, cfg.LLM, st.EventRepo(), logger)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		fmt.Fprintln(os.Stderr, "LLM provider not configured; AI features will be unavailable.")
		provider = nil
	case err != nil:
		return nil, err
	}

	t := tutor.New(provider, cfg.Tutor, logger.Named("tutor"))
	return interaction.NewService(t, interaction.ReposFrom(st), cfg.Tutor.HistoryWindow, logger.Named("interaction")), nil
}
