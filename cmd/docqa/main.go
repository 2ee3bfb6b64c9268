package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docqa-client/internal/bootstrap"
	"docqa-client/internal/config"
	"docqa-client/internal/logging"
)

var (
	configFile string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Client for the document question-answering service",
	Long: `docqa signs in to a document QA service, uploads PDF and TXT files,
follows their processing until they are ready, and asks questions whose
answers cite the uploaded documents.

The credential is shared with every other docqa process using the same
token store, so signing out in one terminal signs out everywhere.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
				return err
			}
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config failed: %w", err)
		}
		level := cfg.App.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(cfg.App.Env, level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default configs/docqa.toml or $CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		loginCmd,
		logoutCmd,
		registerCmd,
		statusCmd,
		watchSessionCmd,
		docsCmd,
		uploadCmd,
		deleteCmd,
		askCmd,
		historyCmd,
		journalCmd,
		serveCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *bootstrap.App) error) error {
	ctx := cmd.Context()
	a, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close resources failed", zap.Error(err))
		}
	}()
	return fn(ctx, a)
}
