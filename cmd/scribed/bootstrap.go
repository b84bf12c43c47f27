package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/jobs/backend"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
)

func newRootCommand() *cobra.Command {
	var configPath string
	var envFile string

	cmd := &cobra.Command{
		Use:           "scribed",
		Short:         "Run the scribe pipeline daemon and HTTP trigger API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path := strings.TrimSpace(envFile); path != "" {
				if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("load env file: %w", err)
				}
			}
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return run(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the configuration")
	return cmd
}

// run blocks until ctx is cancelled, then shuts the daemon down.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	d, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("daemon close", logging.Error(err))
		}
	}()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	logger.Info("scribed started", logging.String("api", d.Addr()))

	<-ctx.Done()
	logger.Info("scribed shutting down")
	return nil
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := backend.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	orch, err := pipeline.NewFromConfig(ctx, cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	d, err := daemon.New(cfg, store, orch, logger)
	if err != nil {
		orch.Close()
		store.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}
