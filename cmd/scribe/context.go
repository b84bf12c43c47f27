package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/jobs/backend"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
)

type commandContext struct {
	configFlag *string
	envFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	store       jobs.Store
	orch        *pipeline.Orchestrator
	releaseRuns func()
}

func newCommandContext(configFlag, envFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		envFlag:    envFlag,
	}
}

// loadEnv applies the env file without overriding variables already set.
// A missing file is not an error.
func (c *commandContext) loadEnv() error {
	if c.envFlag == nil || strings.TrimSpace(*c.envFlag) == "" {
		return nil
	}
	if err := godotenv.Load(strings.TrimSpace(*c.envFlag)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger writes to stderr and the log file so stdout stays clean for command output.
func (c *commandContext) logger(cfg *config.Config) *slog.Logger {
	outputs := []string{"stderr"}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		outputs = append(outputs, filepath.Join(dir, "scribe.log"))
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// openStore returns the configured job store, opening it on first use.
func (c *commandContext) openStore(ctx context.Context) (jobs.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := backend.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	c.store = store
	return store, nil
}

// jobsOnly returns an orchestrator without stages, enough for submit and
// read-only commands that must work without provider credentials.
func (c *commandContext) jobsOnly(ctx context.Context) (*pipeline.Orchestrator, error) {
	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.New(store, pipeline.StageSet{}, c.logger(c.config)), nil
}

// pipeline returns a fully wired orchestrator. The run lock is held until
// close so a daemon starting meanwhile leaves this process's jobs alone.
func (c *commandContext) pipeline(ctx context.Context) (*pipeline.Orchestrator, error) {
	if c.orch != nil {
		return c.orch, nil
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	release, err := pipeline.NewRunLock(c.config.RunLockPath()).Acquire(ctx)
	if err != nil {
		return nil, err
	}
	orch, err := pipeline.NewFromConfig(ctx, c.config, store, c.logger(c.config))
	if err != nil {
		release()
		return nil, err
	}
	c.orch = orch
	c.releaseRuns = release
	return orch, nil
}

func (c *commandContext) close() error {
	var errs []error
	if c.orch != nil {
		errs = append(errs, c.orch.Close())
		c.orch = nil
	}
	if c.releaseRuns != nil {
		c.releaseRuns()
		c.releaseRuns = nil
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
		c.store = nil
	}
	return errors.Join(errs...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
