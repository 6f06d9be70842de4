package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"aslreport/internal/api"
	"aslreport/internal/artifacts"
	"aslreport/internal/config"
	"aslreport/internal/logging"
	"aslreport/internal/pipeline"
	"aslreport/internal/schema"
	"aslreport/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	tablesOnce sync.Once
	tables     *schema.Tables
	tablesErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = api.Wrap(api.ErrConfiguration, "config", "load", "", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = api.Wrap(api.ErrConfiguration, "config", "ensure directories", "", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureTables() (*schema.Tables, error) {
	c.tablesOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.tablesErr = err
			return
		}
		tables, err := schema.Load(cfg.Rules.Path)
		if err != nil {
			c.tablesErr = api.Wrap(api.ErrConfiguration, "rules", "load", cfg.Rules.Path, err)
			return
		}
		c.tables = tables
	})
	return c.tables, c.tablesErr
}

// fileLogger writes to the log file only; stdout and stderr carry command
// output.
func (c *commandContext) fileLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
	})
}

// validationService wires the service. With persist set, the run store is
// opened and must be closed through the returned func.
func (c *commandContext) validationService(logger *slog.Logger, persist bool) (*api.ValidationService, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	tables, err := c.ensureTables()
	if err != nil {
		return nil, nil, err
	}
	runner := pipeline.New(tables, pipeline.Options{
		SuppressOnMajor: cfg.Report.SuppressOnMajor,
		Extended:        cfg.Report.Extended,
	}, logger)
	if !persist {
		return api.NewValidationService(runner, nil, nil, logger), func() {}, nil
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open run store: %w", err)
	}
	writer := artifacts.NewWriter(cfg.Paths.ArtifactsDir, logger)
	return api.NewValidationService(runner, st, writer, logger), func() { _ = st.Close() }, nil
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
