package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/app"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/config"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/logger"
)

type commandContext struct {
	jsonFlag *bool
	logLevel *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(jsonFlag *bool, logLevel *string) *commandContext {
	return &commandContext{jsonFlag: jsonFlag, logLevel: logLevel}
}

func (c *commandContext) json() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		level := cfg.LogLevel
		if c.logLevel != nil && *c.logLevel != "" {
			level = *c.logLevel
		}
		logger.Init(cfg.Environment, level)
		c.config = cfg
	})
	return c.config, c.configErr
}

// withApp opens the application for the duration of fn.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(*app.App) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(a)
}
