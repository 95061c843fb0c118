// Package common provides shared initialization for command implementations.
package common

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/leobrain/crawler/internal/config"
	"github.com/leobrain/crawler/internal/logger"
)

var (
	// ErrLoggerRequired is returned when CommandDeps.Logger is nil.
	ErrLoggerRequired = errors.New("logger is required")

	// ErrConfigRequired is returned when CommandDeps.Config is nil.
	ErrConfigRequired = errors.New("config is required")
)

// CommandDeps holds the dependencies every command starts from. Use this
// instead of context.Value for type-safe dependency injection.
type CommandDeps struct {
	Logger logger.Interface
	Config *config.Config
}

// Validate ensures all required dependencies are present.
func (d CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	return nil
}

// NewCommandDeps loads the application configuration from viper and builds
// the logger it describes.
func NewCommandDeps() (CommandDeps, error) {
	cfg := config.Load(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	level := logger.Level(cfg.Logging.Level)
	if cfg.App.Debug {
		level = logger.DebugLevel
	}
	log, err := logger.New(&logger.Config{
		Level:       level,
		Development: cfg.App.Debug,
		Encoding:    cfg.Logging.Format,
	})
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	deps := CommandDeps{
		Logger: log,
		Config: cfg,
	}
	if validateErr := deps.Validate(); validateErr != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", validateErr)
	}

	return deps, nil
}
