package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"grannypad/internal/config"
	"grannypad/internal/gemini"
	"grannypad/internal/logging"
	"grannypad/internal/speech"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     config.Config
	configPath string
	created    bool
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path == "" {
			path = config.ResolveConfigPath()
		}
		c.configPath = path
		if _, err := os.Stat(path); err != nil {
			c.created = errors.Is(err, os.ErrNotExist)
		}
		cfg, err := config.LoadOrCreate(path)
		if err != nil {
			c.configErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// fileLogger logs to the configured file; the notepad owns the terminal.
func (c *commandContext) fileLogger(cfg config.Config) (*log.Logger, io.Closer, error) {
	return logging.OpenFile(cfg.LogPath, c.logOptions(cfg))
}

func (c *commandContext) stderrLogger(cfg config.Config) *log.Logger {
	return logging.New(os.Stderr, c.logOptions(cfg))
}

func (c *commandContext) logOptions(cfg config.Config) logging.Options {
	opts := logging.DefaultOptions()
	opts.Level = cfg.LogLevel
	opts.Prefix = config.AppName
	return opts
}

// geminiClient loads the API key and builds the model client.
func (c *commandContext) geminiClient(ctx context.Context, cfg *config.Config, logger *log.Logger) (*gemini.Client, error) {
	if err := cfg.LoadAPIKey(); err != nil {
		return nil, err
	}
	return gemini.New(ctx, gemini.Config{
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout(),
	}, gemini.WithLogger(logger))
}

func (c *commandContext) narrator(cfg config.Config, logger *log.Logger) *speech.Narrator {
	return speech.NewNarrator(speech.NarratorConfig{
		Binary:    cfg.Speech.Command,
		Preferred: cfg.Speech.Voices,
		Rate:      cfg.Speech.Rate,
		Pitch:     cfg.Speech.Pitch,
	}, speech.WithLogger(logger))
}
