// Package logging настраивает zerolog для экспортера и предоставляет
// приемник предупреждений для binder.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config - настройки логирования
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// SetDefaults устанавливает значения по умолчанию
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Format {
	case "", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Format)
	}
}

// New создает логгер. w == nil означает os.Stderr.
func New(cfg Config, w io.Writer) (zerolog.Logger, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return zerolog.Nop(), err
	}
	if w == nil {
		w = os.Stderr
	}

	level, _ := zerolog.ParseLevel(strings.ToLower(cfg.Level))

	out := w
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
