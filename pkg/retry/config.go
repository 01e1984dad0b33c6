package retry

import (
	"fmt"
	"time"
)

// BackoffStrategy определяет стратегию задержки между повторами
type BackoffStrategy string

const (
	// BackoffConstant - постоянная задержка
	BackoffConstant BackoffStrategy = "constant"
	// BackoffLinear - линейное увеличение задержки
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential - экспоненциальное увеличение задержки
	BackoffExponential BackoffStrategy = "exponential"
)

// Config содержит конфигурацию повтора записи пакета
type Config struct {
	// Enabled - включить повторы
	Enabled bool `yaml:"enabled"`

	// MaxAttempts - максимальное количество попыток (включая первую)
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay - задержка перед первым повтором
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay - верхняя граница задержки
	MaxDelay time.Duration `yaml:"max_delay"`

	BackoffStrategy   BackoffStrategy `yaml:"backoff"`
	BackoffMultiplier float64         `yaml:"multiplier"`

	// Jitter - доля случайного разброса задержки (0.0 - 1.0)
	Jitter float64 `yaml:"jitter"`

	// RetryableErrors - подстроки текста ошибок, для которых нужен повтор.
	// Пустой список = повтор для всех ошибок.
	RetryableErrors []string `yaml:"retryable_errors"`

	// OnRetry вызывается перед каждым повтором
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// SetDefaults заполняет незаданные поля значениями DefaultConfig
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.BackoffStrategy == "" {
		c.BackoffStrategy = d.BackoffStrategy
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", c.MaxAttempts)
	}

	if c.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0")
	}

	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", c.MaxDelay, c.InitialDelay)
	}

	switch c.BackoffStrategy {
	case BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("invalid backoff strategy: %s", c.BackoffStrategy)
	}

	if c.BackoffStrategy == BackoffExponential && c.BackoffMultiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1.0 for exponential backoff, got %f", c.BackoffMultiplier)
	}

	if c.Jitter < 0 || c.Jitter > 1.0 {
		return fmt.Errorf("jitter must be between 0.0 and 1.0, got %f", c.Jitter)
	}

	return nil
}

// DefaultConfig возвращает конфигурацию по умолчанию (повторы выключены)
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffStrategy:   BackoffExponential,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

// EnableRetry создает конфигурацию с включенными повторами
func EnableRetry(maxAttempts int, initialDelay time.Duration) Config {
	config := DefaultConfig()
	config.Enabled = true
	config.MaxAttempts = maxAttempts
	config.InitialDelay = initialDelay
	return config
}
