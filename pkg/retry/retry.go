// Package retry повторяет запись пакета строк при временных сбоях базы
// и ведет журнал строк, отклоненных при связывании параметров.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// ErrMaxAttempts - исчерпан лимит попыток
var ErrMaxAttempts = errors.New("max retry attempts exceeded")

// RetryableFunc - функция которую можно повторить
type RetryableFunc func(ctx context.Context) error

// Retryer выполняет повторы по конфигурации
type Retryer struct {
	config Config
}

// NewRetryer создает новый Retryer
func NewRetryer(config Config) (*Retryer, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	return &Retryer{config: config}, nil
}

// Config возвращает итоговую конфигурацию
func (r *Retryer) Config() Config {
	return r.config
}

// Do выполняет fn, повторяя ее при ошибке. Возвращает число попыток.
func (r *Retryer) Do(ctx context.Context, fn RetryableFunc) (int, error) {
	if !r.config.Enabled {
		return 1, fn(ctx)
	}

	attempts := 0
	for {
		attempts++

		err := fn(ctx)
		if err == nil {
			return attempts, nil
		}

		if !r.isRetryableError(ctx, err) {
			return attempts, err
		}

		if attempts >= r.config.MaxAttempts {
			return attempts, fmt.Errorf("%w (%d): %w", ErrMaxAttempts, r.config.MaxAttempts, err)
		}

		delay := r.calculateDelay(attempts)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempts, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempts, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// calculateDelay вычисляет задержку после попытки attempt
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.BackoffStrategy {
	case BackoffLinear:
		delay = r.config.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		// delay = initial * multiplier^(attempt-1)
		multiplier := math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)
	default:
		delay = r.config.InitialDelay
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter > 0 {
		delay += time.Duration(float64(delay) * r.config.Jitter * (rand.Float64()*2 - 1))
		if delay < 0 {
			delay = r.config.InitialDelay
		}
	}

	return delay
}

// isRetryableError проверяет нужен ли повтор для ошибки
func (r *Retryer) isRetryableError(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return false
	}

	if len(r.config.RetryableErrors) == 0 {
		return true
	}

	errStr := err.Error()
	for _, pattern := range r.config.RetryableErrors {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// PermanentError помечает ошибку, которую повторять бессмысленно
type PermanentError struct {
	Err error
}

// Permanent оборачивает err в PermanentError
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }
