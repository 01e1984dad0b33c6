// Package resilience останавливает запись в целевую БД, пока она недоступна.
//
// CircuitBreaker общий для всех воркеров экспорта: после MaxFailures
// подряд неудачных попыток записи он открывается и отклоняет попытки
// без обращения к БД до истечения Timeout. Затем пропускает пробные
// попытки (half-open) и закрывается после SuccessThreshold успешных.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen - circuit breaker открыт, попытка отклонена
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State - состояние Circuit Breaker
type State int

const (
	// StateClosed - нормальная работа
	StateClosed State = iota
	// StateHalfOpen - пробные попытки после Timeout
	StateHalfOpen
	// StateOpen - попытки отклоняются
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config - конфигурация Circuit Breaker
type Config struct {
	Enabled bool `yaml:"enabled"`

	// MaxFailures - неудачных попыток подряд до открытия
	MaxFailures uint32 `yaml:"max_failures"`

	// Timeout - время в Open перед переходом в Half-Open
	Timeout time.Duration `yaml:"timeout"`

	// SuccessThreshold - успешных попыток в Half-Open для закрытия
	SuccessThreshold uint32 `yaml:"success_threshold"`

	// OnStateChange вызывается синхронно после смены состояния, без удержания lock
	OnStateChange func(from, to State) `yaml:"-"`
}

// SetDefaults устанавливает значения по умолчанию
func (c *Config) SetDefaults() {
	if c.MaxFailures == 0 {
		c.MaxFailures = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 1
	}
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxFailures == 0 {
		return fmt.Errorf("max_failures must be greater than 0")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// Counts - счетчики текущего поколения
type Counts struct {
	Requests             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
	Rejected             uint32
}

// CircuitBreaker - защита БД от повторов всех воркеров одновременно
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

// New создает CircuitBreaker
func New(config Config) (*CircuitBreaker, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}
	return &CircuitBreaker{config: config, now: time.Now}, nil
}

// Execute выполняет fn, если circuit не открыт. Ошибки контекста не считаются отказом БД.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.config.Enabled {
		return fn(ctx)
	}

	generation, err := cb.before()
	if err != nil {
		return err
	}

	err = fn(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	cb.after(generation, err == nil)
	return err
}

// State возвращает текущее состояние
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Counts возвращает счетчики текущего поколения
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

func (cb *CircuitBreaker) before() (uint64, error) {
	cb.mu.Lock()
	from := cb.state
	state := cb.currentState()
	if state == StateOpen {
		cb.counts.Rejected++
		cb.mu.Unlock()
		return 0, ErrCircuitOpen
	}
	cb.counts.Requests++
	generation := cb.generation
	cb.mu.Unlock()

	if from != state {
		cb.notify(from, state)
	}
	return generation, nil
}

func (cb *CircuitBreaker) after(generation uint64, success bool) {
	cb.mu.Lock()
	if generation != cb.generation {
		// Результат попытки из прошлого поколения
		cb.mu.Unlock()
		return
	}

	from := cb.state
	if success {
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	} else {
		cb.counts.ConsecutiveFailures++
		cb.counts.ConsecutiveSuccesses = 0
		if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
		}
	}
	to := cb.state
	cb.mu.Unlock()

	if from != to {
		cb.notify(from, to)
	}
}

// currentState переводит Open в Half-Open по истечении Timeout. Вызывается под lock.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && !cb.now().Before(cb.expiry) {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

// setState меняет состояние и начинает новое поколение. Вызывается под lock.
func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.generation++
	cb.counts = Counts{}
	if state == StateOpen {
		cb.expiry = cb.now().Add(cb.config.Timeout)
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}
