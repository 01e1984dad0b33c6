package binder

import "sync"

// Diagnostics принимает предупреждения биндинга (неизвестные типы колонок)
type Diagnostics interface {
	Warn(msg string)
}

// DiagnosticsFunc - адаптер функции к Diagnostics
type DiagnosticsFunc func(msg string)

func (f DiagnosticsFunc) Warn(msg string) { f(msg) }

// TypeObserver - необязательное расширение Diagnostics.
// Если приемник его реализует, RowBinder после Warn сообщает имя неизвестного типа и колонку.
type TypeObserver interface {
	UnknownType(name string, column int)
}

// NopDiagnostics отбрасывает все предупреждения
type NopDiagnostics struct{}

func (NopDiagnostics) Warn(string) {}

// CollectingDiagnostics запоминает предупреждения. Безопасен для конкурентного использования.
type CollectingDiagnostics struct {
	mu       sync.Mutex
	messages []string
}

func (c *CollectingDiagnostics) Warn(msg string) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

// Messages возвращает копию накопленных предупреждений
func (c *CollectingDiagnostics) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	copy(out, c.messages)
	return out
}
