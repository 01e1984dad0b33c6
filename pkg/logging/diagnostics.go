package logging

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ruslano69/tdtp-export/pkg/binder"
)

var _ binder.Diagnostics = (*Diagnostics)(nil)

// Diagnostics пишет предупреждения binder в zerolog и считает их
type Diagnostics struct {
	logger zerolog.Logger
	count  atomic.Int64
	onWarn func(msg string)
}

// NewDiagnostics создает приемник с полем component=binder
func NewDiagnostics(logger zerolog.Logger) *Diagnostics {
	return &Diagnostics{logger: logger.With().Str("component", "binder").Logger()}
}

// OnWarn задает дополнительный обработчик (например, метрики)
func (d *Diagnostics) OnWarn(fn func(msg string)) *Diagnostics {
	d.onWarn = fn
	return d
}

func (d *Diagnostics) Warn(msg string) {
	d.count.Add(1)
	d.logger.Warn().Msg(msg)
	if d.onWarn != nil {
		d.onWarn(msg)
	}
}

// Count возвращает количество предупреждений
func (d *Diagnostics) Count() int64 {
	return d.count.Load()
}
