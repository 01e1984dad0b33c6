// Package export пишет строки источника в таблицу через подготовленный INSERT.
//
// Строки группируются в пакеты по Options.BatchSize, каждый пакет пишется в
// своей транзакции. Строки, не прошедшие связывание, отбрасываются до первой
// попытки записи; сбой записи откатывает пакет и повторяется целиком.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
	"github.com/ruslano69/tdtp-export/pkg/binder"
	"github.com/ruslano69/tdtp-export/pkg/core/schema"
	"github.com/ruslano69/tdtp-export/pkg/resilience"
	"github.com/ruslano69/tdtp-export/pkg/retry"
)

// RowSource - источник текстовых строк (source.Reader)
type RowSource interface {
	Next() ([]string, error)
	Line() int
}

// Exporter - экспорт в одну таблицу
type Exporter struct {
	adapter adapters.Adapter
	binder  *binder.RowBinder
	opts    Options

	retryer *retry.Retryer
	breaker *resilience.CircuitBreaker
	rejects *retry.RejectLog
	metrics *Metrics
	logger  zerolog.Logger
	diag    binder.Diagnostics

	unknown atomic.Int64
}

// Option настраивает Exporter
type Option func(*Exporter)

// WithRetryer задает повторы записи пакета
func WithRetryer(r *retry.Retryer) Option {
	return func(e *Exporter) { e.retryer = r }
}

// WithBreaker задает общий для воркеров circuit breaker записи в БД
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Exporter) { e.breaker = cb }
}

// WithRejectLog задает журнал отклоненных строк
func WithRejectLog(l *retry.RejectLog) Option {
	return func(e *Exporter) { e.rejects = l }
}

// WithMetrics задает счетчики
func WithMetrics(m *Metrics) Option {
	return func(e *Exporter) { e.metrics = m }
}

// WithLogger задает логгер
func WithLogger(l zerolog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// WithDiagnostics задает приемник предупреждений binder
func WithDiagnostics(d binder.Diagnostics) Option {
	return func(e *Exporter) { e.diag = d }
}

// New создает Exporter. adapter может быть nil только при opts.DryRun.
func New(adapter adapters.Adapter, mapping schema.TypeMapping, opts Options, options ...Option) (*Exporter, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid export options: %w", err)
	}
	if adapter == nil && !opts.DryRun {
		return nil, fmt.Errorf("adapter is required unless dry_run is set")
	}

	e := &Exporter{
		adapter: adapter,
		opts:    opts,
		logger:  zerolog.Nop(),
	}
	for _, o := range options {
		o(e)
	}

	if e.retryer == nil {
		r, err := retry.NewRetryer(retry.DefaultConfig())
		if err != nil {
			return nil, err
		}
		e.retryer = r
	}
	if e.rejects == nil {
		// Без файла журнал только считает строки
		e.rejects = &retry.RejectLog{}
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}

	e.binder = binder.NewRowBinder(mapping, &exportDiagnostics{e: e, next: e.diag})
	return e, nil
}

// Binder возвращает общий для всех воркеров RowBinder
func (e *Exporter) Binder() *binder.RowBinder {
	return e.binder
}

type sourceRow struct {
	line   int
	values []string
}

type batch struct {
	seq  int
	rows []sourceRow
}

type stagedRow struct {
	line   int
	params []binder.Param
	hash   uint64
}

type runState struct {
	read     atomic.Int64
	written  atomic.Int64
	rejected atomic.Int64
	batches  atomic.Int64
	retries  atomic.Int64
	checksum atomic.Uint64
}

// Run читает src до конца и пишет строки в таблицу
func (e *Exporter) Run(ctx context.Context, src RowSource) (Stats, error) {
	start := time.Now()
	unknownBefore := e.unknown.Load()
	st := &runState{}

	e.logger.Info().
		Str("table", e.opts.Table).
		Int("columns", len(e.opts.Columns)).
		Int("batch_size", e.opts.BatchSize).
		Int("workers", e.opts.Workers).
		Bool("dry_run", e.opts.DryRun).
		Msg("export started")

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan batch, e.opts.Workers)

	g.Go(func() error {
		defer close(batches)
		return e.produce(gctx, src, batches, st)
	})

	for i := 0; i < e.opts.Workers; i++ {
		worker := i
		g.Go(func() error {
			for b := range batches {
				if err := e.process(gctx, worker, b, st); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()

	stats := Stats{
		RowsRead:     st.read.Load(),
		RowsWritten:  st.written.Load(),
		RowsRejected: st.rejected.Load(),
		Batches:      st.batches.Load(),
		Retries:      st.retries.Load(),
		UnknownTypes: e.unknown.Load() - unknownBefore,
		Duration:     time.Since(start),
		Checksum:     formatChecksum(st.checksum.Load()),
		DryRun:       e.opts.DryRun,
	}

	if err != nil {
		e.logger.Error().Err(err).Str("stats", stats.String()).Msg("export failed")
		return stats, err
	}

	e.logger.Info().
		Int64("rows_read", stats.RowsRead).
		Int64("rows_written", stats.RowsWritten).
		Int64("rows_rejected", stats.RowsRejected).
		Int64("batches", stats.Batches).
		Str("checksum", stats.Checksum).
		Dur("duration", stats.Duration).
		Msg("export finished")

	return stats, nil
}

// produce режет источник на пакеты
func (e *Exporter) produce(ctx context.Context, src RowSource, out chan<- batch, st *runState) error {
	send := func(b batch) error {
		select {
		case out <- b:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	seq := 0
	current := batch{seq: seq, rows: make([]sourceRow, 0, e.opts.BatchSize)}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		values, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read source: %w", err)
		}

		st.read.Add(1)
		current.rows = append(current.rows, sourceRow{line: src.Line(), values: values})

		if len(current.rows) >= e.opts.BatchSize {
			if err := send(current); err != nil {
				return err
			}
			seq++
			current = batch{seq: seq, rows: make([]sourceRow, 0, e.opts.BatchSize)}
		}
	}

	if len(current.rows) > 0 {
		return send(current)
	}
	return nil
}

// process связывает строки пакета и пишет их
func (e *Exporter) process(ctx context.Context, worker int, b batch, st *runState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	staged, err := e.stage(b, st)
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		return nil
	}

	firstLine := staged[0].line
	log := e.logger.With().Int("worker", worker).Int("batch", b.seq).Int("first_line", firstLine).Logger()

	started := time.Now()
	var attempts int
	if e.opts.DryRun {
		attempts, err = 1, e.record(staged)
	} else {
		attempts, err = e.retryer.Do(ctx, func(ctx context.Context) error {
			if e.breaker == nil {
				return e.writeBatch(ctx, staged)
			}
			return e.breaker.Execute(ctx, func(ctx context.Context) error {
				return e.writeBatch(ctx, staged)
			})
		})
	}
	e.metrics.batchSeconds.Observe(time.Since(started).Seconds())

	if attempts > 1 {
		st.retries.Add(int64(attempts - 1))
		e.metrics.batches.WithLabelValues(OutcomeRetried).Add(float64(attempts - 1))
	}

	if err != nil {
		e.metrics.batches.WithLabelValues(OutcomeFailed).Inc()
		e.metrics.rows.WithLabelValues(OutcomeFailed).Add(float64(len(staged)))
		return fmt.Errorf("batch %d starting at line %d: %w", b.seq, firstLine, err)
	}

	var sum uint64
	for _, row := range staged {
		sum += row.hash
	}
	st.checksum.Add(sum)
	st.written.Add(int64(len(staged)))
	st.batches.Add(1)
	e.metrics.batches.WithLabelValues(OutcomeWritten).Inc()
	e.metrics.rows.WithLabelValues(OutcomeWritten).Add(float64(len(staged)))

	if attempts > 1 {
		log.Warn().Int("attempts", attempts).Int("rows", len(staged)).Msg("batch written after retries")
	} else {
		log.Debug().Int("rows", len(staged)).Msg("batch written")
	}
	return nil
}

// stage конвертирует строки пакета в параметры. Строки с ошибкой
// связывания уходят в журнал (skip) или прерывают экспорт (fail).
func (e *Exporter) stage(b batch, st *runState) ([]stagedRow, error) {
	staged := make([]stagedRow, 0, len(b.rows))
	for _, row := range b.rows {
		params, err := e.binder.Params(row.values, e.opts.Types)
		if err == nil {
			staged = append(staged, stagedRow{line: row.line, params: params, hash: RowHash(row.values)})
			continue
		}

		be, ok := binder.AsBindError(err)
		if !ok {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		if e.opts.OnBindError == OnBindErrorFail {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}

		if err := e.reject(row, be); err != nil {
			return nil, err
		}
		st.rejected.Add(1)
		e.metrics.rows.WithLabelValues(OutcomeRejected).Inc()
	}
	return staged, nil
}

func (e *Exporter) reject(row sourceRow, be *binder.BindError) error {
	r := retry.Reject{
		Line:  row.line,
		Error: be.Error(),
		Row:   row.values,
	}
	if be.Kind == binder.KindValueConversion {
		r.Column = be.Column + 1
		r.Value = be.Value
		r.Target = string(be.Target)
	}

	e.logger.Warn().
		Int("line", row.line).
		Str("kind", be.Kind.String()).
		Err(be).
		Msg("row rejected")

	return e.rejects.Add(r)
}

// writeBatch пишет пакет в одной транзакции
func (e *Exporter) writeBatch(ctx context.Context, staged []stagedRow) error {
	tx, err := e.adapter.BeginInsert(ctx, e.opts.Table, e.opts.Columns)
	if err != nil {
		return permanentIfSchema(err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			e.logger.Warn().Err(rbErr).Msg("rollback failed")
		}
	}()

	stmt := tx.NewStatement()
	for _, row := range staged {
		stmt.Reset()
		for _, p := range row.params {
			if err := p.Apply(stmt); err != nil {
				return retry.Permanent(fmt.Errorf("line %d: failed to set parameter %d: %w", row.line, p.Position, err))
			}
		}
		if err := tx.Exec(ctx, stmt); err != nil {
			return permanentIfSchema(fmt.Errorf("line %d: %w", row.line, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// permanentIfSchema: отсутствующую таблицу или колонку не повторяем
func permanentIfSchema(err error) error {
	if errors.Is(err, adapters.ErrSchemaMismatch) {
		return retry.Permanent(err)
	}
	return err
}

// record связывает пакет в Recorder без записи в БД
func (e *Exporter) record(staged []stagedRow) error {
	rec := binder.NewRecorder()
	for _, row := range staged {
		rec.Reset()
		for _, p := range row.params {
			if err := p.Apply(rec); err != nil {
				return fmt.Errorf("line %d: %w", row.line, err)
			}
		}
		if rec.Len() != len(e.opts.Columns) {
			return fmt.Errorf("line %d: %d parameters bound for %d columns", row.line, rec.Len(), len(e.opts.Columns))
		}
	}
	return nil
}

// exportDiagnostics считает неизвестные типы и передает предупреждения дальше
type exportDiagnostics struct {
	e    *Exporter
	next binder.Diagnostics
}

func (d *exportDiagnostics) Warn(msg string) {
	if d.next != nil {
		d.next.Warn(msg)
	}
}

func (d *exportDiagnostics) UnknownType(name string, column int) {
	d.e.unknown.Add(1)
	d.e.metrics.unknownTypes.WithLabelValues(name).Inc()
	if o, ok := d.next.(binder.TypeObserver); ok {
		o.UnknownType(name, column)
	}
}
