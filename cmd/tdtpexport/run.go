package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ruslano69/tdtp-export/pkg/adapters"
	"github.com/ruslano69/tdtp-export/pkg/export"
	"github.com/ruslano69/tdtp-export/pkg/job"
	"github.com/ruslano69/tdtp-export/pkg/logging"
	"github.com/ruslano69/tdtp-export/pkg/resilience"
	"github.com/ruslano69/tdtp-export/pkg/resultlog"
	"github.com/ruslano69/tdtp-export/pkg/retry"
	"github.com/ruslano69/tdtp-export/pkg/source"
)

type runFlags struct {
	config      string
	dryRun      bool
	metricsAddr string
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an export job",
		Long: `Run reads the job configuration, opens the source and inserts every row into the target table.
Rows that cannot be bound are written to the reject log (on_bind_error: skip) or abort the job (fail).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "path to job YAML")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "bind rows without writing to the database")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runExport(ctx context.Context, flags *runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := job.LoadConfig(flags.config, func(c *job.JobConfig) {
		if flags.dryRun {
			c.Export.DryRun = true
		}
		if flags.metricsAddr != "" {
			c.Metrics.Addr = flags.metricsAddr
		}
	})
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	logger = logger.With().Str("job", cfg.Name).Logger()

	mapping, err := cfg.TypeMapping()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := export.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer shutdown()
	}

	var adapter adapters.Adapter
	if !cfg.Export.DryRun {
		adapter, err = adapters.New(ctx, cfg.Target)
		if err != nil {
			return err
		}
		defer adapter.Close(context.WithoutCancel(ctx))
		logger.Info().Str("database", adapter.GetDatabaseType()).Str("table", cfg.Export.Table).Msg("connected")
	}

	retryCfg := cfg.Retry
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("batch failed, retrying")
	}
	retryer, err := retry.NewRetryer(retryCfg)
	if err != nil {
		return err
	}

	breakerCfg := cfg.Breaker
	breakerCfg.OnStateChange = func(from, to resilience.State) {
		logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
	}
	breaker, err := resilience.New(breakerCfg)
	if err != nil {
		return err
	}

	rejects, err := retry.OpenRejectLog(cfg.Rejects.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := rejects.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close reject log")
		}
	}()

	diag := logging.NewDiagnostics(logger)
	exp, err := export.New(adapter, mapping, cfg.Export,
		export.WithRetryer(retryer),
		export.WithBreaker(breaker),
		export.WithRejectLog(rejects),
		export.WithMetrics(metrics),
		export.WithLogger(logger),
		export.WithDiagnostics(diag),
	)
	if err != nil {
		return err
	}

	src, err := source.Open(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	started := time.Now()
	stats, runErr := exp.Run(ctx, src)

	if cfg.ResultLog.Enabled() {
		publishResult(ctx, cfg, started, stats, runErr, logger)
	}

	if err := renderStats(stats, rejects.Count()); err != nil {
		logger.Warn().Err(err).Msg("failed to render summary")
	}

	return runErr
}

func publishResult(ctx context.Context, cfg *job.JobConfig, started time.Time, stats export.Stats, runErr error, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	pub := resultlog.NewRedisPublisher(cfg.ResultLog)
	defer pub.Close()

	result := resultlog.NewResult(cfg.Name, cfg.Export.Table, started, stats, runErr)
	if err := pub.Publish(ctx, result); err != nil {
		logger.Error().Err(err).Msg("failed to publish result")
		return
	}
	logger.Info().Str("key", resultlog.StateKey(cfg.ResultLog.Name)).Str("status", result.Status).Msg("result published")
}

func serveMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func statsTable(stats export.Stats, rejectsLogged int) pterm.TableData {
	mode := "write"
	if stats.DryRun {
		mode = "dry-run"
	}
	return pterm.TableData{
		{"Metric", "Value"},
		{"Mode", mode},
		{"Rows read", strconv.FormatInt(stats.RowsRead, 10)},
		{"Rows written", strconv.FormatInt(stats.RowsWritten, 10)},
		{"Rows rejected", strconv.FormatInt(stats.RowsRejected, 10)},
		{"Rejects logged", strconv.Itoa(rejectsLogged)},
		{"Batches", strconv.FormatInt(stats.Batches, 10)},
		{"Retries", strconv.FormatInt(stats.Retries, 10)},
		{"Unknown-type values", strconv.FormatInt(stats.UnknownTypes, 10)},
		{"Checksum (xxh3)", stats.Checksum},
		{"Duration", stats.Duration.Round(time.Millisecond).String()},
	}
}

func renderStats(stats export.Stats, rejectsLogged int) error {
	pterm.DefaultSection.Println("Export summary")
	if err := pterm.DefaultTable.WithHasHeader().WithData(statsTable(stats, rejectsLogged)).Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}
