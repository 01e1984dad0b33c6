package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы строк и пакетов
const (
	OutcomeWritten  = "written"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeRetried  = "retried"
)

// Metrics - счетчики экспорта
type Metrics struct {
	rows         *prometheus.CounterVec
	batches      *prometheus.CounterVec
	unknownTypes *prometheus.CounterVec
	batchSeconds prometheus.Histogram
}

// NewMetrics регистрирует счетчики в reg. reg == nil создает незарегистрированные счетчики.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// rows counts source rows by outcome.
		rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tdtp_export_rows_total",
				Help: "Total number of source rows by outcome (written, rejected, failed)",
			},
			[]string{"outcome"},
		),
		batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tdtp_export_batches_total",
				Help: "Total number of insert batches by outcome (written, failed, retried)",
			},
			[]string{"outcome"},
		),
		unknownTypes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tdtp_export_unknown_types_total",
				Help: "Total number of values bound as text because of an unknown column type",
			},
			[]string{"type"},
		),
		batchSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tdtp_export_batch_duration_seconds",
				Help:    "Time spent writing one batch, retries included",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}
