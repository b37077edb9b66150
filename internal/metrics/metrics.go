package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kestrel_batches_total",
		Help: "Total number of batches scored.",
	})

	RecordsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kestrel_records_scored_total",
		Help: "Total number of transaction records scored.",
	})

	RecordsByCategory = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_records_by_category_total",
		Help: "Total number of scored records, labelled by risk category.",
	}, []string{"category"})

	HighRiskAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kestrel_high_risk_alerts_total",
		Help: "Total number of high-risk alert events published.",
	})

	ValidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kestrel_validation_failures_total",
		Help: "Total number of batches rejected for missing required columns.",
	})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kestrel_batch_duration_ms",
		Help:    "Batch scoring latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	StoreEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kestrel_store_entries",
		Help: "Number of batch results currently held in the result store.",
	})
)
