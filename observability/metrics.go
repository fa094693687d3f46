package observability

import (
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VenueMetrics bundles the collectors tracking lending engine activity. All
// venue operations report here regardless of which surface (gateway, CLI)
// triggered them.
type VenueMetrics struct {
	operations   *prometheus.CounterVec
	opLatency    *prometheus.HistogramVec
	poolCash     *prometheus.GaugeVec
	poolBorrows  *prometheus.GaugeVec
	poolUtilized *prometheus.GaugeVec
	height       prometheus.Gauge
}

var (
	venueMetricsOnce sync.Once
	venueRegistry    *VenueMetrics
)

// Venue returns the lazily-initialised metrics registry for the lending
// engine.
func Venue() *VenueMetrics {
	venueMetricsOnce.Do(func() {
		venueRegistry = &VenueMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendvault",
				Subsystem: "venue",
				Name:      "operations_total",
				Help:      "Count of lending operations segmented by operation, asset, and outcome.",
			}, []string{"operation", "asset", "outcome"}),
			opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lendvault",
				Subsystem: "venue",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for lending operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			poolCash: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendvault",
				Subsystem: "pool",
				Name:      "cash",
				Help:      "Idle liquidity held by each pool vault, in base units.",
			}, []string{"asset"}),
			poolBorrows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendvault",
				Subsystem: "pool",
				Name:      "borrows",
				Help:      "Outstanding debt per pool including accrued interest, in base units.",
			}, []string{"asset"}),
			poolUtilized: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendvault",
				Subsystem: "pool",
				Name:      "utilization",
				Help:      "Fraction of each pool's liquidity currently lent out (0-1).",
			}, []string{"asset"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lendvault",
				Subsystem: "venue",
				Name:      "height",
				Help:      "Current accrual height of the venue.",
			}),
		}
		prometheus.MustRegister(
			venueRegistry.operations,
			venueRegistry.opLatency,
			venueRegistry.poolCash,
			venueRegistry.poolBorrows,
			venueRegistry.poolUtilized,
			venueRegistry.height,
		)
	})
	return venueRegistry
}

// ObserveOperation records one engine operation with its latency and outcome.
func (m *VenueMetrics) ObserveOperation(operation, asset string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(labelOp(operation), labelAsset(asset), outcome).Inc()
	m.opLatency.WithLabelValues(labelOp(operation)).Observe(duration.Seconds())
}

// RecordPool updates the per-pool gauges after a state change.
func (m *VenueMetrics) RecordPool(asset string, cash, borrows *big.Int) {
	if m == nil {
		return
	}
	label := labelAsset(asset)
	cashVal := bigToFloat(cash)
	borrowVal := bigToFloat(borrows)
	m.poolCash.WithLabelValues(label).Set(cashVal)
	m.poolBorrows.WithLabelValues(label).Set(borrowVal)
	utilization := 0.0
	if total := cashVal + borrowVal; total > 0 {
		utilization = borrowVal / total
	}
	m.poolUtilized.WithLabelValues(label).Set(utilization)
}

// RecordHeight updates the venue height gauge.
func (m *VenueMetrics) RecordHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

func labelOp(operation string) string {
	trimmed := strings.TrimSpace(operation)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, _ := new(big.Float).SetInt(value).Float64()
	if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
		return 0
	}
	return floatVal
}
