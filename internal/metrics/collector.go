package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineStats exposes the reconciliation engine's live internal state to
// the collector without metrics importing reconcile directly.
type EngineStats interface {
	ActiveEpochCount() int
	DedupMemoLen() int
	BreakerState() string
}

// breakerStates enumerates gobreaker's three states in the fixed order the
// gauge vec reports them in (spec.md §5 resilience: closed/half-open/open).
var breakerStates = []string{"closed", "half-open", "open"}

// Collector implements prometheus.Collector, reading live engine state at
// scrape time rather than push-updating counters from the hot path.
type Collector struct {
	stats EngineStats

	activeEpochs  *prometheus.Desc
	dedupMemoSize *prometheus.Desc
	breakerState  *prometheus.Desc
}

// NewCollector creates a collector reading live state from stats at scrape
// time. stats may be nil: the two gauges then report 0 and no breaker-state
// series is emitted.
func NewCollector(stats EngineStats) *Collector {
	return &Collector{
		stats: stats,
		activeEpochs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_epochs"),
			"Current number of channels with an active epoch.",
			nil, nil,
		),
		dedupMemoSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "dedup_memo_size"),
			"Current size of the recent-notice-id dedup memo.",
			nil, nil,
		),
		breakerState: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "circuit_breaker_state"),
			"Store circuit breaker state (1 for the active state, 0 otherwise).",
			[]string{"state"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeEpochs
	ch <- c.dedupMemoSize
	ch <- c.breakerState
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.stats == nil {
		ch <- prometheus.MustNewConstMetric(c.activeEpochs, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dedupMemoSize, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.activeEpochs, prometheus.GaugeValue, float64(c.stats.ActiveEpochCount()))
	ch <- prometheus.MustNewConstMetric(c.dedupMemoSize, prometheus.GaugeValue, float64(c.stats.DedupMemoLen()))

	current := c.stats.BreakerState()
	for _, state := range breakerStates {
		v := 0.0
		if state == current {
			v = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.breakerState, prometheus.GaugeValue, v, state)
	}
}
