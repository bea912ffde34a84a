package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector adapts an Aggregator to prometheus.Collector, for embedding in
// an external exporter that serves a registry rather than the hand-built
// text Render produces. Collect snapshots the aggregator under a mutex and
// emits const metrics rather than keeping live prometheus.Metric objects
// around.
type Collector struct {
	mu  sync.Mutex
	agg *Aggregator

	opsTotal         *prometheus.Desc
	putsTotal        *prometheus.Desc
	getsTotal        *prometheus.Desc
	delsTotal        *prometheus.Desc
	migrationsTotal  *prometheus.Desc
	compactionsTotal *prometheus.Desc
	loadFactor       *prometheus.Desc
	maxGroupLen      *prometheus.Desc
	avgProbe         *prometheus.Desc
	tombstoneRatio   *prometheus.Desc
	backendInfo      *prometheus.Desc
	latencyMS        *prometheus.Desc
	alertActive      *prometheus.Desc
}

// NewCollector wraps agg for registration with a prometheus.Registry.
func NewCollector(agg *Aggregator) *Collector {
	return &Collector{
		agg:              agg,
		opsTotal:         prometheus.NewDesc("hashmap_ops_total", "Total operations processed.", nil, nil),
		putsTotal:        prometheus.NewDesc("hashmap_puts_total", "Total put operations.", nil, nil),
		getsTotal:        prometheus.NewDesc("hashmap_gets_total", "Total get operations.", nil, nil),
		delsTotal:        prometheus.NewDesc("hashmap_dels_total", "Total delete operations.", nil, nil),
		migrationsTotal:  prometheus.NewDesc("hashmap_migrations_total", "Total backend migrations completed.", nil, nil),
		compactionsTotal: prometheus.NewDesc("hashmap_compactions_total", "Total compactions completed.", nil, nil),
		loadFactor:       prometheus.NewDesc("hashmap_load_factor", "Current backend load factor.", nil, nil),
		maxGroupLen:      prometheus.NewDesc("hashmap_max_group_len", "Current maximum chaining group length.", nil, nil),
		avgProbe:         prometheus.NewDesc("hashmap_avg_probe_estimate", "Current average Robin-Hood probe distance.", nil, nil),
		tombstoneRatio:   prometheus.NewDesc("hashmap_tombstone_ratio", "Current Robin-Hood tombstone ratio.", nil, nil),
		backendInfo:      prometheus.NewDesc("hashmap_backend_info", "Active backend identity.", []string{"name"}, nil),
		latencyMS:        prometheus.NewDesc("hashmap_latency_ms", "Observed per-operation latency quantiles, in milliseconds.", []string{"op", "quantile"}, nil),
		alertActive:      prometheus.NewDesc("hashmap_watchdog_alert_active", "Whether a watchdog alert is currently firing for a metric.", []string{"metric"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.opsTotal
	ch <- c.putsTotal
	ch <- c.getsTotal
	ch <- c.delsTotal
	ch <- c.migrationsTotal
	ch <- c.compactionsTotal
	ch <- c.loadFactor
	ch <- c.maxGroupLen
	ch <- c.avgProbe
	ch <- c.tombstoneRatio
	ch <- c.backendInfo
	ch <- c.latencyMS
	ch <- c.alertActive
}

// Collect implements prometheus.Collector, snapshotting the aggregator
// under lock so a concurrent scrape never observes a half-applied tick.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := c.agg.BuildSummary(0)

	ch <- prometheus.MustNewConstMetric(c.opsTotal, prometheus.CounterValue, float64(summary.Totals.Ops))
	ch <- prometheus.MustNewConstMetric(c.putsTotal, prometheus.CounterValue, float64(summary.Totals.Puts))
	ch <- prometheus.MustNewConstMetric(c.getsTotal, prometheus.CounterValue, float64(summary.Totals.Gets))
	ch <- prometheus.MustNewConstMetric(c.delsTotal, prometheus.CounterValue, float64(summary.Totals.Dels))
	ch <- prometheus.MustNewConstMetric(c.migrationsTotal, prometheus.CounterValue, float64(summary.Totals.Migrations))
	ch <- prometheus.MustNewConstMetric(c.compactionsTotal, prometheus.CounterValue, float64(summary.Totals.Compactions))

	ch <- prometheus.MustNewConstMetric(c.loadFactor, prometheus.GaugeValue, summary.BackendState.LoadFactor)
	ch <- prometheus.MustNewConstMetric(c.maxGroupLen, prometheus.GaugeValue, summary.BackendState.MaxGroupLen)
	ch <- prometheus.MustNewConstMetric(c.avgProbe, prometheus.GaugeValue, summary.BackendState.AvgProbeEstimate)
	ch <- prometheus.MustNewConstMetric(c.tombstoneRatio, prometheus.GaugeValue, summary.BackendState.TombstoneRatio)

	if summary.BackendState.Name != "" {
		ch <- prometheus.MustNewConstMetric(c.backendInfo, prometheus.GaugeValue, 1, summary.BackendState.Name)
	}

	if tick, ok := c.agg.LatestTick(); ok {
		for _, op := range sortedKeys(tick.LatencyMS) {
			q := tick.LatencyMS[op]
			ch <- prometheus.MustNewConstMetric(c.latencyMS, prometheus.GaugeValue, q.P50, op, "p50")
			ch <- prometheus.MustNewConstMetric(c.latencyMS, prometheus.GaugeValue, q.P90, op, "p90")
			ch <- prometheus.MustNewConstMetric(c.latencyMS, prometheus.GaugeValue, q.P99, op, "p99")
		}
	}

	for metric, active := range summary.AlertFlags {
		val := 0.0
		if active {
			val = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.alertActive, prometheus.GaugeValue, val, metric)
	}
}
