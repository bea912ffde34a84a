package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render produces the Prometheus text-exposition payload for the
// aggregator's current state: cumulative counters, current-tick gauges,
// backend info, and - when the latest tick carries them - a latency
// section of quantile gauges followed by cumulative histogram buckets.
// The latency section is two blocks - gauges, then histogram - with no
// separate summary block, and the line order is fixed: consumers diff the
// output against golden files.
func (a *Aggregator) Render() string {
	var b strings.Builder

	writeCounter(&b, "hashmap_ops_total", "Total operations processed.", float64(a.totals.Ops))
	writeCounter(&b, "hashmap_puts_total", "Total put operations.", float64(a.totals.Puts))
	writeCounter(&b, "hashmap_gets_total", "Total get operations.", float64(a.totals.Gets))
	writeCounter(&b, "hashmap_dels_total", "Total delete operations.", float64(a.totals.Dels))
	writeCounter(&b, "hashmap_migrations_total", "Total backend migrations completed.", float64(a.totals.Migrations))
	writeCounter(&b, "hashmap_compactions_total", "Total compactions completed.", float64(a.totals.Compactions))

	writeGauge(&b, "hashmap_load_factor", "Current backend load factor.", a.backend.LoadFactor)
	writeGauge(&b, "hashmap_max_group_len", "Current maximum chaining group length.", a.backend.MaxGroupLen)
	writeGauge(&b, "hashmap_avg_probe_estimate", "Current average Robin-Hood probe distance.", a.backend.AvgProbeEstimate)
	writeGauge(&b, "hashmap_tombstone_ratio", "Current Robin-Hood tombstone ratio.", a.backend.TombstoneRatio)

	fmt.Fprintf(&b, "# HELP hashmap_backend_info Active backend identity.\n")
	fmt.Fprintf(&b, "# TYPE hashmap_backend_info gauge\n")
	fmt.Fprintf(&b, "hashmap_backend_info{name=%q} 1\n", a.backend.Name)

	if a.haveTick && len(a.latest.LatencyMS) > 0 {
		writeLatencyGauges(&b, a.latest.LatencyMS)
	}
	if a.haveTick && len(a.latest.LatencyHistMS) > 0 {
		writeLatencyHistograms(&b, a.latest.LatencyHistMS, a.latest.LatencyHistSumMS)
	}

	if a.haveTick && len(a.latest.ProbeHist) > 0 {
		total := 0
		for _, pair := range a.latest.ProbeHist {
			total += pair[1]
		}
		writeGauge(&b, "hashmap_probe_length_count", "Total probe-length samples recorded this tick.", float64(total))
	}

	if len(a.alertFlags) > 0 {
		fmt.Fprintf(&b, "# HELP hashmap_watchdog_alert_active Whether a watchdog alert is currently firing for a metric.\n")
		fmt.Fprintf(&b, "# TYPE hashmap_watchdog_alert_active gauge\n")
		names := make([]string, 0, len(a.alertFlags))
		for name := range a.alertFlags {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			val := 0
			if a.alertFlags[name] {
				val = 1
			}
			fmt.Fprintf(&b, "hashmap_watchdog_alert_active{metric=%q} %d\n", name, val)
		}
	}

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)
	fmt.Fprintf(b, "%s %s\n", name, formatValue(value))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %s\n", name, formatValue(value))
}

func writeLatencyGauges(b *strings.Builder, byOp map[string]QuantileSet) {
	fmt.Fprintf(b, "# HELP hashmap_latency_ms Observed per-operation latency quantiles, in milliseconds.\n")
	fmt.Fprintf(b, "# TYPE hashmap_latency_ms gauge\n")
	for _, op := range sortedKeys(byOp) {
		q := byOp[op]
		fmt.Fprintf(b, "hashmap_latency_ms{op=%q,quantile=\"p50\"} %.6f\n", op, q.P50)
		fmt.Fprintf(b, "hashmap_latency_ms{op=%q,quantile=\"p90\"} %.6f\n", op, q.P90)
		fmt.Fprintf(b, "hashmap_latency_ms{op=%q,quantile=\"p99\"} %.6f\n", op, q.P99)
	}
}

func writeLatencyHistograms(b *strings.Builder, byOp map[string][]HistBucket, sums map[string]float64) {
	fmt.Fprintf(b, "# HELP hashmap_latency_ms_hist Cumulative per-operation latency histogram, in milliseconds.\n")
	fmt.Fprintf(b, "# TYPE hashmap_latency_ms_hist histogram\n")
	for _, op := range sortedKeys(byOp) {
		buckets := byOp[op]
		var count uint64
		for _, bucket := range buckets {
			fmt.Fprintf(b, "hashmap_latency_ms_hist_bucket{op=%q,le=%q} %d\n", op, bucket.Le, bucket.Count)
			if bucket.Count > count {
				count = bucket.Count
			}
		}
		writeHistogramSum(b, op, sums[op])
		fmt.Fprintf(b, "hashmap_latency_ms_hist_count{op=%q} %d\n", op, count)
	}
}

func writeHistogramSum(b *strings.Builder, op string, sum float64) {
	fmt.Fprintf(b, "hashmap_latency_ms_hist_sum{op=%q} %.6f\n", op, sum)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
