// Package metrics implements the per-tick counters/gauges aggregator (C4):
// EMA-smoothed throughput, tick/summary records conforming to schemas
// metrics.v1/metrics.summary.v1, byte-exact Prometheus text rendering, and
// a prometheus.Collector adapter for embedding in an external exporter.
package metrics

// Schema tags carried on every emitted tick and summary record.
const (
	TickSchema    = "metrics.v1"
	SummarySchema = "metrics.summary.v1"
)

// OpsByType counts operations by kind, cumulative since the map was
// constructed (not reset between ticks).
type OpsByType struct {
	Put uint64 `json:"put"`
	Get uint64 `json:"get"`
	Del uint64 `json:"del"`
}

// QuantileSet is the p50/p90/p99 packet for a single operation kind.
type QuantileSet struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

// HistBucket is one {le, count} entry of a cumulative latency histogram.
// Le holds either a formatted finite bound or "+Inf".
type HistBucket struct {
	Le    string `json:"le"`
	Count uint64 `json:"count"`
}

// Alert is one active guardrail alert, matching the watchdog's emitted
// shape.
type Alert struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Severity  string  `json:"severity"`
	Backend   string  `json:"backend"`
	Message   string  `json:"message"`
}

// Event is a domain event recorded since the previous tick (backend-change
// started/completed, compaction started/completed).
type Event struct {
	Kind string  `json:"kind"`
	At   float64 `json:"at"`
}

// KeyHeatmap is the optional row-major occupancy matrix built from the
// Robin-Hood backend's per-slot occupancy.
type KeyHeatmap struct {
	Rows          int      `json:"rows"`
	Cols          int      `json:"cols"`
	Matrix        [][]uint64 `json:"matrix"`
	Max           uint64   `json:"max"`
	Total         uint64   `json:"total"`
	SlotSpan      int      `json:"slot_span"`
	OriginalSlots int      `json:"original_slots"`
}

// Tick is the structured record the supervisor emits each cadence
// interval, tagged schema=metrics.v1. Field names and JSON tags are part
// of the contract consumers of the append-only NDJSON tick log depend on;
// changing one is a schema break.
type Tick struct {
	Schema  string  `json:"schema"`
	T       float64 `json:"t"`
	Backend string  `json:"backend"`

	Ops       uint64    `json:"ops"`
	OpsByType OpsByType `json:"ops_by_type"`

	Migrations  uint64 `json:"migrations,omitempty"`
	Compactions uint64 `json:"compactions,omitempty"`

	LoadFactor       float64 `json:"load_factor"`
	MaxGroupLen      float64 `json:"max_group_len,omitempty"`
	AvgProbeEstimate float64 `json:"avg_probe_estimate,omitempty"`
	TombstoneRatio   float64 `json:"tombstone_ratio"`

	LatencyMS        map[string]QuantileSet    `json:"latency_ms"`
	LatencyHistMS    map[string][]HistBucket   `json:"latency_hist_ms"`
	LatencyHistSumMS map[string]float64        `json:"latency_hist_sum_ms,omitempty"`

	ProbeHist  [][2]int    `json:"probe_hist,omitempty"`
	KeyHeatmap *KeyHeatmap `json:"key_heatmap,omitempty"`

	Alerts     []Alert         `json:"alerts,omitempty"`
	AlertFlags map[string]bool `json:"alert_flags,omitempty"`
	Events     []Event         `json:"events,omitempty"`

	OpsPerSecondInstant float64 `json:"ops_per_second_instant,omitempty"`
	OpsPerSecondEMA     float64 `json:"ops_per_second_ema,omitempty"`
}

// Summary is the schema=metrics.summary.v1 snapshot view: latest tick
// fields plus cumulative totals and backend gauges.
type Summary struct {
	Schema      string  `json:"schema"`
	GeneratedAt float64 `json:"generated_at"`

	Backend             string  `json:"backend"`
	Ops                 uint64  `json:"ops"`
	OpsPerSecond        float64 `json:"ops_per_second"`
	OpsPerSecondInstant float64 `json:"ops_per_second_instant"`
	OpsPerSecondEMA     float64 `json:"ops_per_second_ema"`

	Totals       Totals       `json:"totals"`
	BackendState BackendState `json:"backend_state"`

	Alerts     []Alert         `json:"alerts,omitempty"`
	AlertFlags map[string]bool `json:"alert_flags,omitempty"`
}

// Totals holds every cumulative counter.
type Totals struct {
	Ops         uint64 `json:"ops"`
	Puts        uint64 `json:"puts"`
	Gets        uint64 `json:"gets"`
	Dels        uint64 `json:"dels"`
	Migrations  uint64 `json:"migrations"`
	Compactions uint64 `json:"compactions"`
}

// BackendState holds the current backend's gauges.
type BackendState struct {
	Name             string  `json:"name"`
	LoadFactor       float64 `json:"load_factor"`
	MaxGroupLen      float64 `json:"max_group_len"`
	AvgProbeEstimate float64 `json:"avg_probe_estimate"`
	TombstoneRatio   float64 `json:"tombstone_ratio"`
}
