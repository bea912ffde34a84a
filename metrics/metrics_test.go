package metrics

import "testing"

// TestRenderScenario applies one tick and expects the rendered exposition
// text to contain these lines, in this order.
func TestRenderScenario(t *testing.T) {
	agg := NewAggregator(0, 0)

	agg.ApplyTick(Tick{
		T:         1.0,
		Backend:   "robinhood",
		Ops:       30,
		OpsByType: OpsByType{Put: 4, Get: 5, Del: 1},
		LoadFactor: 0.75,
		LatencyMS: map[string]QuantileSet{
			"overall": {P50: 1, P90: 2, P99: 3},
		},
		LatencyHistMS: map[string][]HistBucket{
			"overall": {
				{Le: "1.000000", Count: 3},
				{Le: "+Inf", Count: 5},
			},
		},
	})

	out := agg.Render()

	wantInOrder := []string{
		"hashmap_ops_total 30",
		"hashmap_puts_total 4",
		"hashmap_gets_total 5",
		"hashmap_dels_total 1",
		"hashmap_backend_info{name=\"robinhood\"} 1",
		"hashmap_latency_ms{op=\"overall\",quantile=\"p50\"} 1.000000",
		"hashmap_latency_ms_hist_bucket{op=\"overall\",le=\"1.000000\"} 3",
		"hashmap_latency_ms_hist_bucket{op=\"overall\",le=\"+Inf\"} 5",
		"hashmap_latency_ms_hist_count{op=\"overall\"} 5",
	}

	pos := 0
	for _, want := range wantInOrder {
		idx := indexFrom(out, want, pos)
		if idx < 0 {
			t.Fatalf("expected line %q to appear after position %d in:\n%s", want, pos, out)
		}
		pos = idx + len(want)
	}
}

func indexFrom(s, substr string, from int) int {
	if from > len(s) {
		return -1
	}
	idx := indexOf(s[from:], substr)
	if idx < 0 {
		return -1
	}
	return from + idx
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestApplyTickTracksCumulativeCounters(t *testing.T) {
	agg := NewAggregator(0, 0)
	agg.ApplyTick(Tick{T: 1.0, Ops: 10, OpsByType: OpsByType{Put: 6, Get: 4}})
	agg.ApplyTick(Tick{T: 2.0, Ops: 25, OpsByType: OpsByType{Put: 16, Get: 9}})

	// Tick counters are already cumulative; totals must reflect the latest
	// tick, never re-sum across ticks.
	summary := agg.BuildSummary(100.0)
	if summary.Totals.Ops != 25 {
		t.Fatalf("Totals.Ops = %d, want 25", summary.Totals.Ops)
	}
	if summary.Totals.Puts != 16 || summary.Totals.Gets != 9 {
		t.Fatalf("Totals = %+v, want puts=16 gets=9", summary.Totals)
	}
	if summary.Schema != SummarySchema {
		t.Fatalf("Schema = %q, want %q", summary.Schema, SummarySchema)
	}
	if summary.GeneratedAt != 100.0 {
		t.Fatalf("GeneratedAt = %v, want 100.0", summary.GeneratedAt)
	}
}

func TestUpdateRatesSeedsEMAFromFirstInstant(t *testing.T) {
	agg := NewAggregator(0, 0)
	agg.ApplyTick(Tick{T: 1.0, Ops: 10, OpsPerSecondInstant: 50})
	if agg.OpsPerSecondEMA() != 50 {
		t.Fatalf("EMA after first tick = %v, want 50 (seeded directly)", agg.OpsPerSecondEMA())
	}

	agg.ApplyTick(Tick{T: 2.0, Ops: 20, OpsPerSecondInstant: 10})
	want := defaultEMAAlpha*10 + (1-defaultEMAAlpha)*50
	if agg.OpsPerSecondEMA() != want {
		t.Fatalf("EMA after second tick = %v, want %v", agg.OpsPerSecondEMA(), want)
	}
}

func TestUpdateRatesFallsBackToComputedInstant(t *testing.T) {
	agg := NewAggregator(0, 0)
	agg.ApplyTick(Tick{T: 1.0, Ops: 10})
	agg.ApplyTick(Tick{T: 2.0, Ops: 30})

	// dt=1s, delta ops=20 -> instant rate 20
	if agg.OpsPerSecondEMA() != (defaultEMAAlpha*20 + (1-defaultEMAAlpha)*0) {
		t.Fatalf("EMA = %v", agg.OpsPerSecondEMA())
	}
}

func TestNewAggregatorAlphaConfigurableAndClamped(t *testing.T) {
	agg := NewAggregator(0, 0.5)
	agg.ApplyTick(Tick{T: 1.0, Ops: 10, OpsPerSecondInstant: 100})
	// No explicit instant and no ops delta: the derived instant is 0.
	agg.ApplyTick(Tick{T: 2.0, Ops: 10})

	want := 0.5*0 + 0.5*100
	if agg.OpsPerSecondEMA() != want {
		t.Fatalf("EMA with alpha=0.5 = %v, want %v", agg.OpsPerSecondEMA(), want)
	}

	clamped := NewAggregator(0, 5)
	if clamped.emaAlpha != 1 {
		t.Fatalf("alpha=5 should clamp to 1, got %v", clamped.emaAlpha)
	}
}

func TestBuildKeyHeatmap(t *testing.T) {
	// 16 slots folded into a 2x2 grid: span 4, row-major.
	occupied := make([]bool, 16)
	occupied[0] = true  // cell (0,0)
	occupied[3] = true  // cell (0,0)
	occupied[5] = true  // cell (0,1)
	occupied[15] = true // cell (1,1)

	hm := BuildKeyHeatmap(occupied, 2, 2)
	if hm == nil {
		t.Fatalf("expected a heatmap, got nil")
	}
	if hm.SlotSpan != 4 || hm.OriginalSlots != 16 {
		t.Fatalf("span/slots = %d/%d, want 4/16", hm.SlotSpan, hm.OriginalSlots)
	}
	if hm.Matrix[0][0] != 2 || hm.Matrix[0][1] != 1 || hm.Matrix[1][0] != 0 || hm.Matrix[1][1] != 1 {
		t.Fatalf("matrix = %v", hm.Matrix)
	}
	if hm.Max != 2 || hm.Total != 4 {
		t.Fatalf("max/total = %d/%d, want 2/4", hm.Max, hm.Total)
	}

	if BuildKeyHeatmap(nil, 2, 2) != nil {
		t.Fatalf("expected nil heatmap for empty occupancy")
	}
	if BuildKeyHeatmap(occupied, 0, 2) != nil {
		t.Fatalf("expected nil heatmap for zero rows")
	}
}

func TestAlertFlagsPersistAcrossTicks(t *testing.T) {
	agg := NewAggregator(0, 0)
	agg.ApplyTick(Tick{T: 1.0, AlertFlags: map[string]bool{"load_factor": true}})
	agg.ApplyTick(Tick{T: 2.0, AlertFlags: map[string]bool{"tombstone_ratio": true}})

	summary := agg.BuildSummary(0)
	if !summary.AlertFlags["load_factor"] || !summary.AlertFlags["tombstone_ratio"] {
		t.Fatalf("expected both flags retained, got %+v", summary.AlertFlags)
	}
}

func TestEventsBoundedByMaxEvents(t *testing.T) {
	agg := NewAggregator(3, 0)
	for i := 0; i < 5; i++ {
		agg.ApplyTick(Tick{T: float64(i), Events: []Event{{Kind: "tick", At: float64(i)}}})
	}
	events := agg.Events()
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[len(events)-1].At != 4 {
		t.Fatalf("expected most recent event retained, got %+v", events)
	}
}
