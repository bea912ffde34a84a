package metrics

// defaultEMAAlpha is the throughput EMA smoothing constant used when the
// caller doesn't supply one.
const defaultEMAAlpha = 0.25

// Aggregator accumulates ticks into running counters/gauges and produces
// Prometheus text and summary snapshots. Cumulative counters never reset,
// gauges reflect only the latest tick, and throughput is smoothed with an
// EMA whose first sample seeds the average directly (no warm-up
// transient).
type Aggregator struct {
	totals  Totals
	backend BackendState

	latest Tick
	haveTick bool

	alerts     []Alert
	alertFlags map[string]bool

	emaAlpha float64
	emaOps   float64
	instOps  float64
	haveEMA  bool
	opsPrev  uint64
	tPrev    float64

	events []Event

	maxEvents int
}

// NewAggregator constructs an empty Aggregator. maxEvents bounds the
// retained event history (0 selects 512). alpha is the EMA smoothing
// constant, clamped to [0,1]; 0 selects the default of 0.25 rather than
// disabling smoothing outright.
func NewAggregator(maxEvents int, alpha float64) *Aggregator {
	if maxEvents <= 0 {
		maxEvents = 512
	}
	if alpha <= 0 {
		alpha = defaultEMAAlpha
	}
	if alpha > 1 {
		alpha = 1
	}
	return &Aggregator{
		alertFlags: map[string]bool{},
		maxEvents:  maxEvents,
		emaAlpha:   alpha,
	}
}

// ApplyTick folds tick into the running totals and gauges, updates the
// smoothed throughput estimate, and replaces the latest-tick snapshot used
// by Render and BuildSummary. Tick counters are already cumulative (ops is
// monotonic across ticks), so totals take the latest value rather than
// summing.
func (a *Aggregator) ApplyTick(tick Tick) {
	a.totals.Ops = tick.Ops
	a.totals.Puts = tick.OpsByType.Put
	a.totals.Gets = tick.OpsByType.Get
	a.totals.Dels = tick.OpsByType.Del
	a.totals.Migrations = tick.Migrations
	a.totals.Compactions = tick.Compactions

	a.backend = BackendState{
		Name:             tick.Backend,
		LoadFactor:       tick.LoadFactor,
		MaxGroupLen:      tick.MaxGroupLen,
		AvgProbeEstimate: tick.AvgProbeEstimate,
		TombstoneRatio:   tick.TombstoneRatio,
	}

	a.updateRates(tick)

	a.alerts = tick.Alerts
	for k, v := range tick.AlertFlags {
		a.alertFlags[k] = v
	}

	a.events = append(a.events, tick.Events...)
	if over := len(a.events) - a.maxEvents; over > 0 {
		a.events = a.events[over:]
	}

	a.latest = tick
	a.haveTick = true
}

// updateRates derives the throughput estimates: dt is clamped to
// [1ms, 10s] against the previous tick's timestamp, an explicit
// ops_per_second_instant on the tick takes precedence over the derived
// delta, and the EMA is seeded to the first instant sample rather than
// starting at zero.
func (a *Aggregator) updateRates(tick Tick) {
	instant := tick.OpsPerSecondInstant
	if instant == 0 && a.haveTick {
		dt := tick.T - a.tPrev
		if dt < 0.001 {
			dt = 0.001
		}
		if dt > 10.0 {
			dt = 10.0
		}
		deltaOps := float64(tick.Ops) - float64(a.opsPrev)
		if deltaOps < 0 {
			deltaOps = 0
		}
		instant = deltaOps / dt
	}

	if !a.haveEMA {
		a.emaOps = instant
		a.haveEMA = true
	} else {
		a.emaOps = a.emaAlpha*instant + (1-a.emaAlpha)*a.emaOps
	}

	a.instOps = instant
	a.opsPrev = tick.Ops
	a.tPrev = tick.T
}

// OpsPerSecondInstant is the most recently computed instantaneous rate.
func (a *Aggregator) OpsPerSecondInstant() float64 { return a.instOps }

// OpsPerSecondEMA is the exponentially smoothed throughput estimate.
func (a *Aggregator) OpsPerSecondEMA() float64 { return a.emaOps }

// BuildSummary produces the schema=metrics.summary.v1 snapshot: the latest
// tick's backend name and gauges, throughput, cumulative totals, alerts, and
// alert flags. It carries no latency data. generatedAt is supplied by the caller since this package never
// calls the wall clock itself.
func (a *Aggregator) BuildSummary(generatedAt float64) Summary {
	flags := make(map[string]bool, len(a.alertFlags))
	for k, v := range a.alertFlags {
		flags[k] = v
	}

	return Summary{
		Schema:              SummarySchema,
		GeneratedAt:         generatedAt,
		Backend:             a.backend.Name,
		Ops:                 a.totals.Ops,
		OpsPerSecond:        a.emaOps,
		OpsPerSecondInstant: a.OpsPerSecondInstant(),
		OpsPerSecondEMA:     a.emaOps,
		Totals:              a.totals,
		BackendState:        a.backend,
		Alerts:              append([]Alert(nil), a.alerts...),
		AlertFlags:          flags,
	}
}

// LatestTick returns the most recently applied tick and whether any tick
// has been applied yet.
func (a *Aggregator) LatestTick() (Tick, bool) { return a.latest, a.haveTick }

// Events returns the retained event history, oldest first.
func (a *Aggregator) Events() []Event { return append([]Event(nil), a.events...) }
