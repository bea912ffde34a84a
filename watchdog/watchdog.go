// Package watchdog evaluates per-tick metrics against configured guardrail
// thresholds and emits rising/falling-edge alerts (C5).
package watchdog

import (
	"fmt"
	"math"

	"github.com/jguida941/adaptive-hashmap-core/logger"
)

// Policy is the set of guardrail thresholds the watchdog checks each tick.
// A zero-value (nil) threshold disables that check.
type Policy struct {
	Enabled bool

	LoadFactorWarn     *float64
	AvgProbeWarn       *float64
	TombstoneRatioWarn *float64
}

// Alert is one currently-firing guardrail, matching metrics.Alert's shape.
type Alert struct {
	Metric    string
	Value     float64
	Threshold float64
	Severity  string
	Backend   string
	Message   string
}

// Tick is the minimal set of fields the watchdog reads from a metrics tick.
type Tick struct {
	Backend          string
	LoadFactor       float64
	AvgProbeEstimate float64
	TombstoneRatio   float64
}

type check struct {
	metric    string
	value     float64
	threshold *float64
	prefix    string
}

// Watchdog holds per-metric firing state across calls to Evaluate, so it
// can tell a rising edge (first tick over threshold) from a repeat alert
// (still over threshold) and a falling edge (was over, now isn't).
type Watchdog struct {
	policy Policy
	log    logger.Logger
	active map[string]bool
}

// New constructs a Watchdog. A nil log uses logger.NoOp().
func New(policy Policy, log logger.Logger) *Watchdog {
	if log == nil {
		log = logger.NoOp()
	}
	return &Watchdog{policy: policy, log: log, active: map[string]bool{}}
}

// Evaluate checks tick against the configured thresholds, returning the
// alerts currently firing and a metric->firing flag map covering every
// metric with a configured threshold. Disabling the watchdog clears all
// state silently (logged once, if anything was active); unsetting a single
// metric's threshold pops its state silently too, logged as "cleared"
// rather than "resolved" since it was never actually observed falling
// below a live threshold.
func (w *Watchdog) Evaluate(tick Tick) ([]Alert, map[string]bool) {
	if !w.policy.Enabled {
		firing := 0
		for _, v := range w.active {
			if v {
				firing++
			}
		}
		if firing > 0 {
			w.log.Infof("Watchdog disabled; clearing %d active alerts", firing)
		}
		w.active = map[string]bool{}
		return nil, map[string]bool{}
	}

	backend := tick.Backend
	if backend == "" {
		backend = "unknown"
	}

	checks := []check{
		{"load_factor", tick.LoadFactor, w.policy.LoadFactorWarn, "Load factor guardrail exceeded"},
		{"avg_probe_estimate", tick.AvgProbeEstimate, w.policy.AvgProbeWarn, "Probe length guardrail exceeded"},
		{"tombstone_ratio", tick.TombstoneRatio, w.policy.TombstoneRatioWarn, "Tombstone ratio guardrail exceeded"},
	}

	var alerts []Alert
	flags := map[string]bool{}

	for _, c := range checks {
		if c.threshold == nil {
			if w.active[c.metric] {
				w.log.Infof("Watchdog cleared (%s): threshold disabled", c.metric)
			}
			delete(w.active, c.metric)
			continue
		}

		threshold := *c.threshold
		value, ok := safeFloat(c.value)
		isActive := ok && value >= threshold
		wasActive := w.active[c.metric]

		if isActive {
			if !wasActive {
				w.log.Errorf("Watchdog alert (%s): %.3f >= %.3f [backend=%s]", c.metric, value, threshold, backend)
			}
			alerts = append(alerts, Alert{
				Metric:    c.metric,
				Value:     value,
				Threshold: threshold,
				Severity:  "warning",
				Backend:   backend,
				Message:   formatMessage(c.prefix, value, threshold),
			})
		} else if wasActive {
			w.log.Infof("Watchdog resolved (%s): value=%s < %.3f [backend=%s]", c.metric, formatValueOrNA(value, ok), threshold, backend)
		}

		w.active[c.metric] = isActive
		flags[c.metric] = isActive
	}

	return alerts, flags
}

// safeFloat treats NaN/Inf as absent rather than as a (probably
// meaningless) comparison result.
func safeFloat(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatMessage(prefix string, value, threshold float64) string {
	return fmt.Sprintf("%s: %.3f >= %.3f", prefix, value, threshold)
}

func formatValueOrNA(value float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", value)
}
