package watchdog

import (
	"bytes"
	"strings"
	"testing"

	aglog "github.com/aristanetworks/glog"

	"github.com/jguida941/adaptive-hashmap-core/glog"
)

func warn(v float64) *float64 { return &v }

// TestRisingAndFallingEdge: two ticks over threshold produce one
// rising-edge log but an alert on both (flags true throughout), then a
// tick below threshold clears the flag with a resolved log.
func TestRisingAndFallingEdge(t *testing.T) {
	buf := &bytes.Buffer{}
	aglog.SetOutput(buf)

	w := New(Policy{Enabled: true, LoadFactorWarn: warn(0.5)}, &glog.Glog{})

	alerts, flags := w.Evaluate(Tick{Backend: "robinhood", LoadFactor: 0.75})
	if len(alerts) != 1 || alerts[0].Metric != "load_factor" {
		t.Fatalf("expected one load_factor alert, got %+v", alerts)
	}
	if !flags["load_factor"] {
		t.Fatalf("expected alert_flags[load_factor]=true, got %v", flags)
	}
	if !strings.Contains(buf.String(), "Watchdog alert (load_factor)") {
		t.Fatalf("expected rising-edge log, got %q", buf.String())
	}

	buf.Reset()
	alerts, flags = w.Evaluate(Tick{Backend: "robinhood", LoadFactor: 0.75})
	if len(alerts) != 1 {
		t.Fatalf("expected repeat alert on second over-threshold tick, got %+v", alerts)
	}
	if !flags["load_factor"] {
		t.Fatalf("expected alert_flags[load_factor]=true on second tick, got %v", flags)
	}
	if strings.Contains(buf.String(), "Watchdog alert") {
		t.Fatalf("expected no rising-edge log on repeat alert, got %q", buf.String())
	}

	buf.Reset()
	alerts, flags = w.Evaluate(Tick{Backend: "robinhood", LoadFactor: 0.4})
	if len(alerts) != 0 {
		t.Fatalf("expected no alert once below threshold, got %+v", alerts)
	}
	if flags["load_factor"] {
		t.Fatalf("expected alert_flags[load_factor]=false, got %v", flags)
	}
	if !strings.Contains(buf.String(), "Watchdog resolved (load_factor)") {
		t.Fatalf("expected resolved log, got %q", buf.String())
	}
}

func TestDisabledPolicyClearsStateSilentlyExceptLogOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	aglog.SetOutput(buf)

	w := New(Policy{Enabled: true, LoadFactorWarn: warn(0.5)}, &glog.Glog{})
	w.Evaluate(Tick{LoadFactor: 0.9})

	w.policy.Enabled = false
	buf.Reset()
	alerts, flags := w.Evaluate(Tick{LoadFactor: 0.9})
	if len(alerts) != 0 || len(flags) != 0 {
		t.Fatalf("expected no alerts/flags while disabled, got %+v %+v", alerts, flags)
	}
	if !strings.Contains(buf.String(), "Watchdog disabled") {
		t.Fatalf("expected disabled-clearing log, got %q", buf.String())
	}
}

func TestUnsetThresholdClearsStateSilently(t *testing.T) {
	buf := &bytes.Buffer{}
	aglog.SetOutput(buf)

	w := New(Policy{Enabled: true, LoadFactorWarn: warn(0.5)}, &glog.Glog{})
	w.Evaluate(Tick{LoadFactor: 0.9})

	w.policy.LoadFactorWarn = nil
	buf.Reset()
	alerts, flags := w.Evaluate(Tick{LoadFactor: 0.9})
	if len(alerts) != 0 {
		t.Fatalf("expected no alert once threshold unset, got %+v", alerts)
	}
	if _, present := flags["load_factor"]; present {
		t.Fatalf("expected no flag entry once threshold unset, got %+v", flags)
	}
	if !strings.Contains(buf.String(), "threshold disabled") {
		t.Fatalf("expected cleared-threshold-disabled log, got %q", buf.String())
	}
}

func TestNonFiniteValueTreatedAsAbsent(t *testing.T) {
	w := New(Policy{Enabled: true, AvgProbeWarn: warn(3.0)}, nil)
	alerts, flags := w.Evaluate(Tick{AvgProbeEstimate: posInf()})
	if len(alerts) != 0 {
		t.Fatalf("expected non-finite value to not fire, got %+v", alerts)
	}
	if flags["avg_probe_estimate"] {
		t.Fatalf("expected flag false for non-finite value, got %v", flags)
	}
}

func posInf() float64 {
	var zero float64
	return 1 / zero
}
