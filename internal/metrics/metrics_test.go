package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Scans.WithLabelValues("succeeded").Inc()

	if got := testutil.ToFloat64(a.Scans.WithLabelValues("succeeded")); got != 1 {
		t.Errorf("expected 1 scan on first instance, got %v", got)
	}
	if got := testutil.ToFloat64(b.Scans.WithLabelValues("succeeded")); got != 0 {
		t.Errorf("expected instances not to share counters, got %v", got)
	}
}

func TestNew_Gather(t *testing.T) {
	m := New()
	m.InFlight.Inc()
	m.InFlight.Dec()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "ransomware_detector_inference_in_flight" {
			found = true
		}
	}
	if !found {
		t.Error("expected in-flight gauge to be registered")
	}
}
