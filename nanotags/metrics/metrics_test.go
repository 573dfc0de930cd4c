package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePhase(t *testing.T) {
	m := NewFilter()
	m.ObservePhase("rapid", 2*time.Millisecond, 10)
	m.ObservePhase("rapid", time.Millisecond, 3)
	m.ObservePhase("advanced", time.Millisecond, 1)

	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("rapid")); got != 2 {
		t.Errorf("rapid evaluations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("advanced")); got != 1 {
		t.Errorf("advanced evaluations = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestNewFilterWithReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewFilterWith(reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewFilterWith(reg)
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}
	first.ObservePhase("rapid", time.Millisecond, 1)
	if got := testutil.ToFloat64(second.evaluations.WithLabelValues("rapid")); got != 1 {
		t.Errorf("collectors not shared, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewFilter()
	m.ObservePhase("advanced", time.Millisecond, 4)

	path := filepath.Join(t.TempDir(), "nanotags.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`nanotags_filter_evaluations_total{phase="advanced"} 1`,
		`nanotags_filter_duration_seconds_count{phase="advanced"} 1`,
		`nanotags_filter_results_sum{phase="advanced"} 4`,
	} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("textfile missing %q:\n%s", want, raw)
		}
	}

	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")); err == nil {
		t.Error("expected error for missing directory")
	}
}
