package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Niyaz-313/trading-bot/internal/health"
	"github.com/Niyaz-313/trading-bot/internal/reconcile"
)

func TestSinkRecordsMergeOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())
	s := Sink{M: m}

	s.MergeCompleted(reconcile.Report{RemoteOnly: 3, Conflicts: 1, Total: 10}, true)
	if got := testutil.ToFloat64(m.MergesTotal); got != 1 {
		t.Fatalf("merges %v", got)
	}
	if got := testutil.ToFloat64(m.MergeConflicts); got != 1 {
		t.Fatalf("conflicts %v", got)
	}
	if got := testutil.ToFloat64(m.RecordsMerged); got != 3 {
		t.Fatalf("adopted %v", got)
	}
}

func TestSinkTracksHealthStateGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	s := Sink{M: m}

	s.StateChanged(health.StateUnknown, health.StateActive, time.Now())
	if got := testutil.ToFloat64(m.HealthState.WithLabelValues("active")); got != 1 {
		t.Fatalf("active gauge %v", got)
	}
	s.StateChanged(health.StateActive, health.StateFailed, time.Now())
	if got := testutil.ToFloat64(m.HealthState.WithLabelValues("active")); got != 0 {
		t.Fatalf("active gauge after failure %v", got)
	}
	if got := testutil.ToFloat64(m.HealthState.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed gauge %v", got)
	}
	if got := testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("transitions %v", got)
	}
}
