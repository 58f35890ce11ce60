package metrics

import (
	"time"

	"github.com/Niyaz-313/trading-bot/internal/health"
	"github.com/Niyaz-313/trading-bot/internal/reconcile"
	"github.com/Niyaz-313/trading-bot/internal/retention"
)

// Sink adapts Metrics to the reconciler/archiver/monitor sink interfaces.
type Sink struct{ M *Metrics }

// MergeCompleted implements reconcile.ReportSink.
func (s Sink) MergeCompleted(rep reconcile.Report, _ bool) {
	s.M.MergesTotal.Inc()
	s.M.MergeConflicts.Add(float64(rep.Conflicts))
	s.M.RecordsMerged.Add(float64(rep.RemoteOnly))
}

// SnapshotTaken implements retention.Sink.
func (s Sink) SnapshotTaken(retention.Archive) { s.M.SnapshotsTotal.Inc() }

// ArchivesPruned implements retention.Sink.
func (s Sink) ArchivesPruned(names []string) { s.M.ArchivesPruned.Add(float64(len(names))) }

// StateChanged implements health.TransitionSink.
func (s Sink) StateChanged(_, to health.State, _ time.Time) {
	s.M.TransitionsTotal.WithLabelValues(string(to)).Inc()
	for _, st := range []health.State{health.StateUnknown, health.StateActive, health.StateInactive, health.StateFailed} {
		v := 0.0
		if st == to {
			v = 1.0
		}
		s.M.HealthState.WithLabelValues(string(st)).Set(v)
	}
}
