// Package metrics exposes botops Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the services report into.
type Metrics struct {
	AppendsTotal     prometheus.Counter
	MergesTotal      prometheus.Counter
	MergeConflicts   prometheus.Counter
	RecordsMerged    prometheus.Counter
	SnapshotsTotal   prometheus.Counter
	ArchivesPruned   prometheus.Counter
	TransitionsTotal *prometheus.CounterVec
	NotifyFailures   prometheus.Counter
	HealthState      *prometheus.GaugeVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AppendsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botops_audit_appends_total",
			Help: "Records appended to the live audit store.",
		}),
		MergesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botops_reconcile_merges_total",
			Help: "Completed reconciliation runs.",
		}),
		MergeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botops_reconcile_conflicts_total",
			Help: "Sequence-id conflicts retained under disambiguated ids.",
		}),
		RecordsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botops_reconcile_records_adopted_total",
			Help: "Records adopted from the remote replica.",
		}),
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botops_retention_snapshots_total",
			Help: "Snapshot archives written.",
		}),
		ArchivesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botops_retention_archives_pruned_total",
			Help: "Snapshot archives deleted by retention.",
		}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botops_health_transitions_total",
			Help: "Reported health state transitions.",
		}, []string{"to"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botops_notify_failures_total",
			Help: "Failed notification deliveries (logged and swallowed).",
		}),
		HealthState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "botops_health_state",
			Help: "Current canonical health state (1 for the active label).",
		}, []string{"state"}),
	}
	reg.MustRegister(
		m.AppendsTotal, m.MergesTotal, m.MergeConflicts, m.RecordsMerged,
		m.SnapshotsTotal, m.ArchivesPruned, m.TransitionsTotal,
		m.NotifyFailures, m.HealthState,
	)
	return m
}
