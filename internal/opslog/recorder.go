package opslog

import (
	"context"
	"time"

	"github.com/Niyaz-313/trading-bot/internal/health"
	"github.com/Niyaz-313/trading-bot/internal/reconcile"
	"github.com/Niyaz-313/trading-bot/internal/retention"
	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

// Recorder adapts the journal to the sink interfaces of the reconciler, the
// archiver and the health monitor. Journal failures are logged and swallowed:
// the journal observes operations, it never vetoes them.
type Recorder struct {
	log    *Log
	logger logpkg.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(log *Log, logger logpkg.Logger) *Recorder {
	return &Recorder{log: log, logger: logger.WithComponent("opslog")}
}

func (r *Recorder) append(kind string, detail interface{}) {
	if _, err := r.log.Append(context.Background(), kind, detail); err != nil {
		r.logger.Warn("journal append failed", logpkg.Str("kind", kind), logpkg.Err(err))
	}
}

// MergeCompleted implements reconcile.ReportSink.
func (r *Recorder) MergeCompleted(rep reconcile.Report, remoteAdopted bool) {
	r.append(KindMerge, struct {
		reconcile.Report
		RemoteAdopted bool `json:"remote_adopted"`
	}{rep, remoteAdopted})
}

// SnapshotTaken implements retention.Sink.
func (r *Recorder) SnapshotTaken(a retention.Archive) {
	r.append(KindSnapshot, map[string]interface{}{
		"archive": a.Name,
		"records": a.Records,
	})
}

// ArchivesPruned implements retention.Sink.
func (r *Recorder) ArchivesPruned(names []string) {
	r.append(KindPrune, map[string]interface{}{"archives": names})
}

// StateChanged implements health.TransitionSink.
func (r *Recorder) StateChanged(from, to health.State, at time.Time) {
	r.append(KindTransition, map[string]interface{}{
		"from": from,
		"to":   to,
		"at":   at.UTC().Format(time.RFC3339),
	})
}
