package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/Niyaz-313/trading-bot/internal/audit"
	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

// ErrCorruptInput reports an unparseable record in either input. The run
// aborts without mutating anything.
var ErrCorruptInput = errors.New("reconcile: corrupt input")

// Peer is the remote replica as seen by the reconciler. Implementations
// bound every call by a timeout; an exceeded bound surfaces as a transport
// error and the run is deferred, not failed permanently.
type Peer interface {
	// Dump fetches the peer's full record sequence in store order.
	Dump(ctx context.Context) ([]audit.Record, error)
	// Adopt replaces the peer's store with the merged sequence.
	Adopt(ctx context.Context, records []audit.Record) error
}

// ReportSink receives the outcome of completed runs (ops journal, metrics).
type ReportSink interface {
	MergeCompleted(rep Report, remoteAdopted bool)
}

// Reconciler merges the local store with a remote replica.
type Reconciler struct {
	store  *audit.Store
	peer   Peer
	logger logpkg.Logger
	sinks  []ReportSink
	tags   Tags
}

// New creates a Reconciler. Sinks are optional.
func New(store *audit.Store, peer Peer, logger logpkg.Logger, sinks ...ReportSink) *Reconciler {
	return &Reconciler{
		store:  store,
		peer:   peer,
		logger: logger.WithComponent("reconciler"),
		sinks:  sinks,
		tags:   DefaultTags,
	}
}

// Run performs one reconciliation: read both sides, merge, adopt locally
// (the durable commit point), then push the result to the peer best-effort.
// A corrupt record on either side aborts before any mutation. A transport
// failure on the push leaves the peer divergent; the next run converges it.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	local, err := r.store.ReadAll()
	if err != nil {
		if errors.Is(err, audit.ErrCorruptRecord) {
			return Report{}, fmt.Errorf("%w: local: %v", ErrCorruptInput, err)
		}
		return Report{}, err
	}
	remote, err := r.peer.Dump(ctx)
	if err != nil {
		if errors.Is(err, audit.ErrCorruptRecord) {
			return Report{}, fmt.Errorf("%w: remote: %v", ErrCorruptInput, err)
		}
		return Report{}, err
	}

	merged, rep := Merge(local, remote, r.tags)
	if rep.Conflicts > 0 {
		r.logger.Warn("merge conflicts retained under disambiguated ids",
			logpkg.Int("conflicts", rep.Conflicts))
	}

	if rep.Changed() {
		if err := r.store.Rewrite(merged); err != nil {
			return rep, err
		}
	}

	remoteAdopted := true
	if rep.Total != len(remote) || rep.Conflicts > 0 || rep.LocalOnly > 0 {
		if err := r.peer.Adopt(ctx, merged); err != nil {
			remoteAdopted = false
			r.logger.Warn("remote adoption deferred", logpkg.Err(err))
		}
	}

	r.logger.Info("reconciliation complete",
		logpkg.Int("shared", rep.Shared),
		logpkg.Int("local_only", rep.LocalOnly),
		logpkg.Int("remote_only", rep.RemoteOnly),
		logpkg.Int("conflicts", rep.Conflicts),
		logpkg.Int("total", rep.Total),
		logpkg.Bool("remote_adopted", remoteAdopted),
	)
	for _, s := range r.sinks {
		s.MergeCompleted(rep, remoteAdopted)
	}
	return rep, nil
}
