// Package health samples the run state of the monitored trading service and
// reports genuine transitions, debounced against the last persisted state so
// an operator is never flooded with duplicate alerts.
package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

// Sampler observes the supervised service. Implementations must respect ctx.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// Notifier delivers a short human-readable alert. Delivery is best-effort:
// failures are logged and swallowed, never retried mid-cycle.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// TransitionSink receives reported transitions (ops journal, metrics,
// the gRPC health surface).
type TransitionSink interface {
	StateChanged(from, to State, at time.Time)
}

// Monitor is the periodic health monitor.
type Monitor struct {
	sampler         Sampler
	notifier        Notifier
	stateFile       string
	service         string
	host            string
	interval        time.Duration
	logger          logpkg.Logger
	sinks           []TransitionSink
	onNotifyFailure func()

	// now is overridable in tests.
	now func() time.Time

	mu   sync.Mutex
	last State
}

// Options configures a Monitor.
type Options struct {
	Sampler   Sampler
	Notifier  Notifier
	StateFile string
	Service   string
	// Host labels notifications. Empty means os.Hostname.
	Host     string
	Interval time.Duration
	Logger   logpkg.Logger
	Sinks    []TransitionSink
	// OnNotifyFailure is called once per failed delivery (metrics). Optional.
	OnNotifyFailure func()
}

// New creates a Monitor. The last persisted state is read once here and held
// in memory; ticks compare against it, not the file.
func New(opts Options) *Monitor {
	host := opts.Host
	if host == "" {
		host, _ = os.Hostname()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Monitor{
		sampler:         opts.Sampler,
		notifier:        opts.Notifier,
		stateFile:       opts.StateFile,
		service:         opts.Service,
		host:            host,
		interval:        interval,
		logger:          opts.Logger.WithComponent("health"),
		sinks:           opts.Sinks,
		onNotifyFailure: opts.OnNotifyFailure,
		now:             func() time.Time { return time.Now().UTC() },
		last:            loadState(opts.StateFile),
	}
}

// State returns the last reported state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run ticks the monitor on its interval until ctx is done. The first tick
// fires immediately.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one sample-compare-report cycle.
//
// Persist-before-notify: the new state is written to the state file before
// the notifier runs, so a crash after persisting cannot re-alert on restart.
// If persisting fails the notification is suppressed for this cycle and the
// in-memory state is left unchanged, so the next tick retries the whole
// transition.
func (m *Monitor) Tick(ctx context.Context) {
	st := m.observe(ctx)

	m.mu.Lock()
	prev := m.last
	m.mu.Unlock()
	if st == prev {
		return
	}

	at := m.now()
	if err := saveState(m.stateFile, st, at); err != nil {
		m.logger.Error("state persist failed; suppressing notification", logpkg.Err(err))
		return
	}
	m.mu.Lock()
	m.last = st
	m.mu.Unlock()

	m.logger.Info("state transition",
		logpkg.Str("from", string(prev)), logpkg.Str("to", string(st)))
	for _, s := range m.sinks {
		s.StateChanged(prev, st, at)
	}

	if m.notifier != nil {
		text := fmt.Sprintf("[%s] %s: %s -> %s at %s",
			m.host, m.service, prev, st, at.Format(time.RFC3339))
		if err := m.notifier.Notify(ctx, text); err != nil {
			m.logger.Warn("notification delivery failed", logpkg.Err(err))
			if m.onNotifyFailure != nil {
				m.onNotifyFailure()
			}
		}
	}
}

func (m *Monitor) observe(ctx context.Context) State {
	sample, err := m.sampler.Sample(ctx)
	if err != nil {
		m.logger.Warn("supervisor sample failed", logpkg.Err(err))
		return StateUnknown
	}
	return Canonical(sample)
}
