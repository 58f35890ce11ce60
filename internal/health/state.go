package health

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Niyaz-313/trading-bot/internal/audit"
)

// State is the canonical health state of the monitored service.
type State string

const (
	StateUnknown  State = "unknown"
	StateActive   State = "active"
	StateInactive State = "inactive"
	StateFailed   State = "failed"
)

// Sample is one raw observation from the process supervisor.
type Sample struct {
	// ActiveState is the supervisor's activity string, e.g. systemd's
	// "active", "inactive", "activating", "deactivating".
	ActiveState string
	// Failed is set when the supervisor reports the unit failed, even if it
	// is simultaneously restarting.
	Failed bool
}

// Canonical maps a raw sample to the reported state. Failed takes precedence
// over anything else the supervisor says at the same time; a failed unit
// mid-restart is reported as failed, not activating.
func Canonical(s Sample) State {
	if s.Failed || s.ActiveState == "failed" {
		return StateFailed
	}
	if s.ActiveState == "active" {
		return StateActive
	}
	return StateInactive
}

// persistedState is the small state file holding the last reported state.
// Overwritten atomically on each reported transition, read once at startup.
type persistedState struct {
	State      State     `json:"state"`
	ObservedAt time.Time `json:"observed_at"`
}

// loadState reads the persisted state. A missing or unreadable file means
// the monitor starts from unknown.
func loadState(path string) State {
	b, err := os.ReadFile(path)
	if err != nil {
		return StateUnknown
	}
	var ps persistedState
	if err := json.Unmarshal(b, &ps); err != nil || ps.State == "" {
		return StateUnknown
	}
	return ps.State
}

// saveState writes the state file atomically (temp + rename).
func saveState(path string, st State, at time.Time) error {
	b, err := json.MarshalIndent(persistedState{State: st, ObservedAt: at.UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode state: %v", audit.ErrWrite, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", audit.ErrWrite, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", audit.ErrWrite, path, err)
	}
	return nil
}
