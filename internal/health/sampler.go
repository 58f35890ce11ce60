package health

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// SystemdSampler observes a systemd unit via systemctl, the supervisor the
// deployment runs under.
type SystemdSampler struct {
	Unit string
	// runner is overridable in tests.
	runner func(ctx context.Context, name string, args ...string) (string, error)
}

// NewSystemdSampler creates a sampler for the given unit.
func NewSystemdSampler(unit string) *SystemdSampler {
	return &SystemdSampler{Unit: unit, runner: runCommand}
}

// Sample runs `systemctl is-active` and `systemctl is-failed`. Both commands
// exit non-zero for the states we care about, so only an unparseable output
// counts as a sampling error.
func (s *SystemdSampler) Sample(ctx context.Context) (Sample, error) {
	active, aerr := s.runner(ctx, "systemctl", "is-active", s.Unit)
	failed, ferr := s.runner(ctx, "systemctl", "is-failed", s.Unit)
	if aerr != nil && active == "" {
		return Sample{}, fmt.Errorf("systemctl is-active %s: %w", s.Unit, aerr)
	}
	_ = ferr // non-zero exit just means "not failed"
	return Sample{
		ActiveState: active,
		Failed:      failed == "failed",
	}, nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return strings.TrimSpace(string(out)), err
}

// HTTPSampler probes the service's own health endpoint. Used where the
// monitor runs off-host and systemctl is not reachable.
type HTTPSampler struct {
	URL     string
	Timeout time.Duration
	// Client is overridable in tests.
	Client *http.Client
}

// Sample maps the probe outcome: 2xx is active, a 5xx answer is failed, and
// connection refusal is inactive (the service is simply not running).
func (s *HTTPSampler) Sample(ctx context.Context) (Sample, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return Sample{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		if cctx.Err() != nil {
			return Sample{}, cctx.Err()
		}
		return Sample{ActiveState: "inactive"}, nil
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return Sample{Failed: true}, nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Sample{ActiveState: "active"}, nil
	}
	return Sample{ActiveState: "inactive"}, nil
}
