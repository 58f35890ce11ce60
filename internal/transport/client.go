// Package transport is the HTTP client side of replica synchronization. Every
// call is bounded by the configured timeout; an exceeded bound surfaces as
// ErrTimeout so the reconciler can defer the run instead of failing it.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Niyaz-313/trading-bot/internal/audit"
)

// ErrTimeout reports a transport call that exceeded its bound.
var ErrTimeout = errors.New("transport: peer call timed out")

// Client talks to a peer's HTTP API. It implements reconcile.Peer.
type Client struct {
	// BaseURL is the peer's API root, e.g. "http://replica:8787".
	BaseURL string
	// Timeout bounds each call. Zero means 15s.
	Timeout time.Duration
	// HTTPClient is overridable in tests.
	HTTPClient *http.Client
}

// New creates a Client for the given peer.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, Timeout: timeout}
}

// Head fetches the peer's highest sequence id. A cheap divergence probe: if
// both heads match, a scheduler can skip the full dump.
func (c *Client) Head(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/store/head", nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transport: head: status %s", resp.Status)
	}
	var out struct {
		LastSequenceID string `json:"last_sequence_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transport: head: %w", err)
	}
	return out.LastSequenceID, nil
}

// Dump fetches the peer's full record sequence in store order. A corrupt
// record on the peer surfaces as audit.ErrCorruptRecord, whether the peer
// refuses the dump outright (422) or a corrupt line slips into the body;
// either way the reconciliation aborts before any mutation.
func (c *Client) Dump(ctx context.Context) ([]audit.Record, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/store/dump", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnprocessableEntity {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("transport: dump: peer store: %w", audit.ErrCorruptRecord)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport: dump: status %s", resp.Status)
	}
	records, err := audit.ReadJSONL(resp.Body)
	if err != nil {
		if c.timedOut(ctx, err) {
			return nil, fmt.Errorf("%w: dump body: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("transport: dump: %w", err)
	}
	return records, nil
}

// Adopt pushes the merged sequence to the peer, which replaces its store
// atomically.
func (c *Client) Adopt(ctx context.Context, records []audit.Record) error {
	var body bytes.Buffer
	if err := audit.WriteJSONL(&body, records); err != nil {
		return fmt.Errorf("transport: adopt encode: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/store/adopt", &body, "application/x-ndjson")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("transport: adopt: status %s", resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(cctx, method, strings.TrimRight(c.BaseURL, "/")+path, body)
	if err != nil {
		cancel()
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		if c.timedOut(cctx, err) {
			return nil, fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return nil, fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	// The body must stay readable past this call; tie the context's lifetime
	// to the body instead of cancelling here.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) timedOut(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
