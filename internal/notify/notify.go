// Package notify delivers short operator alerts. Every sink is best-effort:
// a failed delivery is the caller's to log and swallow, never to retry
// mid-cycle. The next genuine transition will attempt delivery again.
package notify

import (
	"context"
	"errors"

	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

// Sink delivers one short human-readable message.
type Sink interface {
	Notify(ctx context.Context, text string) error
}

// Multi fans a message out to several sinks. Delivery is attempted on every
// sink regardless of earlier failures; errors are joined.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes notifications to the log. Always configured, so transitions
// are visible even with no external sink set up.
type LogSink struct {
	Logger logpkg.Logger
}

func (s LogSink) Notify(_ context.Context, text string) error {
	s.Logger.Info("notification", logpkg.Str("text", text))
	return nil
}
