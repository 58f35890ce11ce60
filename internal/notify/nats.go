package notify

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATS publishes notifications to a subject, for deployments where alerts
// feed a message bus instead of (or alongside) a chat bot.
type NATS struct {
	conn    *nats.Conn
	subject string
}

// NewNATS connects to the given server and publishes to subject.
func NewNATS(url, subject string) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("botops-notifier"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATS{conn: conn, subject: subject}, nil
}

func (n *NATS) Notify(_ context.Context, text string) error {
	if err := n.conn.Publish(n.subject, []byte(text)); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	// Flush so a dead server surfaces now, not on the next transition.
	return n.conn.Flush()
}

// Close drains the connection.
func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}
