package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject update notices are published on.
const DefaultSubject = "update_gate.update_available"

var _ Notifier = (*NATS)(nil)

// NATS publishes JSON-encoded notices to a subject.
type NATS struct {
	conn    *nats.Conn
	subject string
}

func NewNATS(cfg NATSConfig, opts ...nats.Option) (*NATS, error) {
	cfg.Defaults()
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	return &NATS{conn: nc, subject: cfg.Subject}, nil
}

func (p *NATS) NotifyUpdate(_ context.Context, n Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notice: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	return p.conn.Flush()
}

func (p *NATS) Close() error {
	p.conn.Close()
	return nil
}
