// Package bus is the engine's thin client onto the telemetry message bus.
// The bus transport itself is an external collaborator (spec.md §1); this
// package only knows how to publish a tag write and, for test fixtures, how
// to record what was published.
package bus

import (
	"context"

	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/pkg/pgnotify"
)

// Publisher is the contract the execution context depends on. Nodes never
// see a Publisher directly, only registry.ExecContext.Publish.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// PostgresBus publishes tag writes over Postgres LISTEN/NOTIFY, grounded on
// pkg/pgnotify.Bus. Publishes are fire-and-forget: the caller (TagOutput)
// ignores a NOTIFY failure, so it never fails the node.
type PostgresBus struct {
	inner *pgnotify.Bus
}

// Open connects a PostgresBus over dsn.
func Open(dsn string) (*PostgresBus, error) {
	b, err := pgnotify.New(dsn)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.Transient, err, "open telemetry bus")
	}
	return &PostgresBus{inner: b}, nil
}

// Publish sends payload as pg_notify(subject, json(payload)).
func (p *PostgresBus) Publish(ctx context.Context, subject string, payload any) error {
	if err := p.inner.Publish(ctx, subject, payload); err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "publish to telemetry bus")
	}
	return nil
}

// Close releases the underlying listener connection.
func (p *PostgresBus) Close() error {
	return p.inner.Close()
}

// Recording is an in-memory Publisher used by tests and dry runs (e.g. a
// TagOutput node configured with test_disable_writes still needs a
// Publisher in its ExecContext even though it never calls it).
type Recording struct {
	Published []Message
}

// Message is one recorded publish.
type Message struct {
	Subject string
	Payload any
}

func NewRecording() *Recording { return &Recording{} }

func (r *Recording) Publish(ctx context.Context, subject string, payload any) error {
	r.Published = append(r.Published, Message{Subject: subject, Payload: payload})
	return nil
}
