// Package storage defines the broker's durable message store and in-memory
// ordered queue (C3), and ships a Postgres-backed PersistenceStore plus a
// mutex-guarded in-memory Queue.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

// PersistenceStore is the durable system of record for messages, keyed by id
// and queryable by topic. Backed by Postgres in production; the broker
// itself owns no storage engine beyond this abstraction (there is no
// persistent durable log beneath it).
type PersistenceStore interface {
	Store(ctx context.Context, msg message.Message) error
	Retrieve(ctx context.Context, id uuid.UUID) (message.Message, bool, error)
	GetByTopic(ctx context.Context, topic string, limit int) ([]message.Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Queue is an ordered, in-memory reference queue: it holds references to
// messages (by id, or the message itself for simplicity) so the router and
// delivery/DLQ/ack-timeout machinery can peek, enqueue, and count without
// round-tripping to PersistenceStore on every operation.
type Queue interface {
	Enqueue(ctx context.Context, msg message.Message) error
	Peek(ctx context.Context, limit int) ([]message.Message, error)
	Count(ctx context.Context) (int, error)
}

// Remover is an optional capability a Queue implementation may provide to
// drop a message once it no longer needs to be peeked (delivered,
// acknowledged, or moved to a DLQ topic). Implementations that don't support
// it (e.g. a pure reference queue backed by an external broker) can omit it;
// callers type-assert for it.
type Remover interface {
	Remove(ctx context.Context, id uuid.UUID) error
}
