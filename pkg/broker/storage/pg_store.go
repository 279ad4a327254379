package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

// PGStore implements PersistenceStore on Postgres via direct pgx queries
// rather than a generated query layer, so the SQL is hand-written and
// visible at the call site instead of living behind codegen.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PGStore. The "messages" table is created by the
// migrations in internal/platform.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Store(ctx context.Context, msg message.Message) error {
	headers, err := json.Marshal(msg.Headers)
	if err != nil {
		return fmt.Errorf("marshaling headers: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (
			message_id, topic_name, payload, schema_version, priority,
			delivery_attempts, timestamp, status, ack_deadline, acknowledged_at, headers
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (message_id) DO UPDATE SET
			delivery_attempts = EXCLUDED.delivery_attempts,
			status            = EXCLUDED.status,
			ack_deadline      = EXCLUDED.ack_deadline,
			acknowledged_at   = EXCLUDED.acknowledged_at,
			headers           = EXCLUDED.headers,
			topic_name        = EXCLUDED.topic_name
	`,
		msg.MessageID, msg.TopicName, msg.Payload, msg.SchemaVersion, msg.Priority,
		msg.DeliveryAttempts, msg.Timestamp, msg.Status, msg.AckDeadline, msg.AcknowledgedAt, headers,
	)
	if err != nil {
		return fmt.Errorf("storing message %s: %w", msg.MessageID, err)
	}
	return nil
}

func (s *PGStore) Retrieve(ctx context.Context, id uuid.UUID) (message.Message, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT message_id, topic_name, payload, schema_version, priority,
		       delivery_attempts, timestamp, status, ack_deadline, acknowledged_at, headers
		FROM messages WHERE message_id = $1
	`, id)

	msg, err := scanMessage(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return message.Message{}, false, nil
		}
		return message.Message{}, false, fmt.Errorf("retrieving message %s: %w", id, err)
	}
	return msg, true, nil
}

func (s *PGStore) GetByTopic(ctx context.Context, topic string, limit int) ([]message.Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx, `
		SELECT message_id, topic_name, payload, schema_version, priority,
		       delivery_attempts, timestamp, status, ack_deadline, acknowledged_at, headers
		FROM messages WHERE topic_name = $1 ORDER BY timestamp ASC LIMIT $2
	`, topic, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages for topic %s: %w", topic, err)
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *PGStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE message_id = $1`, id); err != nil {
		return fmt.Errorf("deleting message %s: %w", id, err)
	}
	return nil
}

// rowScanner abstracts over pgx.Row and pgx.Rows, both of which implement Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (message.Message, error) {
	var (
		msg         message.Message
		headersJSON []byte
		ackDeadline *time.Time
		ackedAt     *time.Time
	)

	if err := row.Scan(
		&msg.MessageID, &msg.TopicName, &msg.Payload, &msg.SchemaVersion, &msg.Priority,
		&msg.DeliveryAttempts, &msg.Timestamp, &msg.Status, &ackDeadline, &ackedAt, &headersJSON,
	); err != nil {
		return message.Message{}, err
	}

	msg.AckDeadline = ackDeadline
	msg.AcknowledgedAt = ackedAt

	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &msg.Headers); err != nil {
			return message.Message{}, fmt.Errorf("unmarshaling headers: %w", err)
		}
	}

	return msg, nil
}
