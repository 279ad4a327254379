package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/coreshift/switchyard/pkg/broker/message"
)

// MemPersistenceStore is an in-process PersistenceStore for tests.
type MemPersistenceStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]message.Message
}

// NewMemPersistenceStore creates an empty MemPersistenceStore.
func NewMemPersistenceStore() *MemPersistenceStore {
	return &MemPersistenceStore{byID: make(map[uuid.UUID]message.Message)}
}

func (s *MemPersistenceStore) Store(_ context.Context, msg message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[msg.MessageID] = msg.Clone()
	return nil
}

func (s *MemPersistenceStore) Retrieve(_ context.Context, id uuid.UUID) (message.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	return msg, ok, nil
}

func (s *MemPersistenceStore) GetByTopic(_ context.Context, topic string, limit int) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []message.Message
	for _, m := range s.byID {
		if m.TopicName == topic {
			out = append(out, m)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemPersistenceStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}
