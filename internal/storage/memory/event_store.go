package memory

import (
	"context"
	"sync"

	"solana-event-log/internal/domain"
	"solana-event-log/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventSink.
type EventStore struct {
	mu    sync.RWMutex
	data  []*domain.Event
	index map[string]*domain.Event
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data:  make([]*domain.Event, 0),
		index: make(map[string]*domain.Event),
	}
}

// Compile-time interface check.
var _ storage.EventSink = (*EventStore)(nil)

// Persist stores a copy of the event unless its fingerprint is already present.
func (s *EventStore) Persist(_ context.Context, e *domain.Event, fingerprint string) (storage.PersistResult, error) {
	if e == nil || fingerprint == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[fingerprint]; ok {
		return storage.PersistDeduplicated, nil
	}

	// Store a copy
	copy := *e
	s.data = append(s.data, &copy)
	s.index[fingerprint] = &copy

	return storage.PersistWritten, nil
}

// GetByFingerprint retrieves a copy of the stored event.
func (s *EventStore) GetByFingerprint(_ context.Context, fingerprint string) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.index[fingerprint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *e
	return &copy, nil
}

// Count returns the number of stored events.
func (s *EventStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

// All returns copies of stored events in insertion order.
func (s *EventStore) All() []*domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Event, len(s.data))
	for i, e := range s.data {
		copy := *e
		out[i] = &copy
	}
	return out
}
