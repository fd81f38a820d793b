package storage

import (
	"context"

	"solana-event-log/internal/domain"
)

// PersistResult is the outcome of a successful Persist call.
type PersistResult int

const (
	// PersistWritten means a new row was stored.
	PersistWritten PersistResult = iota + 1
	// PersistDeduplicated means a row with the same fingerprint already existed.
	PersistDeduplicated
)

func (r PersistResult) String() string {
	switch r {
	case PersistWritten:
		return "written"
	case PersistDeduplicated:
		return "deduplicated"
	default:
		return "unknown"
	}
}

// EventSink provides access to websockets_sol_event_log storage.
// Implementations must be safe for concurrent use.
type EventSink interface {
	// Persist stores the event under fingerprint. A fingerprint conflict is
	// reported as PersistDeduplicated, never as an error.
	Persist(ctx context.Context, e *domain.Event, fingerprint string) (PersistResult, error)

	// GetByFingerprint retrieves an event. Returns ErrNotFound if not exists.
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Event, error)

	// Count returns the number of distinct stored events.
	Count(ctx context.Context) (int64, error)
}
