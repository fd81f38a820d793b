package ingestion

import (
	"context"

	"solana-event-log/internal/domain"
	"solana-event-log/internal/storage"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

// EventSink persists canonical events keyed by fingerprint.
type EventSink interface {
	Persist(ctx context.Context, e *domain.Event, fingerprint string) (storage.PersistResult, error)
}

// Submitter accepts persistence jobs.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// Job is one event awaiting persistence.
type Job struct {
	Event       *domain.Event
	Fingerprint string
}
