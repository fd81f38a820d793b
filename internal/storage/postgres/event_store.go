package postgres

import (
	"context"
	"fmt"

	"solana-event-log/internal/domain"
	"solana-event-log/internal/storage"
)

// EventStore implements storage.EventSink using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventSink = (*EventStore)(nil)

// Persist inserts the event. A conflict on serial is a successful no-op.
func (s *EventStore) Persist(ctx context.Context, e *domain.Event, fingerprint string) (storage.PersistResult, error) {
	if fingerprint == "" {
		return 0, fmt.Errorf("persist event: empty fingerprint: %w", storage.ErrInvalidInput)
	}

	query := `
		INSERT INTO websockets_sol_event_log (
			program, type, signature, err, has_err, slot, blocktime, fee,
			instruction_index, authority, authority2, authority3,
			source, destination, destination2, misc1, misc2,
			ui_amount, base_amount, serial
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20
		)
		ON CONFLICT (serial) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		e.Program,
		e.Type,
		e.Signature,
		e.Err,
		e.HasErr,
		int64(e.Slot),
		e.ObservedAt,
		e.Fee,
		e.InstructionIndex,
		e.Authority,
		e.Authority2,
		e.Authority3,
		e.Source,
		e.Destination,
		e.Destination2,
		e.Misc1,
		e.Misc2,
		e.Amount,
		e.BaseAmount,
		fingerprint,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return 0, fmt.Errorf("insert event %s: %w", fingerprint, storage.ErrDuplicateKey)
		}
		return 0, fmt.Errorf("insert event %s: %w", fingerprint, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.PersistDeduplicated, nil
	}
	return storage.PersistWritten, nil
}

// GetByFingerprint retrieves an event by its serial.
func (s *EventStore) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Event, error) {
	query := `
		SELECT program, type, signature, err, has_err, slot, blocktime, fee,
			instruction_index, authority, authority2, authority3,
			source, destination, destination2, misc1, misc2,
			ui_amount, base_amount
		FROM websockets_sol_event_log
		WHERE serial = $1
	`

	var (
		e          domain.Event
		slot       int64
		baseAmount int64
	)
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(
		&e.Program,
		&e.Type,
		&e.Signature,
		&e.Err,
		&e.HasErr,
		&slot,
		&e.ObservedAt,
		&e.Fee,
		&e.InstructionIndex,
		&e.Authority,
		&e.Authority2,
		&e.Authority3,
		&e.Source,
		&e.Destination,
		&e.Destination2,
		&e.Misc1,
		&e.Misc2,
		&e.Amount,
		&baseAmount,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get event by fingerprint: %w", err)
	}
	e.Slot = uint64(slot)
	e.BaseAmount = uint64(baseAmount)

	return &e, nil
}

// Count returns the number of stored events.
func (s *EventStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM websockets_sol_event_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
