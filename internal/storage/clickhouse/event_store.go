package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"solana-event-log/internal/domain"
	"solana-event-log/internal/storage"
)

// EventStore implements storage.EventSink using ClickHouse.
//
// The table is a ReplacingMergeTree ordered by serial: the existence check
// turns sequential redeliveries into PersistDeduplicated, and rows written by
// racing inserts collapse to one on merge or when read with FINAL.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventSink = (*EventStore)(nil)

// Persist inserts the event unless a row with the same serial exists.
// The existence check and the insert are not atomic: concurrent writers of one serial
// can each report PersistWritten, so the deduplicated outcome undercounts on
// this sink. The table is a ReplacingMergeTree on serial, and reads use FINAL,
// so such rows still collapse to one.
func (s *EventStore) Persist(ctx context.Context, e *domain.Event, fingerprint string) (storage.PersistResult, error) {
	if fingerprint == "" {
		return 0, fmt.Errorf("persist event: empty fingerprint: %w", storage.ErrInvalidInput)
	}

	exists, err := s.exists(ctx, fingerprint)
	if err != nil {
		return 0, fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.PersistDeduplicated, nil
	}

	query := `
		INSERT INTO websockets_sol_event_log (
			program, type, signature, err, has_err, slot, blocktime, fee,
			instruction_index, authority, authority2, authority3,
			source, destination, destination2, misc1, misc2,
			ui_amount, base_amount, serial
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		e.Program, e.Type, e.Signature, e.Err, e.HasErr, e.Slot, e.ObservedAt, e.Fee,
		uint32(e.InstructionIndex), e.Authority, e.Authority2, e.Authority3,
		e.Source, e.Destination, e.Destination2, e.Misc1, e.Misc2,
		e.Amount, e.BaseAmount, fingerprint,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event %s: %w", fingerprint, err)
	}
	return storage.PersistWritten, nil
}

// GetByFingerprint retrieves an event by its serial.
func (s *EventStore) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Event, error) {
	query := `
		SELECT
			program, type, signature, err, has_err, slot, blocktime, fee,
			instruction_index, authority, authority2, authority3,
			source, destination, destination2, misc1, misc2,
			ui_amount, base_amount
		FROM websockets_sol_event_log FINAL
		WHERE serial = ?
		LIMIT 1
	`

	var (
		e     domain.Event
		index uint32
	)
	err := s.conn.QueryRow(ctx, query, fingerprint).Scan(
		&e.Program, &e.Type, &e.Signature, &e.Err, &e.HasErr, &e.Slot, &e.ObservedAt, &e.Fee,
		&index, &e.Authority, &e.Authority2, &e.Authority3,
		&e.Source, &e.Destination, &e.Destination2, &e.Misc1, &e.Misc2,
		&e.Amount, &e.BaseAmount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get event by fingerprint: %w", err)
	}
	e.InstructionIndex = int(index)

	return &e, nil
}

// Count returns the number of distinct serials.
func (s *EventStore) Count(ctx context.Context) (int64, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM websockets_sol_event_log FINAL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return int64(n), nil
}

// exists checks if an event with the given serial exists.
func (s *EventStore) exists(ctx context.Context, fingerprint string) (bool, error) {
	query := `SELECT count() FROM websockets_sol_event_log WHERE serial = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, fingerprint).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
