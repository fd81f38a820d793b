// Package idhash derives deterministic identifiers for persisted rows.
package idhash

import (
	"crypto/sha256"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"

	"solana-event-log/internal/domain"
)

// ComputeFingerprint computes the deduplication key of an event.
// Formula: base58(SHA256(program|type|signature|err|slot|fee|source|destination|amount|instruction_index))
// ObservedAt is excluded so redelivered notifications hash identically.
func ComputeFingerprint(e *domain.Event) string {
	data := strings.Join([]string{
		e.Program,
		e.Type,
		e.Signature,
		e.Err,
		strconv.FormatUint(e.Slot, 10),
		formatFloat(e.Fee),
		e.Source,
		e.Destination,
		formatFloat(e.Amount),
		strconv.Itoa(e.InstructionIndex),
	}, "|")

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
