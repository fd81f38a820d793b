package ingestion

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-event-log/internal/layout"
	"solana-event-log/internal/solana"
)

// SkipReason explains why an instruction produced no Classified record.
type SkipReason string

const (
	SkipProgramIndex    SkipReason = "program_index_out_of_range"
	SkipUnmappedProgram SkipReason = "unmapped_program"
	SkipInvalidData     SkipReason = "invalid_data"
	SkipUnrecognized    SkipReason = "unrecognized"
	SkipTruncated       SkipReason = "truncated"
	SkipAccountIndex    SkipReason = "account_index_out_of_range"
)

// Skip is the diagnostic for one skipped instruction.
type Skip struct {
	Index   int
	Program string
	Reason  SkipReason
	Err     error
}

// Classified is a decoded instruction with its account addresses resolved.
type Classified struct {
	Index          int
	ProgramAddress string
	Family         solana.ProgramFamily
	Record         *layout.Record
	Accounts       []string
}

// Account returns the i-th instruction account address, or "".
func (c Classified) Account(i int) string {
	if i < 0 || i >= len(c.Accounts) {
		return ""
	}
	return c.Accounts[i]
}

// Classifier identifies known instructions within a transaction.
type Classifier struct {
	decoder *layout.Decoder
}

// NewClassifier creates a classifier. A nil decoder uses the default registry.
func NewClassifier(decoder *layout.Decoder) *Classifier {
	if decoder == nil {
		decoder = layout.NewDecoder(nil)
	}
	return &Classifier{decoder: decoder}
}

// Classify decodes every top-level instruction of tx in order. A failing
// instruction is reported in skips and never affects its siblings.
func (c *Classifier) Classify(tx *solana.TransactionWithMeta) ([]Classified, []Skip) {
	keys := tx.AccountKeys()

	var (
		out   []Classified
		skips []Skip
	)
	for i, ix := range tx.Instructions() {
		cl, skip := c.classifyOne(i, ix, keys)
		if skip != nil {
			skips = append(skips, *skip)
			continue
		}
		out = append(out, cl)
	}
	return out, skips
}

func (c *Classifier) classifyOne(index int, ix solana.Instruction, keys []string) (Classified, *Skip) {
	if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(keys) {
		return Classified{}, &Skip{
			Index:  index,
			Reason: SkipProgramIndex,
			Err:    fmt.Errorf("program index %d out of range (%d keys)", ix.ProgramIDIndex, len(keys)),
		}
	}
	program := keys[ix.ProgramIDIndex]

	family, ok := solana.FamilyOf(program)
	if !ok {
		return Classified{}, &Skip{Index: index, Program: program, Reason: SkipUnmappedProgram}
	}

	data, err := base58.Decode(ix.Data)
	if err != nil {
		return Classified{}, &Skip{
			Index:   index,
			Program: program,
			Reason:  SkipInvalidData,
			Err:     fmt.Errorf("decode instruction data: %w", err),
		}
	}

	record, err := c.decoder.Decode(family, data)
	if err != nil {
		reason := SkipUnrecognized
		if errors.Is(err, layout.ErrTruncated) {
			reason = SkipTruncated
		}
		return Classified{}, &Skip{Index: index, Program: program, Reason: reason, Err: err}
	}

	accounts := make([]string, len(ix.Accounts))
	for j, ki := range ix.Accounts {
		if ki < 0 || ki >= len(keys) {
			return Classified{}, &Skip{
				Index:   index,
				Program: program,
				Reason:  SkipAccountIndex,
				Err:     fmt.Errorf("account %d: key index %d out of range (%d keys)", j, ki, len(keys)),
			}
		}
		accounts[j] = keys[ki]
	}

	return Classified{
		Index:          index,
		ProgramAddress: program,
		Family:         family,
		Record:         record,
		Accounts:       accounts,
	}, nil
}
