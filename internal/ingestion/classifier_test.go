package ingestion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-event-log/internal/layout"
	"solana-event-log/internal/solana"
)

func TestClassifier_SystemTransfer(t *testing.T) {
	keys := []string{walletA, walletB, programAddress(t, solana.FamilySystem)}
	tx := newTx(keys, nil, solana.Instruction{
		ProgramIDIndex: 2,
		Accounts:       []int{0, 1},
		Data:           systemTransferData(1_000_000_000_000),
	})

	classified, skips := NewClassifier(nil).Classify(tx)
	require.Empty(t, skips)
	require.Len(t, classified, 1)

	c := classified[0]
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, solana.FamilySystem, c.Family)
	assert.Equal(t, "transfer", c.Record.Instruction)
	assert.Equal(t, uint64(1_000_000_000_000), c.Record.Uint("lamports"))
	assert.Equal(t, []string{walletA, walletB}, c.Accounts)
	assert.Equal(t, "", c.Account(5))
}

func TestClassifier_SkipsDoNotAffectSiblings(t *testing.T) {
	memo := "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
	keys := []string{walletA, walletB, programAddress(t, solana.FamilySystem), memo}

	tx := newTx(keys, nil,
		solana.Instruction{ProgramIDIndex: 3, Accounts: []int{0}, Data: "3Bxs4Bc3VYuGVB19"},
		solana.Instruction{ProgramIDIndex: 9, Accounts: []int{0}, Data: systemTransferData(1)},
		solana.Instruction{ProgramIDIndex: 2, Accounts: []int{0, 1}, Data: "0OIl"},
		solana.Instruction{ProgramIDIndex: 2, Accounts: []int{0, 1}, Data: encode(u32le(2), []byte{1, 2})},
		solana.Instruction{ProgramIDIndex: 2, Accounts: []int{0, 1}, Data: encode(u32le(77))},
		solana.Instruction{ProgramIDIndex: 2, Accounts: []int{0, 42}, Data: systemTransferData(1)},
		solana.Instruction{ProgramIDIndex: 2, Accounts: []int{1, 0}, Data: systemTransferData(7)},
	)

	classified, skips := NewClassifier(nil).Classify(tx)

	require.Len(t, classified, 1)
	assert.Equal(t, 6, classified[0].Index)
	assert.Equal(t, []string{walletB, walletA}, classified[0].Accounts)
	assert.Equal(t, uint64(7), classified[0].Record.Uint("lamports"))

	reasons := make([]SkipReason, len(skips))
	for i, s := range skips {
		reasons[i] = s.Reason
		assert.Equal(t, i, s.Index)
	}
	assert.Equal(t, []SkipReason{
		SkipUnmappedProgram,
		SkipProgramIndex,
		SkipInvalidData,
		SkipTruncated,
		SkipUnrecognized,
		SkipAccountIndex,
	}, reasons)

	assert.True(t, errors.Is(skips[3].Err, layout.ErrTruncated))
	assert.True(t, errors.Is(skips[4].Err, layout.ErrUnrecognized))
}

func TestClassifier_LoadedAddresses(t *testing.T) {
	// Program and destination come from the address lookup table.
	keys := []string{walletA}
	loaded := &solana.LoadedAddresses{
		Writable: []string{walletB},
		Readonly: []string{programAddress(t, solana.FamilySystem)},
	}
	tx := newTx(keys, loaded, solana.Instruction{
		ProgramIDIndex: 2,
		Accounts:       []int{0, 1},
		Data:           systemTransferData(5),
	})

	classified, skips := NewClassifier(nil).Classify(tx)
	require.Empty(t, skips)
	require.Len(t, classified, 1)
	assert.Equal(t, []string{walletA, walletB}, classified[0].Accounts)
}

func TestClassifier_TokenTransferChecked(t *testing.T) {
	mint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	keys := []string{walletA, mint, walletB, "Owner1111111111111111111111111111111111111", programAddress(t, solana.FamilyToken)}
	tx := newTx(keys, nil, solana.Instruction{
		ProgramIDIndex: 4,
		Accounts:       []int{0, 1, 2, 3},
		Data:           encode([]byte{12}, u64le(5_000_000), []byte{6}),
	})

	classified, skips := NewClassifier(nil).Classify(tx)
	require.Empty(t, skips)
	require.Len(t, classified, 1)
	assert.Equal(t, solana.FamilyToken, classified[0].Family)
	assert.Equal(t, "transferChecked", classified[0].Record.Instruction)
	assert.Equal(t, uint64(6), classified[0].Record.Uint("decimals"))
}

func TestClassifier_EmptyTransaction(t *testing.T) {
	classified, skips := NewClassifier(nil).Classify(&solana.TransactionWithMeta{})
	assert.Empty(t, classified)
	assert.Empty(t, skips)
}
