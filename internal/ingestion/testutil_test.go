package ingestion

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"solana-event-log/internal/solana"
)

const (
	testSignature = "5h6xBEauJ3PK6SWCZ1PGjBvj8vDdWG3KpwATGy1ARAXFSDwt8GFXM7W5Ncn16wmqokgpiKRLuS83KUxyZyv2sUYv"
	testSlot      = uint64(224341380)
	walletA       = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	walletB       = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func programAddress(t *testing.T, f solana.ProgramFamily) string {
	t.Helper()
	addr, ok := solana.ProgramAddress(f)
	require.True(t, ok)
	return addr
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func encode(parts ...[]byte) string {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return base58.Encode(out)
}

func systemTransferData(lamports uint64) string {
	return encode(u32le(2), u64le(lamports))
}

func newTx(keys []string, loaded *solana.LoadedAddresses, ixs ...solana.Instruction) *solana.TransactionWithMeta {
	return &solana.TransactionWithMeta{
		Transaction: &solana.Transaction{
			Signatures: []string{testSignature},
			Message:    &solana.Message{AccountKeys: keys, Instructions: ixs},
		},
		Meta: &solana.TransactionMeta{
			Err:             json.RawMessage("null"),
			Fee:             5000,
			LoadedAddresses: loaded,
		},
	}
}

// transferNotification builds a raw transactionNotification frame carrying a
// single system transfer of lamports from walletA to walletB.
func transferNotification(t *testing.T, lamports uint64) []byte {
	t.Helper()

	keys := []string{walletA, walletB, programAddress(t, solana.FamilySystem)}
	tx := newTx(keys, &solana.LoadedAddresses{}, solana.Instruction{
		ProgramIDIndex: 2,
		Accounts:       []int{0, 1},
		Data:           systemTransferData(lamports),
	})

	frame := map[string]any{
		"jsonrpc": "2.0",
		"method":  solana.NotificationMethod,
		"params": map[string]any{
			"subscription": 4743323479349712,
			"result": map[string]any{
				"signature":   testSignature,
				"slot":        testSlot,
				"transaction": tx,
			},
		},
	}
	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	return raw
}
