package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNotification = `{
  "jsonrpc": "2.0",
  "method": "transactionNotification",
  "params": {
    "subscription": 4743323479349712,
    "result": {
      "transaction": {
        "transaction": {
          "signatures": ["5h6xBEauJ3PK6SWCZ1PGjBvj8vDdWG3KpwATGy1ARAXFSDwt8GFXM7W5Ncn16wmqokgpiKRLuS83KUxyZyv2sUYv"],
          "message": {
            "accountKeys": ["A", "B", "11111111111111111111111111111111"],
            "instructions": [{"programIdIndex": 2, "accounts": [0, 1], "data": "3Bxs4Bc3VYuGVB19"}]
          }
        },
        "meta": {
          "err": null,
          "fee": 5000,
          "loadedAddresses": {"writable": ["W"], "readonly": ["R"]}
        },
        "version": 0
      },
      "signature": "5h6xBEauJ3PK6SWCZ1PGjBvj8vDdWG3KpwATGy1ARAXFSDwt8GFXM7W5Ncn16wmqokgpiKRLuS83KUxyZyv2sUYv",
      "slot": 224341380
    }
  }
}`

func TestParseEnvelope_Notification(t *testing.T) {
	env, err := ParseEnvelope([]byte(sampleNotification))
	require.NoError(t, err)
	require.True(t, env.IsNotification())

	n, err := env.Notification()
	require.NoError(t, err)

	assert.Equal(t, uint64(224341380), n.Slot)
	assert.Equal(t, uint64(5000), n.Transaction.Meta.Fee)
	assert.False(t, n.Transaction.Meta.HasError())
	assert.Equal(t, "", n.Transaction.Meta.ErrorDetail())
	assert.Equal(t, []string{"A", "B", "11111111111111111111111111111111", "W", "R"}, n.Transaction.AccountKeys())
	require.Len(t, n.Transaction.Instructions(), 1)
	assert.Equal(t, []int{0, 1}, n.Transaction.Instructions()[0].Accounts)
}

func TestParseEnvelope_Malformed(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"jsonrpc":`))
	assert.Error(t, err)
}

func TestEnvelope_NotificationMissingFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no params", `{"method":"transactionNotification"}`},
		{"no transaction", `{"method":"transactionNotification","params":{"result":{"signature":"s"}}}`},
		{"no meta", `{"method":"transactionNotification","params":{"result":{"signature":"s","transaction":{"transaction":{"message":{}}}}}}`},
		{"no signature", `{"method":"transactionNotification","params":{"result":{"transaction":{"transaction":{"message":{}},"meta":{}}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.raw))
			require.NoError(t, err)
			_, err = env.Notification()
			assert.Error(t, err)
		})
	}
}

func TestEnvelope_SignatureFallback(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"method":"transactionNotification","params":{"result":{"transaction":{"transaction":{"signatures":["sig1"],"message":{}},"meta":{}}}}}`))
	require.NoError(t, err)

	n, err := env.Notification()
	require.NoError(t, err)
	assert.Equal(t, "sig1", n.Signature)
}

func TestTransactionMeta_ErrorDetail(t *testing.T) {
	meta := &TransactionMeta{Err: []byte(`{ "InstructionError": [0, "Custom"] }`)}
	assert.True(t, meta.HasError())
	assert.Equal(t, `{"InstructionError":[0,"Custom"]}`, meta.ErrorDetail())

	var nilMeta *TransactionMeta
	assert.False(t, nilMeta.HasError())
}

func TestAccountKeys_StaticOnly(t *testing.T) {
	tx := &TransactionWithMeta{
		Transaction: &Transaction{Message: &Message{AccountKeys: []string{"A"}}},
		Meta:        &TransactionMeta{},
	}
	assert.Equal(t, []string{"A"}, tx.AccountKeys())

	var empty *TransactionWithMeta
	assert.Nil(t, empty.AccountKeys())
	assert.Nil(t, empty.Instructions())
}
