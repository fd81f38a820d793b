package solana

import "encoding/json"

// Subscription defaults used by the ingest process.
const (
	DefaultRequestID  = 420
	DefaultCommitment = "confirmed"
	subscribeMethod   = "transactionSubscribe"
)

// TransactionFilter selects which transactions the upstream delivers.
type TransactionFilter struct {
	Vote           bool     `json:"vote"`
	Failed         bool     `json:"failed"`
	AccountInclude []string `json:"accountInclude"`
}

// SubscribeOptions controls delivery of matched transactions.
type SubscribeOptions struct {
	Commitment                     string `json:"commitment"`
	Encoding                       string `json:"encoding"`
	TransactionDetails             string `json:"transactionDetails"`
	ShowRewards                    bool   `json:"showRewards"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
}

// SubscribeRequest is the single outbound request sent per connection.
type SubscribeRequest struct {
	ID      uint64
	Filter  TransactionFilter
	Options SubscribeOptions
}

// NewTransactionSubscribe builds a request for full transaction detail in
// "json" encoding for transactions touching any of accounts.
func NewTransactionSubscribe(accounts []string, commitment string) SubscribeRequest {
	if commitment == "" {
		commitment = DefaultCommitment
	}
	include := make([]string, len(accounts))
	copy(include, accounts)
	return SubscribeRequest{
		ID: DefaultRequestID,
		Filter: TransactionFilter{
			Vote:           false,
			Failed:         false,
			AccountInclude: include,
		},
		Options: SubscribeOptions{
			Commitment:                     commitment,
			Encoding:                       "json",
			TransactionDetails:             "full",
			ShowRewards:                    true,
			MaxSupportedTransactionVersion: 0,
		},
	}
}

// MarshalJSON renders the JSON-RPC frame.
func (r SubscribeRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(wsRequest{
		JSONRPC: "2.0",
		ID:      r.ID,
		Method:  subscribeMethod,
		Params:  []interface{}{r.Filter, r.Options},
	})
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}
