package solana

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NotificationMethod is the JSON-RPC method name of transaction notifications.
const NotificationMethod = "transactionNotification"

// Envelope is one inbound JSON-RPC frame. Exactly one of Result, Error or
// Params is expected to be set.
type Envelope struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      *uint64             `json:"id"`
	Method  string              `json:"method"`
	Result  json.RawMessage     `json:"result"`
	Error   *RPCError           `json:"error"`
	Params  *NotificationParams `json:"params"`
}

// RPCError is a JSON-RPC error reply.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NotificationParams wraps the payload of a subscription notification.
type NotificationParams struct {
	Subscription int64                    `json:"subscription"`
	Result       *TransactionNotification `json:"result"`
}

// TransactionNotification carries one transaction plus its metadata.
type TransactionNotification struct {
	Signature   string               `json:"signature"`
	Slot        uint64               `json:"slot"`
	Transaction *TransactionWithMeta `json:"transaction"`
}

// TransactionWithMeta is a transaction with its execution metadata.
type TransactionWithMeta struct {
	Transaction *Transaction     `json:"transaction"`
	Meta        *TransactionMeta `json:"meta"`
	Version     json.RawMessage  `json:"version,omitempty"`
}

// Transaction is the signed transaction body.
type Transaction struct {
	Signatures []string `json:"signatures"`
	Message    *Message `json:"message"`
}

// Message is the transaction message in "json" encoding.
type Message struct {
	AccountKeys  []string      `json:"accountKeys"`
	Instructions []Instruction `json:"instructions"`
}

// Instruction is a compiled instruction. Accounts are indices into the
// transaction account-key list; Data is base58.
type Instruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
	StackHeight    *int   `json:"stackHeight,omitempty"`
}

// TransactionMeta contains transaction execution metadata.
type TransactionMeta struct {
	Err             json.RawMessage  `json:"err"`
	Fee             uint64           `json:"fee"`
	LoadedAddresses *LoadedAddresses `json:"loadedAddresses,omitempty"`
}

// LoadedAddresses are keys resolved from address lookup tables (v0 transactions).
type LoadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

// ParseEnvelope parses a raw frame.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &env, nil
}

// IsNotification reports whether the envelope is a transaction notification.
func (e *Envelope) IsNotification() bool {
	return e.Method == NotificationMethod
}

// Notification returns the transaction notification carried by the
// envelope, validating the fields the pipeline depends on.
func (e *Envelope) Notification() (*TransactionNotification, error) {
	if e.Params == nil || e.Params.Result == nil {
		return nil, fmt.Errorf("notification missing params.result")
	}
	n := e.Params.Result
	if n.Transaction == nil || n.Transaction.Transaction == nil || n.Transaction.Transaction.Message == nil {
		return nil, fmt.Errorf("notification %q missing transaction message", n.Signature)
	}
	if n.Transaction.Meta == nil {
		return nil, fmt.Errorf("notification %q missing meta", n.Signature)
	}
	if n.Signature == "" {
		if sigs := n.Transaction.Transaction.Signatures; len(sigs) > 0 {
			n.Signature = sigs[0]
		} else {
			return nil, fmt.Errorf("notification missing signature")
		}
	}
	return n, nil
}

// AccountKeys returns the full account-key list: static keys followed by
// lookup-table writable and readonly keys, matching runtime index order.
func (t *TransactionWithMeta) AccountKeys() []string {
	if t == nil || t.Transaction == nil || t.Transaction.Message == nil {
		return nil
	}
	static := t.Transaction.Message.AccountKeys
	if t.Meta == nil || t.Meta.LoadedAddresses == nil {
		return static
	}
	la := t.Meta.LoadedAddresses
	keys := make([]string, 0, len(static)+len(la.Writable)+len(la.Readonly))
	keys = append(keys, static...)
	keys = append(keys, la.Writable...)
	keys = append(keys, la.Readonly...)
	return keys
}

// Instructions returns the top-level instructions of the transaction.
func (t *TransactionWithMeta) Instructions() []Instruction {
	if t == nil || t.Transaction == nil || t.Transaction.Message == nil {
		return nil
	}
	return t.Transaction.Message.Instructions
}

// HasError reports whether the transaction failed on chain.
func (m *TransactionMeta) HasError() bool {
	if m == nil {
		return false
	}
	trimmed := bytes.TrimSpace(m.Err)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// ErrorDetail returns the compact JSON error detail, or "" when the
// transaction succeeded.
func (m *TransactionMeta) ErrorDetail() string {
	if !m.HasError() {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, m.Err); err != nil {
		return string(bytes.TrimSpace(m.Err))
	}
	return buf.String()
}
