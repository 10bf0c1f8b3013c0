package network

import (
	"context"
	"encoding/json"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// Operation is one ledger-contract or router-contract invocation. Args carry
// method-specific parameters as raw JSON; the node decodes them per method.
type Operation struct {
	Contract string          `json:"contract"` // ledger or router address
	Method   string          `json:"method"`
	Caller   string          `json:"caller"`
	Owner    string          `json:"owner,omitempty"` // record the op touches; "" for router ops
	Args     json.RawMessage `json:"args,omitempty"`
}

// Receipt is the terminal evidence for a mined transaction.
type Receipt struct {
	TxHash   hash.Hash32 `json:"tx_hash"`
	BlockNum int64       `json:"block_num"`
	Reverted bool        `json:"reverted"`
	GasUsed  uint64      `json:"gas_used"`
	Revert   string      `json:"revert,omitempty"`
	// Return carries the contract call's return payload, when the method
	// has one (grantAccess returns the created grant).
	Return json.RawMessage `json:"return,omitempty"`
}

// LedgerClient wraps a single network's RPC endpoint and contract address.
// Either the HTTP client (talking to a node) or a test double satisfies it.
type LedgerClient interface {
	Descriptor() Descriptor

	EstimateGas(ctx context.Context, op Operation) (uint64, error)
	// GasPrice returns the network's current market price per gas unit.
	GasPrice(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, op Operation, gasLimit, gasPrice uint64) (hash.Hash32, error)
	// Receipt reports (receipt, found). Absent receipt is not an error;
	// the monitor keeps polling.
	Receipt(ctx context.Context, txHash hash.Hash32) (*Receipt, bool, error)
	BlockNumber(ctx context.Context) (int64, error)

	GetRecord(ctx context.Context, owner string) (*ledger.Record, error)
	// IsProcessed queries the destination's processed-message set; read-only,
	// exposed for test/ops verification.
	IsProcessed(ctx context.Context, messageID hash.Hash32) (bool, error)
}
