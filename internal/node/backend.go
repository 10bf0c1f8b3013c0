package node

import (
	"sync"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/relay"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// Backend bundles a node's durable state: credit records, the processed
// relay-message set, receipts and the chain head. RocksBackend puts all of
// it in one RocksDB; MemBackend backs tests.
type Backend interface {
	Records() ledger.Store
	Processed() relay.ProcessedSet

	PutReceipt(r *network.Receipt) error
	GetReceipt(txHash hash.Hash32) (*network.Receipt, bool, error)

	Head() (int64, error)
	SetHead(n int64) error

	Close()
}

type MemBackend struct {
	records   *ledger.MemStore
	processed *relay.MemProcessedSet

	mu       sync.RWMutex
	receipts map[hash.Hash32]network.Receipt
	head     int64
}

func NewMemBackend() *MemBackend {
	return &MemBackend{
		records:   ledger.NewMemStore(),
		processed: relay.NewMemProcessedSet(),
		receipts:  make(map[hash.Hash32]network.Receipt),
	}
}

func (b *MemBackend) Records() ledger.Store         { return b.records }
func (b *MemBackend) Processed() relay.ProcessedSet { return b.processed }

func (b *MemBackend) PutReceipt(r *network.Receipt) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[r.TxHash] = *r
	return nil
}

func (b *MemBackend) GetReceipt(txHash hash.Hash32) (*network.Receipt, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.receipts[txHash]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (b *MemBackend) Head() (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.head, nil
}

func (b *MemBackend) SetHead(n int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = n
	return nil
}

func (b *MemBackend) Close() {}
