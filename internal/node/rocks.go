package node

import (
	"encoding/json"
	"strconv"

	"github.com/tecbot/gorocksdb"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/relay"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

const keyHead = "meta:head"

func keyRecord(owner string) []byte   { return []byte("rec:" + owner) }
func keyReceipt(h hash.Hash32) []byte { return []byte("rcpt:" + h.Hex()) }

// RocksBackend keeps records, receipts, head and the processed set in a
// single RocksDB under prefixed keys.
type RocksBackend struct {
	db *gorocksdb.DB
	ro *gorocksdb.ReadOptions
	wo *gorocksdb.WriteOptions

	records   *rocksRecordStore
	processed *relay.RocksProcessedSet
}

func OpenRocksBackend(path string) (*RocksBackend, error) {
	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	db, err := gorocksdb.OpenDb(opts, path)
	if err != nil {
		return nil, err
	}

	b := &RocksBackend{
		db: db,
		ro: gorocksdb.NewDefaultReadOptions(),
		wo: gorocksdb.NewDefaultWriteOptions(),
	}
	b.records = &rocksRecordStore{b: b}
	b.processed = relay.NewRocksProcessedSet(db)
	return b, nil
}

func (b *RocksBackend) Close() {
	if b.processed != nil {
		b.processed.Close()
	}
	if b.ro != nil {
		b.ro.Destroy()
	}
	if b.wo != nil {
		b.wo.Destroy()
	}
	if b.db != nil {
		b.db.Close()
	}
}

// DB exposes the handle so a docstore can share the same database file.
func (b *RocksBackend) DB() *gorocksdb.DB { return b.db }

func (b *RocksBackend) Records() ledger.Store         { return b.records }
func (b *RocksBackend) Processed() relay.ProcessedSet { return b.processed }

func (b *RocksBackend) getRaw(key []byte) ([]byte, bool, error) {
	val, err := b.db.Get(b.ro, key)
	if err != nil {
		return nil, false, err
	}
	defer val.Free()

	if !val.Exists() {
		return nil, false, nil
	}
	// copy out of RocksDB-owned memory
	return append([]byte(nil), val.Data()...), true, nil
}

func (b *RocksBackend) PutReceipt(r *network.Receipt) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return b.db.Put(b.wo, keyReceipt(r.TxHash), raw)
}

func (b *RocksBackend) GetReceipt(txHash hash.Hash32) (*network.Receipt, bool, error) {
	raw, ok, err := b.getRaw(keyReceipt(txHash))
	if err != nil || !ok {
		return nil, false, err
	}
	var r network.Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

func (b *RocksBackend) Head() (int64, error) {
	raw, ok, err := b.getRaw([]byte(keyHead))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil // fresh db
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

func (b *RocksBackend) SetHead(n int64) error {
	return b.db.Put(b.wo, []byte(keyHead), []byte(strconv.FormatInt(n, 10)))
}

type rocksRecordStore struct {
	b *RocksBackend
}

func (s *rocksRecordStore) Get(owner string) (*ledger.Record, bool, error) {
	raw, ok, err := s.b.getRaw(keyRecord(owner))
	if err != nil || !ok {
		return nil, false, err
	}
	var rec ledger.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *rocksRecordStore) Put(rec *ledger.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.b.db.Put(s.b.wo, keyRecord(rec.Owner), raw)
}
