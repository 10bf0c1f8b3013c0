package docstore

import (
	"fmt"

	"github.com/tecbot/gorocksdb"

	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// RocksStore persists documents under doc:<hash> keys. Content addressing
// makes every write idempotent, so there is no update path.
type RocksStore struct {
	db *gorocksdb.DB
	ro *gorocksdb.ReadOptions
	wo *gorocksdb.WriteOptions

	ownsDB bool
}

func OpenRocks(path string) (*RocksStore, error) {
	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	db, err := gorocksdb.OpenDb(opts, path)
	if err != nil {
		return nil, err
	}
	s := NewRocksStore(db)
	s.ownsDB = true
	return s, nil
}

// NewRocksStore wraps an already-open handle so the store can share a DB
// with other column users.
func NewRocksStore(db *gorocksdb.DB) *RocksStore {
	return &RocksStore{
		db: db,
		ro: gorocksdb.NewDefaultReadOptions(),
		wo: gorocksdb.NewDefaultWriteOptions(),
	}
}

func (s *RocksStore) Close() {
	if s.ro != nil {
		s.ro.Destroy()
	}
	if s.wo != nil {
		s.wo.Destroy()
	}
	if s.ownsDB && s.db != nil {
		s.db.Close()
	}
}

func keyDoc(h hash.Hash32) []byte {
	return []byte("doc:" + h.Hex())
}

func (s *RocksStore) Put(doc []byte) (hash.Hash32, error) {
	h := hash.Sum(doc)
	if err := s.db.Put(s.wo, keyDoc(h), doc); err != nil {
		return hash.Hash32{}, err
	}
	return h, nil
}

func (s *RocksStore) Get(contentHash hash.Hash32) ([]byte, error) {
	val, err := s.db.Get(s.ro, keyDoc(contentHash))
	if err != nil {
		return nil, err
	}
	defer val.Free()

	if !val.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrDocNotFound, contentHash.Hex())
	}
	// val.Data() is RocksDB-owned memory, copy before Free
	return append([]byte(nil), val.Data()...), nil
}
