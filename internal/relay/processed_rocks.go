package relay

import (
	"sync"

	"github.com/tecbot/gorocksdb"

	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// RocksProcessedSet persists the processed-message set so a restarted node
// still skips messages it already applied. Unlike hot-path dedup there is no
// TTL: a relay messageId stays processed forever.
type RocksProcessedSet struct {
	db *gorocksdb.DB
	ro *gorocksdb.ReadOptions
	wo *gorocksdb.WriteOptions

	// serializes check-and-mark; RocksDB gets no read-modify-write atomicity
	// on its own
	mu sync.Mutex
}

func OpenRocksProcessedSet(path string) (*RocksProcessedSet, error) {
	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	db, err := gorocksdb.OpenDb(opts, path)
	if err != nil {
		return nil, err
	}

	return &RocksProcessedSet{
		db: db,
		ro: gorocksdb.NewDefaultReadOptions(),
		wo: gorocksdb.NewDefaultWriteOptions(),
	}, nil
}

// NewRocksProcessedSet wraps an already-open node database; the node shares
// its db handle so record state and the processed set live in one store.
func NewRocksProcessedSet(db *gorocksdb.DB) *RocksProcessedSet {
	return &RocksProcessedSet{
		db: db,
		ro: gorocksdb.NewDefaultReadOptions(),
		wo: gorocksdb.NewDefaultWriteOptions(),
	}
}

func (s *RocksProcessedSet) Close() {
	if s.ro != nil {
		s.ro.Destroy()
	}
	if s.wo != nil {
		s.wo.Destroy()
	}
	// db handle may be shared; owner closes it
}

func procKey(id hash.Hash32) []byte {
	k := make([]byte, 0, 5+32)
	k = append(k, 'p', 'r', 'o', 'c', ':')
	k = append(k, id[:]...)
	return k
}

func (s *RocksProcessedSet) MarkIfUnseen(id hash.Hash32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := procKey(id)
	val, err := s.db.Get(s.ro, key)
	if err != nil {
		return false, err
	}
	exists := val.Exists()
	val.Free()
	if exists {
		return false, nil
	}
	if err := s.db.Put(s.wo, key, []byte{1}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RocksProcessedSet) Contains(id hash.Hash32) (bool, error) {
	val, err := s.db.Get(s.ro, procKey(id))
	if err != nil {
		return false, err
	}
	defer val.Free()
	return val.Exists(), nil
}

func (s *RocksProcessedSet) Remove(id hash.Hash32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Delete(s.wo, procKey(id))
}
