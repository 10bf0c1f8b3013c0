package ledger

import (
	"sort"

	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// TransactionRecord is immutable once appended to a record's history.
type TransactionRecord struct {
	Timestamp   int64  `json:"timestamp"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Hash is the content identity of a transaction entry. Histories are
// deduplicated across networks by this value, so every field participates.
func (t TransactionRecord) Hash() hash.Hash32 {
	b := hash.NewBuilder()
	b.PutI64(t.Timestamp)
	b.PutI64(t.Amount)
	b.PutString(t.Type)
	b.PutString(t.Description)
	b.PutString(t.Location)
	return b.Sum32()
}

// AccessGrant lets an institution read (and optionally write) a record until
// Expiry. Overwritten by a new grant, removed by revoke.
type AccessGrant struct {
	Institution string `json:"institution"`
	Expiry      int64  `json:"expiry"`
	CanWrite    bool   `json:"can_write"`
}

func (g AccessGrant) ExpiredAt(now int64) bool { return now >= g.Expiry }

// Record is one owner's credit record as held by a single network. Each
// network keeps its own physical copy; the relay reconciles them.
type Record struct {
	Owner       string                 `json:"owner"`
	Score       int64                  `json:"score"`
	History     []TransactionRecord    `json:"history"`
	KYCHash     hash.Hash32            `json:"kyc_hash,omitempty"`
	KYCVerified bool                   `json:"kyc_verified"`
	LastUpdate  int64                  `json:"last_update"`
	Grants      map[string]AccessGrant `json:"grants,omitempty"`
}

func (r *Record) KYCPending() bool {
	return !r.KYCHash.IsZero() && !r.KYCVerified
}

func (r *Record) HasActiveGrants(now int64) bool {
	for _, g := range r.Grants {
		if !g.ExpiredAt(now) {
			return true
		}
	}
	return false
}

func (r *Record) grantFor(institution string) (AccessGrant, bool) {
	if r.Grants == nil {
		return AccessGrant{}, false
	}
	g, ok := r.Grants[institution]
	return g, ok
}

// Clone deep-copies the record so callers can hand copies across goroutines.
func (r *Record) Clone() *Record {
	cp := *r
	cp.History = append([]TransactionRecord(nil), r.History...)
	if r.Grants != nil {
		cp.Grants = make(map[string]AccessGrant, len(r.Grants))
		for k, v := range r.Grants {
			cp.Grants[k] = v
		}
	}
	return &cp
}

// normalizeHistory keeps history in canonical order: timestamp ascending,
// content hash as tiebreak. Local appends and relay merges both normalize,
// which is what makes histories structurally equal across networks once the
// same set of entries has landed.
func normalizeHistory(hist []TransactionRecord) []TransactionRecord {
	sort.SliceStable(hist, func(i, j int) bool {
		if hist[i].Timestamp != hist[j].Timestamp {
			return hist[i].Timestamp < hist[j].Timestamp
		}
		hi, hj := hist[i].Hash(), hist[j].Hash()
		for k := range hi {
			if hi[k] != hj[k] {
				return hi[k] < hj[k]
			}
		}
		return false
	})
	return hist
}

func validTransaction(t TransactionRecord) bool {
	return t.Timestamp > 0 && t.Type != ""
}
