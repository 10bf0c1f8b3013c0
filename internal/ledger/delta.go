package ledger

import (
	"bytes"
	"encoding/json"

	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// Delta is the minimal unit shipped between networks: changed scalar fields
// plus history entries the destination may not have. Nil pointers mean
// "field unchanged".
type Delta struct {
	Owner        string              `json:"owner"`
	Score        *int64              `json:"score,omitempty"`
	KYCHash      *hash.Hash32        `json:"kyc_hash,omitempty"`
	KYCVerified  *bool               `json:"kyc_verified,omitempty"`
	LastUpdate   int64               `json:"last_update"`
	Transactions []TransactionRecord `json:"transactions,omitempty"`
}

// DeltaFrom captures rec's current state as a full delta. Callers that track
// what the destination already holds can thin it out; shipping the full
// state is always safe because the merge is idempotent.
func DeltaFrom(rec *Record) Delta {
	score := rec.Score
	verified := rec.KYCVerified
	d := Delta{
		Owner:        rec.Owner,
		Score:        &score,
		KYCVerified:  &verified,
		LastUpdate:   rec.LastUpdate,
		Transactions: append([]TransactionRecord(nil), rec.History...),
	}
	if !rec.KYCHash.IsZero() {
		kh := rec.KYCHash
		d.KYCHash = &kh
	}
	return d
}

// CanonicalBytes is the byte form fed into the relay messageId hash. It must
// be deterministic for equal deltas, hence the builder encoding rather than
// JSON.
func (d Delta) CanonicalBytes() []byte {
	b := hash.NewBuilder()
	b.PutString(d.Owner)
	if d.Score != nil {
		b.PutBool(true).PutI64(*d.Score)
	} else {
		b.PutBool(false)
	}
	if d.KYCHash != nil {
		b.PutBool(true).PutHash(*d.KYCHash)
	} else {
		b.PutBool(false)
	}
	if d.KYCVerified != nil {
		b.PutBool(true).PutBool(*d.KYCVerified)
	} else {
		b.PutBool(false)
	}
	b.PutI64(d.LastUpdate)
	b.PutU64(uint64(len(d.Transactions)))
	for _, t := range d.Transactions {
		b.PutHash(t.Hash())
	}
	return b.Bytes()
}

func EncodeDelta(d Delta) ([]byte, error) { return json.Marshal(d) }

func DecodeDelta(raw []byte) (Delta, error) {
	var d Delta
	err := json.Unmarshal(raw, &d)
	return d, err
}

// scalarFingerprint totally orders concurrent writes that carry the same
// LastUpdate. The order is arbitrary; what matters is that every network
// computes the same one.
func scalarFingerprint(score int64, kycHash hash.Hash32, verified bool) hash.Hash32 {
	b := hash.NewBuilder()
	b.PutI64(score)
	b.PutHash(kycHash)
	b.PutBool(verified)
	return b.Sum32()
}

// merge applies the conflict-resolution rule in place:
//   - scalar fields follow the greater LastUpdate; an equal LastUpdate is
//     broken by the scalar fingerprint, so every network picks the same winner
//   - histories union, deduplicated by content hash, canonical order
func merge(rec *Record, d Delta) {
	// effective incoming scalars: nil pointers inherit local state
	inScore := rec.Score
	if d.Score != nil {
		inScore = *d.Score
	}
	inKYC := rec.KYCHash
	if d.KYCHash != nil {
		inKYC = *d.KYCHash
	}
	inVerified := rec.KYCVerified
	if d.KYCVerified != nil {
		inVerified = *d.KYCVerified
	}

	apply := d.LastUpdate > rec.LastUpdate
	if d.LastUpdate == rec.LastUpdate {
		local := scalarFingerprint(rec.Score, rec.KYCHash, rec.KYCVerified)
		incoming := scalarFingerprint(inScore, inKYC, inVerified)
		apply = bytes.Compare(incoming[:], local[:]) > 0
	}
	if apply {
		rec.Score = inScore
		rec.KYCHash = inKYC
		rec.KYCVerified = inVerified
		rec.LastUpdate = d.LastUpdate
	}

	if len(d.Transactions) == 0 {
		return
	}
	seen := make(map[hash.Hash32]bool, len(rec.History))
	for _, t := range rec.History {
		seen[t.Hash()] = true
	}
	for _, t := range d.Transactions {
		h := t.Hash()
		if seen[h] {
			continue
		}
		seen[h] = true
		rec.History = append(rec.History, t)
	}
	rec.History = normalizeHistory(rec.History)
}
