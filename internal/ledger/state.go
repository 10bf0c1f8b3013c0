package ledger

import (
	"fmt"
	"time"

	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

const (
	MinGrantDays = 1
	MaxGrantDays = 365
)

// Store persists records for one network. Implementations: the in-memory
// store below and the RocksDB store inside the simulated node.
type Store interface {
	Get(owner string) (*Record, bool, error)
	Put(rec *Record) error
}

// StateMachine owns the credit record lifecycle for a single network.
// It is handed a Store and a capability table at construction; no ambient
// state. All authorization failures are returned as-is, never retried.
type StateMachine struct {
	store Store
	caps  *Capabilities
	now   func() int64
}

func NewStateMachine(store Store, caps *Capabilities) *StateMachine {
	return &StateMachine{
		store: store,
		caps:  caps,
		now:   func() int64 { return time.Now().Unix() },
	}
}

// SetClock overrides the wall clock; tests use it to control grant expiry.
func (sm *StateMachine) SetClock(now func() int64) { sm.now = now }

// touch advances LastUpdate strictly. The merge rule lets the greater
// timestamp win, so two writes landing in the same clock second must still
// order; otherwise the second one would never propagate.
func (sm *StateMachine) touch(rec *Record) {
	now := sm.now()
	if now <= rec.LastUpdate {
		now = rec.LastUpdate + 1
	}
	rec.LastUpdate = now
}

// Create initializes a record. Only valid from the uninitialized state.
func (sm *StateMachine) Create(owner string, initialScore int64, history []TransactionRecord) (*Record, error) {
	_, ok, err := sm.store.Get(owner)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, fmt.Errorf("%w: owner=%s", ErrRecordAlreadyExists, owner)
	}
	for _, t := range history {
		if !validTransaction(t) {
			return nil, fmt.Errorf("%w: ts=%d type=%q", ErrInvalidTransaction, t.Timestamp, t.Type)
		}
	}
	rec := &Record{
		Owner:      owner,
		Score:      initialScore,
		History:    normalizeHistory(append([]TransactionRecord(nil), history...)),
		LastUpdate: sm.now(),
		Grants:     make(map[string]AccessGrant),
	}
	if err := sm.store.Put(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (sm *StateMachine) Get(owner string) (*Record, error) {
	rec, ok, err := sm.store.Get(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: owner=%s", ErrRecordNotFound, owner)
	}
	return rec.Clone(), nil
}

// AuthorizeWrite checks whether caller may write owner's record at time
// now: the owner always may, an institution needs a live writable grant.
// Grant-present-but-expired and grant-absent are distinct failures so
// callers can tell a lapsed institution from a stranger.
func AuthorizeWrite(rec *Record, caller string, now int64) error {
	if caller == rec.Owner {
		return nil
	}
	g, ok := rec.grantFor(caller)
	if !ok {
		return fmt.Errorf("%w: caller=%s owner=%s", ErrAccessDenied, caller, rec.Owner)
	}
	if g.ExpiredAt(now) {
		return fmt.Errorf("%w: institution=%s expiry=%d", ErrAccessExpired, caller, g.Expiry)
	}
	if !g.CanWrite {
		return fmt.Errorf("%w: institution=%s is read-only", ErrAccessDenied, caller)
	}
	return nil
}

// UpdateScore accepts the owner, or an institution holding a live writable
// grant.
func (sm *StateMachine) UpdateScore(caller, owner string, newScore int64) (*Record, error) {
	rec, err := sm.mustGet(owner)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeWrite(rec, caller, sm.now()); err != nil {
		return nil, err
	}
	rec.Score = newScore
	sm.touch(rec)
	if err := sm.store.Put(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// AddTransaction appends to history. Owner only.
func (sm *StateMachine) AddTransaction(caller, owner string, entry TransactionRecord) (*Record, error) {
	rec, err := sm.mustGet(owner)
	if err != nil {
		return nil, err
	}
	if caller != owner {
		return nil, fmt.Errorf("%w: only owner may add transactions", ErrAccessDenied)
	}
	if !validTransaction(entry) {
		return nil, fmt.Errorf("%w: ts=%d type=%q", ErrInvalidTransaction, entry.Timestamp, entry.Type)
	}
	rec.History = normalizeHistory(append(rec.History, entry))
	sm.touch(rec)
	if err := sm.store.Put(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// UpdateKYC points the record at a new document hash. Any document change
// resets verification; a bureau has to attest again.
func (sm *StateMachine) UpdateKYC(caller, owner string, contentHash hash.Hash32) (*Record, error) {
	rec, err := sm.mustGet(owner)
	if err != nil {
		return nil, err
	}
	if caller != owner {
		return nil, fmt.Errorf("%w: only owner may update kyc", ErrAccessDenied)
	}
	rec.KYCHash = contentHash
	rec.KYCVerified = false
	sm.touch(rec)
	if err := sm.store.Put(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// VerifyKYC records a bureau's attestation. Caller must hold the
// credit_bureau capability and the record must reference a document.
func (sm *StateMachine) VerifyKYC(caller, owner string, verified bool) (*Record, error) {
	rec, err := sm.mustGet(owner)
	if err != nil {
		return nil, err
	}
	if !sm.caps.Has(caller, CapCreditBureau) {
		return nil, fmt.Errorf("%w: caller=%s lacks %s", ErrAccessDenied, caller, CapCreditBureau)
	}
	if rec.KYCHash.IsZero() {
		return nil, fmt.Errorf("%w: owner=%s", ErrNoKYCDocument, owner)
	}
	rec.KYCVerified = verified
	sm.touch(rec)
	if err := sm.store.Put(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// GrantAccess creates or overwrites an institution grant.
func (sm *StateMachine) GrantAccess(caller, owner, institution string, durationDays int, canWrite bool) (AccessGrant, error) {
	rec, err := sm.mustGet(owner)
	if err != nil {
		return AccessGrant{}, err
	}
	if caller != owner {
		return AccessGrant{}, fmt.Errorf("%w: only owner may grant access", ErrAccessDenied)
	}
	if durationDays < MinGrantDays || durationDays > MaxGrantDays {
		return AccessGrant{}, fmt.Errorf("%w: days=%d", ErrInvalidGrantPeriod, durationDays)
	}
	g := AccessGrant{
		Institution: institution,
		Expiry:      sm.now() + int64(durationDays)*86400,
		CanWrite:    canWrite,
	}
	if rec.Grants == nil {
		rec.Grants = make(map[string]AccessGrant)
	}
	rec.Grants[institution] = g
	sm.touch(rec)
	if err := sm.store.Put(rec); err != nil {
		return AccessGrant{}, err
	}
	return g, nil
}

// RevokeAccess removes an institution grant.
func (sm *StateMachine) RevokeAccess(caller, owner, institution string) error {
	rec, err := sm.mustGet(owner)
	if err != nil {
		return err
	}
	if caller != owner {
		return fmt.Errorf("%w: only owner may revoke access", ErrAccessDenied)
	}
	if _, ok := rec.grantFor(institution); !ok {
		return fmt.Errorf("%w: institution=%s", ErrAccessNotFound, institution)
	}
	delete(rec.Grants, institution)
	sm.touch(rec)
	return sm.store.Put(rec)
}

// ApplyDelta merges an incoming relay delta under the conflict rule:
// later LastUpdate wins scalar fields, histories union by content hash.
// A delta for an unknown owner initializes the record (the destination
// network may simply not have seen the owner yet).
func (sm *StateMachine) ApplyDelta(d Delta) (*Record, error) {
	rec, ok, err := sm.store.Get(d.Owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		rec = &Record{Owner: d.Owner, Grants: make(map[string]AccessGrant)}
	}
	merge(rec, d)
	if err := sm.store.Put(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (sm *StateMachine) mustGet(owner string) (*Record, error) {
	rec, ok, err := sm.store.Get(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: owner=%s", ErrRecordNotFound, owner)
	}
	return rec, nil
}
