// Package credit is the write path glue: it authorizes against the current
// on-ledger record, gates score writes through the risk engine, submits the
// operation to the owning network and relays the resulting state to every
// other configured network.
package credit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/docstore"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/fraud"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/relay"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/submit"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

var (
	// ErrRiskRejected means the risk engine flagged the write as likely
	// fraudulent; the ledger was not touched.
	ErrRiskRejected = errors.New("update rejected by risk assessment")
	// ErrTxReverted means the network mined the transaction but the contract
	// rejected it.
	ErrTxReverted = errors.New("transaction reverted")
)

type Service struct {
	reg  *network.Registry
	sub  *submit.Manager
	rl   *relay.Relay
	docs docstore.Store

	// score history per owner, fed to fluctuation analysis
	mu    sync.Mutex
	snaps map[string][]fraud.Snapshot
}

func New(reg *network.Registry, sub *submit.Manager, rl *relay.Relay, docs docstore.Store) *Service {
	return &Service{
		reg:   reg,
		sub:   sub,
		rl:    rl,
		docs:  docs,
		snaps: make(map[string][]fraud.Snapshot),
	}
}

// Result is what a confirmed write returns: the transaction, the risk
// verdict that let it through (score writes only) and the relay fan-out.
type Result struct {
	Tx         *submit.PendingTx
	Assessment *fraud.Assessment
	Relayed    []relay.Message
	// Grant is the access token created by GrantAccess, decoded from the
	// contract's return payload.
	Grant *ledger.AccessGrant
}

func (s *Service) client(chainID int64) (network.LedgerClient, network.Descriptor, error) {
	c, err := s.reg.Client(chainID)
	if err != nil {
		return nil, network.Descriptor{}, err
	}
	return c, c.Descriptor(), nil
}

// submitConfirmed runs the full submit-then-monitor path and fails on a
// reverted receipt.
func (s *Service) submitConfirmed(ctx context.Context, chainID int64, op network.Operation) (*submit.PendingTx, error) {
	pt, err := s.sub.Submit(ctx, chainID, op)
	if err != nil {
		return nil, err
	}
	st, err := s.sub.Monitor(ctx, chainID, pt.TxHash, -1)
	if err != nil {
		return pt, err
	}
	if st.Status == submit.StatusFailed {
		return st, fmt.Errorf("%w: chain_id=%d tx=%s method=%s", ErrTxReverted, chainID, pt.TxHash.Hex(), op.Method)
	}
	st.RetriesUsed = pt.RetriesUsed
	st.SubmittedAt = pt.SubmittedAt
	return st, nil
}

// broadcast ships the owner's full current state to every other network.
// Relay trouble is reported but does not undo the confirmed write.
func (s *Service) broadcast(ctx context.Context, chainID int64, owner string) []relay.Message {
	client, _, err := s.client(chainID)
	if err != nil {
		return nil
	}
	rec, err := client.GetRecord(ctx, owner)
	if err != nil {
		log.Printf("[credit] broadcast read failed: chain_id=%d owner=%s err=%v", chainID, owner, err)
		return nil
	}
	msgs, err := s.rl.Broadcast(ctx, chainID, ledger.DeltaFrom(rec))
	if err != nil {
		log.Printf("[credit] broadcast incomplete: chain_id=%d owner=%s sent=%d err=%v",
			chainID, owner, len(msgs), err)
	}
	return msgs
}

func (s *Service) recordSnapshot(owner string, score, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[owner] = append(s.snaps[owner], fraud.Snapshot{Score: score, Timestamp: ts})
}

func (s *Service) snapshotsOf(owner string) []fraud.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fraud.Snapshot(nil), s.snaps[owner]...)
}

type createRecordArgs struct {
	InitialScore int64                      `json:"initial_score"`
	History      []ledger.TransactionRecord `json:"history"`
}

func (s *Service) CreateRecord(ctx context.Context, chainID int64, owner string, initialScore int64, history []ledger.TransactionRecord) (*Result, error) {
	_, desc, err := s.client(chainID)
	if err != nil {
		return nil, err
	}
	args, err := json.Marshal(createRecordArgs{InitialScore: initialScore, History: history})
	if err != nil {
		return nil, err
	}
	pt, err := s.submitConfirmed(ctx, chainID, network.Operation{
		Contract: desc.LedgerContract,
		Method:   "createRecord",
		Caller:   owner,
		Owner:    owner,
		Args:     args,
	})
	if err != nil {
		return nil, err
	}
	s.recordSnapshot(owner, initialScore, time.Now().Unix())
	return &Result{Tx: pt, Relayed: s.broadcast(ctx, chainID, owner)}, nil
}

type updateScoreArgs struct {
	NewScore int64 `json:"new_score"`
}

// UpdateScore is the risk-gated write. Authorization is checked against the
// current on-ledger record before anything is submitted, so a stranger or a
// lapsed grant fails fast without burning gas; the contract enforces the
// same rules again when the transaction executes.
func (s *Service) UpdateScore(ctx context.Context, chainID int64, caller, owner string, newScore int64) (*Result, error) {
	client, desc, err := s.client(chainID)
	if err != nil {
		return nil, err
	}
	rec, err := client.GetRecord(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := ledger.AuthorizeWrite(rec, caller, time.Now().Unix()); err != nil {
		return nil, err
	}

	// assess against the state the write would produce
	proposed := rec.Clone()
	proposed.Score = newScore
	proposed.LastUpdate = time.Now().Unix()
	assessment, err := fraud.Assess(proposed, s.snapshotsOf(owner))
	if err != nil {
		return nil, err
	}
	if assessment.IsFraudulent {
		return &Result{Assessment: &assessment},
			fmt.Errorf("%w: owner=%s risk_score=%d patterns=%v",
				ErrRiskRejected, owner, assessment.RiskScore, assessment.DetectedPatterns)
	}

	args, err := json.Marshal(updateScoreArgs{NewScore: newScore})
	if err != nil {
		return nil, err
	}
	pt, err := s.submitConfirmed(ctx, chainID, network.Operation{
		Contract: desc.LedgerContract,
		Method:   "updateScore",
		Caller:   caller,
		Owner:    owner,
		Args:     args,
	})
	if err != nil {
		return &Result{Tx: pt, Assessment: &assessment}, err
	}

	s.recordSnapshot(owner, newScore, time.Now().Unix())
	return &Result{
		Tx:         pt,
		Assessment: &assessment,
		Relayed:    s.broadcast(ctx, chainID, owner),
	}, nil
}

type addTransactionArgs struct {
	Entry ledger.TransactionRecord `json:"entry"`
}

func (s *Service) AddTransaction(ctx context.Context, chainID int64, owner string, entry ledger.TransactionRecord) (*Result, error) {
	_, desc, err := s.client(chainID)
	if err != nil {
		return nil, err
	}
	args, err := json.Marshal(addTransactionArgs{Entry: entry})
	if err != nil {
		return nil, err
	}
	pt, err := s.submitConfirmed(ctx, chainID, network.Operation{
		Contract: desc.LedgerContract,
		Method:   "addTransaction",
		Caller:   owner,
		Owner:    owner,
		Args:     args,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Tx: pt, Relayed: s.broadcast(ctx, chainID, owner)}, nil
}

type updateKYCArgs struct {
	KYCHash hash.Hash32 `json:"kyc_hash"`
}

// PutKYCDocument stores the document off-ledger and points the record at
// its content hash. Only the hash crosses the network boundary.
func (s *Service) PutKYCDocument(ctx context.Context, chainID int64, owner string, doc []byte) (hash.Hash32, *Result, error) {
	_, desc, err := s.client(chainID)
	if err != nil {
		return hash.Hash32{}, nil, err
	}
	contentHash, err := s.docs.Put(doc)
	if err != nil {
		return hash.Hash32{}, nil, fmt.Errorf("store document: %w", err)
	}
	args, err := json.Marshal(updateKYCArgs{KYCHash: contentHash})
	if err != nil {
		return hash.Hash32{}, nil, err
	}
	pt, err := s.submitConfirmed(ctx, chainID, network.Operation{
		Contract: desc.LedgerContract,
		Method:   "updateKYC",
		Caller:   owner,
		Owner:    owner,
		Args:     args,
	})
	if err != nil {
		return contentHash, nil, err
	}
	return contentHash, &Result{Tx: pt, Relayed: s.broadcast(ctx, chainID, owner)}, nil
}

type verifyKYCArgs struct {
	Verified bool `json:"verified"`
}

func (s *Service) VerifyKYC(ctx context.Context, chainID int64, bureau, owner string, verified bool) (*Result, error) {
	_, desc, err := s.client(chainID)
	if err != nil {
		return nil, err
	}
	args, err := json.Marshal(verifyKYCArgs{Verified: verified})
	if err != nil {
		return nil, err
	}
	pt, err := s.submitConfirmed(ctx, chainID, network.Operation{
		Contract: desc.LedgerContract,
		Method:   "verifyKYC",
		Caller:   bureau,
		Owner:    owner,
		Args:     args,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Tx: pt, Relayed: s.broadcast(ctx, chainID, owner)}, nil
}

type grantAccessArgs struct {
	Institution  string `json:"institution"`
	DurationDays int    `json:"duration_days"`
	CanWrite     bool   `json:"can_write"`
}

func (s *Service) GrantAccess(ctx context.Context, chainID int64, owner, institution string, durationDays int, canWrite bool) (*Result, error) {
	client, desc, err := s.client(chainID)
	if err != nil {
		return nil, err
	}
	args, err := json.Marshal(grantAccessArgs{Institution: institution, DurationDays: durationDays, CanWrite: canWrite})
	if err != nil {
		return nil, err
	}
	pt, err := s.submitConfirmed(ctx, chainID, network.Operation{
		Contract: desc.LedgerContract,
		Method:   "grantAccess",
		Caller:   owner,
		Owner:    owner,
		Args:     args,
	})
	if err != nil {
		return nil, err
	}

	// the contract returns the created grant; hand it back as the token
	res := &Result{Tx: pt}
	if rcpt, ok, err := client.Receipt(ctx, pt.TxHash); err == nil && ok && len(rcpt.Return) > 0 {
		var g ledger.AccessGrant
		if err := json.Unmarshal(rcpt.Return, &g); err == nil {
			res.Grant = &g
		}
	}
	// grants are network-local, nothing to relay
	return res, nil
}

type revokeAccessArgs struct {
	Institution string `json:"institution"`
}

func (s *Service) RevokeAccess(ctx context.Context, chainID int64, owner, institution string) (*Result, error) {
	_, desc, err := s.client(chainID)
	if err != nil {
		return nil, err
	}
	args, err := json.Marshal(revokeAccessArgs{Institution: institution})
	if err != nil {
		return nil, err
	}
	pt, err := s.submitConfirmed(ctx, chainID, network.Operation{
		Contract: desc.LedgerContract,
		Method:   "revokeAccess",
		Caller:   owner,
		Owner:    owner,
		Args:     args,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Tx: pt}, nil
}

func (s *Service) GetRecord(ctx context.Context, chainID int64, owner string) (*ledger.Record, error) {
	client, _, err := s.client(chainID)
	if err != nil {
		return nil, err
	}
	return client.GetRecord(ctx, owner)
}

// GetKYCDocument resolves the record's current document hash to its bytes.
func (s *Service) GetKYCDocument(ctx context.Context, chainID int64, owner string) ([]byte, error) {
	rec, err := s.GetRecord(ctx, chainID, owner)
	if err != nil {
		return nil, err
	}
	if rec.KYCHash.IsZero() {
		return nil, fmt.Errorf("%w: owner=%s", ledger.ErrNoKYCDocument, owner)
	}
	return s.docs.Get(rec.KYCHash)
}

// AssessRisk runs the risk engine read-only against the current record.
func (s *Service) AssessRisk(ctx context.Context, chainID int64, owner string) (fraud.Assessment, error) {
	rec, err := s.GetRecord(ctx, chainID, owner)
	if err != nil {
		return fraud.Assessment{}, err
	}
	return fraud.Assess(rec, s.snapshotsOf(owner))
}
