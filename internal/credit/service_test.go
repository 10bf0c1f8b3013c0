package credit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/docstore"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/fraud"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/node"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/relay"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/submit"
)

// loopRouter short-circuits the transport: a published message is received
// immediately, so a whole multi-network deployment runs in-process.
type loopRouter struct {
	rl *relay.Relay
}

func (r *loopRouter) Publish(ctx context.Context, m relay.Message) error {
	_, err := r.rl.Receive(ctx, m)
	return err
}

func (r *loopRouter) Close() error { return nil }

type fixture struct {
	svc   *Service
	nodes map[int64]*node.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	nodes := map[int64]*node.Node{}
	var descs []network.Descriptor
	for _, chainID := range []int64{1, 2} {
		nodes[chainID] = node.New(node.Config{
			ChainID:        chainID,
			LedgerContract: "credit-ledger",
			RelayRouter:    "relay-router",
			Bureaus:        []string{"bureau-1"},
			BaseGasPrice:   100,
			Deterministic:  true,
			Seed:           chainID,
		}, node.NewMemBackend())
		descs = append(descs, network.Descriptor{
			ChainID:        chainID,
			Name:           "local",
			RPCEndpoint:    "mem",
			LedgerContract: "credit-ledger",
			RelayRouter:    "relay-router",
		})
	}

	reg, err := network.NewRegistry(descs, node.Dialer(nodes))
	require.NoError(t, err)

	sub := submit.NewManager(reg, submit.Config{
		RetryDelay:   time.Millisecond,
		PollInterval: time.Millisecond,
	})

	router := &loopRouter{}
	rl := relay.New(reg, sub, router, nil)
	router.rl = rl
	for chainID := range nodes {
		client, err := reg.Client(chainID)
		require.NoError(t, err)
		rl.AddEndpoint(&relay.RemoteEndpoint{Chain: chainID, Sub: sub, Client: client})
	}

	return &fixture{
		svc:   New(reg, sub, rl, docstore.NewMemStore()),
		nodes: nodes,
	}
}

func TestCreateAndUpdatePropagateAcrossNetworks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateRecord(ctx, 1, "alice", 700, nil)
	require.NoError(t, err)
	require.Equal(t, submit.StatusConfirmed, res.Tx.Status)
	require.Len(t, res.Relayed, 1, "one message per other network")

	// the relay initialized alice on chain 2
	rec2, err := f.svc.GetRecord(ctx, 2, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(700), rec2.Score)

	res, err = f.svc.UpdateScore(ctx, 1, "alice", "alice", 720)
	require.NoError(t, err)
	require.NotNil(t, res.Assessment)

	rec1, err := f.svc.GetRecord(ctx, 1, "alice")
	require.NoError(t, err)
	rec2, err = f.svc.GetRecord(ctx, 2, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(720), rec1.Score)
	require.Equal(t, rec1.Score, rec2.Score)
	require.Equal(t, rec1.LastUpdate, rec2.LastUpdate)
}

func TestUpdateScoreStrangerDeniedBeforeSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRecord(ctx, 1, "alice", 700, nil)
	require.NoError(t, err)

	head, err := f.nodes[1].BlockNumber()
	require.NoError(t, err)

	_, err = f.svc.UpdateScore(ctx, 1, "bank-1", "alice", 500)
	require.ErrorIs(t, err, ledger.ErrAccessDenied)

	// nothing was submitted
	after, err := f.nodes[1].BlockNumber()
	require.NoError(t, err)
	require.Equal(t, head, after)
}

func TestUpdateScoreViaGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRecord(ctx, 1, "alice", 700, nil)
	require.NoError(t, err)
	granted, err := f.svc.GrantAccess(ctx, 1, "alice", "bank-1", 30, true)
	require.NoError(t, err)
	require.NotNil(t, granted.Grant, "the created grant comes back as the token")
	require.Equal(t, "bank-1", granted.Grant.Institution)
	require.True(t, granted.Grant.CanWrite)
	require.Greater(t, granted.Grant.Expiry, time.Now().Unix())

	res, err := f.svc.UpdateScore(ctx, 1, "bank-1", "alice", 710)
	require.NoError(t, err)
	require.Equal(t, submit.StatusConfirmed, res.Tx.Status)

	_, err = f.svc.RevokeAccess(ctx, 1, "alice", "bank-1")
	require.NoError(t, err)
	_, err = f.svc.UpdateScore(ctx, 1, "bank-1", "alice", 650)
	require.ErrorIs(t, err, ledger.ErrAccessDenied)
}

func TestRiskGateBlocksSuspiciousUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := int64(19675 * 86400)
	burst := []ledger.TransactionRecord{
		{Timestamp: base + 2*3600, Amount: 2900, Type: "withdrawal"},
		{Timestamp: base + 2*3600 + 60, Amount: 4800, Type: "withdrawal"},
		{Timestamp: base + 2*3600 + 120, Amount: 9500, Type: "withdrawal"},
		{Timestamp: base + 2*3600 + 180, Amount: 2950, Type: "withdrawal"},
	}
	_, err := f.svc.CreateRecord(ctx, 1, "mallory", 700, burst)
	require.NoError(t, err)

	res, err := f.svc.UpdateScore(ctx, 1, "mallory", "mallory", 800)
	require.ErrorIs(t, err, ErrRiskRejected)
	require.NotNil(t, res.Assessment)
	require.True(t, res.Assessment.IsFraudulent)

	rec, err := f.svc.GetRecord(ctx, 1, "mallory")
	require.NoError(t, err)
	require.Equal(t, int64(700), rec.Score, "ledger untouched")
}

func TestAddTransactionPropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRecord(ctx, 1, "alice", 700, nil)
	require.NoError(t, err)

	entry := ledger.TransactionRecord{Timestamp: 5000, Amount: 40, Type: "payment"}
	_, err = f.svc.AddTransaction(ctx, 1, "alice", entry)
	require.NoError(t, err)

	rec2, err := f.svc.GetRecord(ctx, 2, "alice")
	require.NoError(t, err)
	require.Len(t, rec2.History, 1)
	require.Equal(t, entry, rec2.History[0])
}

func TestKYCDocumentFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRecord(ctx, 1, "alice", 700, nil)
	require.NoError(t, err)

	doc := []byte("passport scan bytes")
	contentHash, res, err := f.svc.PutKYCDocument(ctx, 1, "alice", doc)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.False(t, contentHash.IsZero())

	rec, err := f.svc.GetRecord(ctx, 1, "alice")
	require.NoError(t, err)
	require.Equal(t, contentHash, rec.KYCHash)
	require.True(t, rec.KYCPending())

	got, err := f.svc.GetKYCDocument(ctx, 1, "alice")
	require.NoError(t, err)
	require.Equal(t, doc, got)

	_, err = f.svc.VerifyKYC(ctx, 1, "bureau-1", "alice", true)
	require.NoError(t, err)
	rec, err = f.svc.GetRecord(ctx, 1, "alice")
	require.NoError(t, err)
	require.True(t, rec.KYCVerified)

	// verification state relayed too
	rec2, err := f.svc.GetRecord(ctx, 2, "alice")
	require.NoError(t, err)
	require.True(t, rec2.KYCVerified)
	require.Equal(t, contentHash, rec2.KYCHash)
}

func TestAssessRiskReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRecord(ctx, 1, "alice", 700, nil)
	require.NoError(t, err)

	a, err := f.svc.AssessRisk(ctx, 1, "alice")
	require.NoError(t, err)
	require.Equal(t, fraud.StatusInsufficientData, a.Status)
}
