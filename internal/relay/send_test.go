package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/submit"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// stubClient accepts every transaction; enough for the send path, which
// only needs the router contract to take the message.
type stubClient struct {
	desc  network.Descriptor
	sends []network.Operation
}

func (c *stubClient) Descriptor() network.Descriptor { return c.desc }

func (c *stubClient) EstimateGas(context.Context, network.Operation) (uint64, error) {
	return 35_000, nil
}

func (c *stubClient) GasPrice(context.Context) (uint64, error) { return 100, nil }

func (c *stubClient) SendTransaction(_ context.Context, op network.Operation, _, _ uint64) (hash.Hash32, error) {
	c.sends = append(c.sends, op)
	return hash.Sum([]byte(op.Method)), nil
}

func (c *stubClient) Receipt(context.Context, hash.Hash32) (*network.Receipt, bool, error) {
	return nil, false, nil
}

func (c *stubClient) BlockNumber(context.Context) (int64, error) { return 0, nil }

func (c *stubClient) GetRecord(context.Context, string) (*ledger.Record, error) {
	return nil, network.ErrNotFound
}

func (c *stubClient) IsProcessed(context.Context, hash.Hash32) (bool, error) {
	return false, nil
}

func sendFixture(t *testing.T) (*Relay, map[int64]*stubClient, *captureRouter) {
	t.Helper()
	clients := map[int64]*stubClient{}
	descs := []network.Descriptor{
		{ChainID: 1, Name: "net-1", RPCEndpoint: "stub", RelayRouter: "router-1"},
		{ChainID: 2, Name: "net-2", RPCEndpoint: "stub", RelayRouter: "router-2"},
		{ChainID: 3, Name: "net-3", RPCEndpoint: "stub", RelayRouter: "router-3"},
	}
	reg, err := network.NewRegistry(descs, func(d network.Descriptor) (network.LedgerClient, error) {
		c := &stubClient{desc: d}
		clients[d.ChainID] = c
		return c, nil
	})
	require.NoError(t, err)

	sub := submit.NewManager(reg, submit.Config{RetryDelay: time.Millisecond, PollInterval: time.Millisecond})
	router := &captureRouter{}
	return New(reg, sub, router, nil), clients, router
}

func TestSendRecordsIntentAndPublishes(t *testing.T) {
	rl, clients, router := sendFixture(t)

	m, err := rl.Send(context.Background(), 1, 2, fullDelta("alice", 700, 5000))
	require.NoError(t, err)
	require.Equal(t, StatusSent, m.Status)
	require.False(t, m.ID.IsZero())

	// router contract op landed on the source network
	require.Len(t, clients[1].sends, 1)
	op := clients[1].sends[0]
	require.Equal(t, "router-1", op.Contract)
	require.Equal(t, "sendMessage", op.Method)

	require.Len(t, router.published, 1)
	require.Equal(t, m.ID, router.published[0].ID)
}

func TestSendUnknownDestinationFailsBeforeSubmit(t *testing.T) {
	rl, clients, router := sendFixture(t)

	_, err := rl.Send(context.Background(), 1, 99, fullDelta("alice", 700, 5000))
	require.ErrorIs(t, err, network.ErrNetworkNotConfigured)
	require.Empty(t, clients[1].sends)
	require.Empty(t, router.published)
}

func TestBroadcastFansOutToAllOtherNetworks(t *testing.T) {
	rl, _, router := sendFixture(t)

	msgs, err := rl.Broadcast(context.Background(), 1, fullDelta("alice", 700, 5000))
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	dests := map[int64]bool{}
	for _, m := range router.published {
		dests[m.DestChain] = true
		require.Equal(t, int64(1), m.SourceChain)
	}
	require.Equal(t, map[int64]bool{2: true, 3: true}, dests)
}

// Publish failure after the router contract accepted the message must not
// fail the send: the message stays sent and the transport re-delivers later.
func TestSendSurvivesPublishFailure(t *testing.T) {
	rl, clients, router := sendFixture(t)
	router.fail = context.DeadlineExceeded

	m, err := rl.Send(context.Background(), 1, 2, fullDelta("alice", 700, 5000))
	require.NoError(t, err)
	require.Equal(t, StatusSent, m.Status)
	require.Len(t, clients[1].sends, 1)
}
