package node

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// dials an HTTP client at a node served over httptest, exercising the full
// wire path including error-code mapping
func dialTestNode(t *testing.T) (network.LedgerClient, *Node) {
	t.Helper()
	n := testNode(t)
	srv := httptest.NewServer(NewServer(n).Handler())
	t.Cleanup(srv.Close)

	client, err := network.DialHTTP(network.Descriptor{
		ChainID:        1,
		Name:           "local",
		RPCEndpoint:    srv.URL,
		LedgerContract: "credit-ledger",
		RelayRouter:    "relay-router",
	})
	require.NoError(t, err)
	return client, n
}

func TestRPCSubmitAndReadBack(t *testing.T) {
	client, _ := dialTestNode(t)
	ctx := context.Background()

	op := createOp(t, "alice", 700)
	gas, err := client.EstimateGas(ctx, op)
	require.NoError(t, err)
	require.NotZero(t, gas)

	price, err := client.GasPrice(ctx)
	require.NoError(t, err)
	require.NotZero(t, price)

	txHash, err := client.SendTransaction(ctx, op, gas, price)
	require.NoError(t, err)

	rcpt, found, err := client.Receipt(ctx, txHash)
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, rcpt.Reverted)
	require.Equal(t, txHash, rcpt.TxHash)

	head, err := client.BlockNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), head)

	rec, err := client.GetRecord(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(700), rec.Score)
}

func TestRPCMissingReceiptIsNotAnError(t *testing.T) {
	client, _ := dialTestNode(t)

	_, found, err := client.Receipt(context.Background(), hash.Sum([]byte("never-sent")))
	require.NoError(t, err)
	require.False(t, found)
}

func TestRPCErrorCodesSurviveTheWire(t *testing.T) {
	client, n := dialTestNode(t)
	ctx := context.Background()

	op := createOp(t, "alice", 700)

	_, err := client.SendTransaction(ctx, op, 60_000, 1) // below floor
	require.ErrorIs(t, err, network.ErrUnderpricedGas)

	n.Fund("alice", 10)
	_, err = client.SendTransaction(ctx, op, 60_000, 100)
	require.ErrorIs(t, err, network.ErrInsufficientFunds)

	_, err = client.GetRecord(ctx, "nobody")
	require.ErrorIs(t, err, network.ErrNotFound)
}

func TestRPCProcessedQuery(t *testing.T) {
	client, _ := dialTestNode(t)

	done, err := client.IsProcessed(context.Background(), hash.Sum([]byte("some-id")))
	require.NoError(t, err)
	require.False(t, done)
}
