package submit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// fakeClient scripts SendTransaction outcomes per attempt and records the
// gas prices it was offered.
type fakeClient struct {
	desc network.Descriptor

	mu        sync.Mutex
	sendErrs  []error // consumed one per attempt; nil entry means success
	sends     int
	gasPrices []uint64

	head     int64
	receipts map[hash.Hash32]*network.Receipt
}

func newFakeClient(desc network.Descriptor) *fakeClient {
	return &fakeClient{desc: desc, receipts: make(map[hash.Hash32]*network.Receipt)}
}

func (c *fakeClient) Descriptor() network.Descriptor { return c.desc }

func (c *fakeClient) EstimateGas(context.Context, network.Operation) (uint64, error) {
	return 50_000, nil
}

func (c *fakeClient) GasPrice(context.Context) (uint64, error) { return 100, nil }

func (c *fakeClient) SendTransaction(_ context.Context, op network.Operation, gasLimit, gasPrice uint64) (hash.Hash32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gasPrices = append(c.gasPrices, gasPrice)
	i := c.sends
	c.sends++
	if i < len(c.sendErrs) && c.sendErrs[i] != nil {
		return hash.Hash32{}, c.sendErrs[i]
	}
	return hash.Sum([]byte{byte(i)}), nil
}

func (c *fakeClient) Receipt(_ context.Context, txHash hash.Hash32) (*network.Receipt, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[txHash]
	return r, ok, nil
}

func (c *fakeClient) BlockNumber(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, nil
}

func (c *fakeClient) GetRecord(context.Context, string) (*ledger.Record, error) {
	return nil, network.ErrNotFound
}

func (c *fakeClient) IsProcessed(context.Context, hash.Hash32) (bool, error) {
	return false, nil
}

func testRegistry(t *testing.T, c *fakeClient) *network.Registry {
	t.Helper()
	reg, err := network.NewRegistry(
		[]network.Descriptor{c.desc},
		func(network.Descriptor) (network.LedgerClient, error) { return c, nil },
	)
	require.NoError(t, err)
	return reg
}

func fastManager(reg *network.Registry, strategy Strategy) *Manager {
	return NewManager(reg, Config{
		Strategy:     strategy,
		MaxRetries:   3,
		RetryDelay:   time.Millisecond,
		PollInterval: time.Millisecond,
	})
}

var testOp = network.Operation{
	Contract: "credit-ledger",
	Method:   "updateScore",
	Caller:   "alice",
	Owner:    "alice",
}

func TestSubmitSucceedsFirstAttempt(t *testing.T) {
	c := newFakeClient(network.Descriptor{ChainID: 1, Name: "local", RPCEndpoint: "fake"})
	m := fastManager(testRegistry(t, c), Average)

	pt, err := m.Submit(context.Background(), 1, testOp)
	require.NoError(t, err)
	require.Equal(t, StatusPending, pt.Status)
	require.Zero(t, pt.RetriesUsed)
	require.Equal(t, 1, c.sends)
	// market 100, multiplier 1, average tier 1
	require.Equal(t, []uint64{100}, c.gasPrices)
}

func TestSubmitRetriesTransientThenSucceeds(t *testing.T) {
	c := newFakeClient(network.Descriptor{ChainID: 1, Name: "local", RPCEndpoint: "fake"})
	c.sendErrs = []error{network.ErrNonceRace, network.ErrUnderpricedGas, nil}
	m := fastManager(testRegistry(t, c), Average)

	pt, err := m.Submit(context.Background(), 1, testOp)
	require.NoError(t, err)
	require.Equal(t, 2, pt.RetriesUsed)
	require.Equal(t, 3, c.sends)
}

func TestSubmitExhaustsRetries(t *testing.T) {
	c := newFakeClient(network.Descriptor{ChainID: 1, Name: "local", RPCEndpoint: "fake"})
	c.sendErrs = []error{network.ErrNonceRace, network.ErrNonceRace, network.ErrNonceRace}
	m := fastManager(testRegistry(t, c), Average)

	_, err := m.Submit(context.Background(), 1, testOp)
	require.ErrorIs(t, err, ErrSubmissionFailed)
	require.Equal(t, 3, c.sends, "exactly MaxRetries total attempts")
}

func TestSubmitTerminalErrorNeverRetried(t *testing.T) {
	c := newFakeClient(network.Descriptor{ChainID: 1, Name: "local", RPCEndpoint: "fake"})
	c.sendErrs = []error{network.ErrInsufficientFunds}
	m := fastManager(testRegistry(t, c), Average)

	_, err := m.Submit(context.Background(), 1, testOp)
	require.ErrorIs(t, err, network.ErrInsufficientFunds)
	require.Equal(t, 1, c.sends)
}

func TestGasPriceStacksNetworkAndStrategy(t *testing.T) {
	c := newFakeClient(network.Descriptor{ChainID: 1, Name: "local", RPCEndpoint: "fake", GasMultiplier: 1.5})
	m := fastManager(testRegistry(t, c), Fastest)

	_, err := m.Submit(context.Background(), 1, testOp)
	require.NoError(t, err)
	// 100 market x 1.5 network x 1.5 fastest
	require.Equal(t, []uint64{225}, c.gasPrices)
}

func TestMonitorConfirms(t *testing.T) {
	c := newFakeClient(network.Descriptor{ChainID: 1, Name: "local", RPCEndpoint: "fake", RequiredConfirmations: 3})
	m := fastManager(testRegistry(t, c), Average)

	txHash := hash.Sum([]byte("tx"))
	c.mu.Lock()
	c.receipts[txHash] = &network.Receipt{TxHash: txHash, BlockNum: 10}
	c.head = 13
	c.mu.Unlock()

	pt, err := m.Monitor(context.Background(), 1, txHash, -1)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, pt.Status)
	require.GreaterOrEqual(t, pt.Confirmations, int64(3))
}

func TestMonitorReportsRevert(t *testing.T) {
	c := newFakeClient(network.Descriptor{ChainID: 1, Name: "local", RPCEndpoint: "fake"})
	m := fastManager(testRegistry(t, c), Average)

	txHash := hash.Sum([]byte("tx"))
	c.mu.Lock()
	c.receipts[txHash] = &network.Receipt{TxHash: txHash, BlockNum: 10, Reverted: true, Revert: "access denied"}
	c.mu.Unlock()

	pt, err := m.Monitor(context.Background(), 1, txHash, -1)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, pt.Status)
}

func TestMonitorTimeout(t *testing.T) {
	c := newFakeClient(network.Descriptor{ChainID: 1, Name: "local", RPCEndpoint: "fake"})
	m := fastManager(testRegistry(t, c), Average)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Monitor(ctx, 1, hash.Sum([]byte("never-mined")), -1)
	require.ErrorIs(t, err, ErrMonitorTimeout)
}

func TestGasBuffer(t *testing.T) {
	require.Equal(t, uint64(60_000), bufferGas(50_000))
	require.Equal(t, uint64(120), bufferGas(100))
}
