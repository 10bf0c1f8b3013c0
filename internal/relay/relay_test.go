package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
)

type captureRouter struct {
	mu        sync.Mutex
	published []Message
	fail      error
}

func (r *captureRouter) Publish(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.published = append(r.published, m)
	return nil
}

func (r *captureRouter) Close() error { return nil }

func newLocalEndpoint(t *testing.T, chainID int64) (*LocalEndpoint, *ledger.StateMachine) {
	t.Helper()
	sm := ledger.NewStateMachine(ledger.NewMemStore(), ledger.NewCapabilities())
	return &LocalEndpoint{
		Chain:     chainID,
		SM:        sm,
		Processed: NewMemProcessedSet(),
	}, sm
}

func fullDelta(owner string, score, lastUpdate int64) ledger.Delta {
	return ledger.Delta{
		Owner:      owner,
		Score:      &score,
		LastUpdate: lastUpdate,
		Transactions: []ledger.TransactionRecord{
			{Timestamp: lastUpdate - 10, Amount: 40, Type: "payment"},
		},
	}
}

func TestReceiveIsIdempotent(t *testing.T) {
	ep, sm := newLocalEndpoint(t, 2)
	rl := New(nil, nil, nil, nil)
	rl.AddEndpoint(ep)

	m := NewMessage(1, 2, fullDelta("alice", 700, 5000))

	out, err := rl.Receive(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, out)

	rec, err := sm.Get("alice")
	require.NoError(t, err)
	require.Equal(t, int64(700), rec.Score)
	require.Len(t, rec.History, 1)

	// re-delivery: skip, state untouched
	out, err = rl.Receive(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, out)

	again, err := sm.Get("alice")
	require.NoError(t, err)
	require.Equal(t, rec, again)

	done, err := rl.IsProcessed(context.Background(), 2, m.ID)
	require.NoError(t, err)
	require.True(t, done)
}

func TestReceiveUnknownDestination(t *testing.T) {
	rl := New(nil, nil, nil, nil)
	m := NewMessage(1, 9, fullDelta("alice", 700, 5000))
	_, err := rl.Receive(context.Background(), m)
	require.Error(t, err)
}

type failingStore struct{ fail bool }

func (s *failingStore) Get(string) (*ledger.Record, bool, error) {
	if s.fail {
		return nil, false, errors.New("store down")
	}
	return nil, false, nil
}

func (s *failingStore) Put(*ledger.Record) error {
	return errors.New("store down")
}

// An apply failure must roll the processed mark back so a later re-delivery
// can retry instead of being skipped forever.
func TestFailedApplyUnmarksMessage(t *testing.T) {
	store := &failingStore{fail: true}
	sm := ledger.NewStateMachine(store, ledger.NewCapabilities())
	ep := &LocalEndpoint{Chain: 2, SM: sm, Processed: NewMemProcessedSet()}
	rl := New(nil, nil, nil, nil)
	rl.AddEndpoint(ep)

	m := NewMessage(1, 2, fullDelta("alice", 700, 5000))

	_, err := rl.Receive(context.Background(), m)
	require.Error(t, err)

	done, err := ep.Processed.Contains(m.ID)
	require.NoError(t, err)
	require.False(t, done, "mark rolled back after failed apply")
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *captureRecorder) Record(_ context.Context, m Message, outcome string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, string(m.Status)+"/"+outcome)
}

// The recorder must see the delivered transition on arrival and the
// processed transition after the endpoint is done, on both first delivery
// and re-delivery.
func TestReceiveRecordsDeliveryTrail(t *testing.T) {
	ep, _ := newLocalEndpoint(t, 2)
	trail := &captureRecorder{}
	rl := New(nil, nil, nil, trail)
	rl.AddEndpoint(ep)

	m := NewMessage(1, 2, fullDelta("alice", 700, 5000))

	_, err := rl.Receive(context.Background(), m)
	require.NoError(t, err)
	_, err = rl.Receive(context.Background(), m)
	require.NoError(t, err)

	require.Equal(t, []string{
		"delivered/",
		"processed/applied",
		"delivered/",
		"processed/skipped",
	}, trail.entries)
}

func TestMessageIDsDifferPerSend(t *testing.T) {
	d := fullDelta("alice", 700, 5000)
	m1 := NewMessage(1, 2, d)
	m2 := NewMessage(1, 2, d)
	require.NotEqual(t, m1.ID, m2.ID, "each send is its own logical delivery")

	// same nonce, same content: same id
	require.Equal(t,
		ComputeID(1, 2, d, m1.Nonce),
		ComputeID(1, 2, d, m1.Nonce),
	)
}

func TestTopicFor(t *testing.T) {
	require.Equal(t, "credit.relay.7", TopicFor("", 7))
	require.Equal(t, "ledger.sync.7", TopicFor("ledger.sync.", 7))
}

func TestMessageCodecRoundTrip(t *testing.T) {
	m := NewMessage(1, 2, fullDelta("alice", 700, 5000))
	raw, err := Encode(m)
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, m, got)
}
