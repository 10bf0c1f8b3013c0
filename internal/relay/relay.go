package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/submit"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
)

// Endpoint is a destination network's receive side. LocalEndpoint applies
// deltas in-process (inside a node); RemoteEndpoint forwards delivery to a
// node over its router contract.
type Endpoint interface {
	ChainID() int64
	// Deliver applies the message exactly once logically: re-delivery of a
	// processed ID reports OutcomeSkipped, never an error.
	Deliver(ctx context.Context, m Message) (Outcome, error)
	IsProcessed(ctx context.Context, id hash.Hash32) (bool, error)
}

// LocalEndpoint binds a state machine and its processed set.
type LocalEndpoint struct {
	Chain     int64
	SM        *ledger.StateMachine
	Processed ProcessedSet
}

func (ep *LocalEndpoint) ChainID() int64 { return ep.Chain }

func (ep *LocalEndpoint) Deliver(ctx context.Context, m Message) (Outcome, error) {
	first, err := ep.Processed.MarkIfUnseen(m.ID)
	if err != nil {
		return "", fmt.Errorf("processed set: %w", err)
	}
	if !first {
		return OutcomeSkipped, nil
	}

	if _, err := ep.SM.ApplyDelta(m.Delta); err != nil {
		// roll the mark back so a later re-delivery can retry
		if rmErr := ep.Processed.Remove(m.ID); rmErr != nil {
			log.Printf("[relay] unmark failed: id=%s err=%v", m.ID.Hex(), rmErr)
		}
		return "", fmt.Errorf("apply delta: %w", err)
	}
	return OutcomeApplied, nil
}

func (ep *LocalEndpoint) IsProcessed(_ context.Context, id hash.Hash32) (bool, error) {
	return ep.Processed.Contains(id)
}

// RemoteEndpoint delivers through a node's router contract. The node's own
// processed set provides the atomic check-and-mark; the pre-check here only
// saves a wasted transaction on obvious duplicates.
type RemoteEndpoint struct {
	Chain  int64
	Sub    *submit.Manager
	Client network.LedgerClient
}

func (ep *RemoteEndpoint) ChainID() int64 { return ep.Chain }

func (ep *RemoteEndpoint) Deliver(ctx context.Context, m Message) (Outcome, error) {
	if done, err := ep.Client.IsProcessed(ctx, m.ID); err == nil && done {
		return OutcomeSkipped, nil
	}

	payload, err := Encode(m)
	if err != nil {
		return "", err
	}
	desc := ep.Client.Descriptor()
	pt, err := ep.Sub.Submit(ctx, ep.Chain, network.Operation{
		Contract: desc.RelayRouter,
		Method:   "deliverMessage",
		Caller:   m.Delta.Owner,
		Owner:    m.Delta.Owner,
		Args:     payload,
	})
	if err != nil {
		return "", fmt.Errorf("deliver message: %w", err)
	}

	st, err := ep.Sub.Monitor(ctx, ep.Chain, pt.TxHash, desc.RequiredConfirmations)
	if err != nil {
		return "", err
	}
	if st.Status == submit.StatusFailed {
		return "", fmt.Errorf("deliver message reverted: id=%s", m.ID.Hex())
	}
	return OutcomeApplied, nil
}

func (ep *RemoteEndpoint) IsProcessed(ctx context.Context, id hash.Hash32) (bool, error) {
	return ep.Client.IsProcessed(ctx, id)
}

// Relay packages record deltas, hands them to the source network's router
// and applies incoming deltas idempotently. Send and Receive sides are
// independent: a process may run only one.
type Relay struct {
	reg    *network.Registry
	sub    *submit.Manager
	router Router

	endpoints map[int64]Endpoint
	history   Recorder
}

func New(reg *network.Registry, sub *submit.Manager, router Router, history Recorder) *Relay {
	if history == nil {
		history = NopRecorder{}
	}
	return &Relay{
		reg:       reg,
		sub:       sub,
		router:    router,
		endpoints: make(map[int64]Endpoint),
		history:   history,
	}
}

// AddEndpoint registers a receive side. Call during startup, before Receive
// traffic flows.
func (r *Relay) AddEndpoint(ep Endpoint) {
	r.endpoints[ep.ChainID()] = ep
}

type routerSendArgs struct {
	DestChain int64  `json:"dest_chain"`
	MessageID string `json:"message_id"`
	Payload   []byte `json:"payload"`
}

// Send builds the message, records the send on the source network's router
// contract and publishes it to the transport. The returned message is in
// status sent; it stays there until the destination eventually processes
// it. There is no cross-boundary retry here, the transport re-delivers.
func (r *Relay) Send(ctx context.Context, sourceChain, destChain int64, delta ledger.Delta) (Message, error) {
	srcDesc, err := r.reg.Descriptor(sourceChain)
	if err != nil {
		return Message{}, err
	}
	if _, err := r.reg.Descriptor(destChain); err != nil {
		return Message{}, err
	}

	m := NewMessage(sourceChain, destChain, delta)

	payload, err := Encode(m)
	if err != nil {
		return Message{}, err
	}
	args, err := json.Marshal(routerSendArgs{
		DestChain: destChain,
		MessageID: m.ID.Hex(),
		Payload:   payload,
	})
	if err != nil {
		return Message{}, err
	}

	pt, err := r.sub.Submit(ctx, sourceChain, network.Operation{
		Contract: srcDesc.RelayRouter,
		Method:   "sendMessage",
		Caller:   delta.Owner,
		Owner:    delta.Owner,
		Args:     args,
	})
	if err != nil {
		m.Status = StatusFailed
		r.history.Record(ctx, m, "", err)
		return m, fmt.Errorf("router send: %w", err)
	}

	if err := r.router.Publish(ctx, m); err != nil {
		// the router contract already accepted the message; the transport
		// will re-deliver eventually, so the message stays sent
		log.Printf("[relay] publish failed, message stays sent: id=%s err=%v", m.ID.Hex(), err)
	}

	log.Printf("[relay] sent: id=%s src=%d dst=%d owner=%s tx=%s retries=%d",
		m.ID.Hex(), sourceChain, destChain, delta.Owner, pt.TxHash.Hex(), pt.RetriesUsed)
	r.history.Record(ctx, m, "", nil)
	return m, nil
}

// Broadcast sends the delta to every configured network except the source.
func (r *Relay) Broadcast(ctx context.Context, sourceChain int64, delta ledger.Delta) ([]Message, error) {
	var out []Message
	for _, chainID := range r.reg.ChainIDs() {
		if chainID == sourceChain {
			continue
		}
		m, err := r.Send(ctx, sourceChain, chainID, delta)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Receive routes an incoming message to its destination endpoint. A skip is
// a successful idempotent no-op, not an error.
func (r *Relay) Receive(ctx context.Context, m Message) (Outcome, error) {
	ep, ok := r.endpoints[m.DestChain]
	if !ok {
		return "", fmt.Errorf("%w: no endpoint for chain_id=%d", network.ErrNetworkNotConfigured, m.DestChain)
	}

	// the message reached its destination; processing comes next
	m.Status = StatusDelivered
	r.history.Record(ctx, m, "", nil)

	outcome, err := ep.Deliver(ctx, m)
	if err != nil {
		m.Status = StatusFailed
		r.history.Record(ctx, m, "", err)
		return "", err
	}

	m.Status = StatusProcessed
	r.history.Record(ctx, m, string(outcome), nil)
	if outcome == OutcomeSkipped {
		log.Printf("[relay] skip already processed: id=%s dst=%d", m.ID.Hex(), m.DestChain)
	} else {
		log.Printf("[relay] applied: id=%s dst=%d owner=%s", m.ID.Hex(), m.DestChain, m.Delta.Owner)
	}
	return outcome, nil
}

// IsProcessed answers the ops/test query against a registered endpoint.
func (r *Relay) IsProcessed(ctx context.Context, chainID int64, id hash.Hash32) (bool, error) {
	ep, ok := r.endpoints[chainID]
	if !ok {
		return false, fmt.Errorf("%w: no endpoint for chain_id=%d", network.ErrNetworkNotConfigured, chainID)
	}
	return ep.IsProcessed(ctx, id)
}
