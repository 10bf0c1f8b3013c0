package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
	"github.com/CreditBoost360/CreditBoost-sub002/internal/network"
	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// Client adapts a Node to network.LedgerClient without going through HTTP.
// Embedded deployments and test harnesses dial this instead of the RPC
// server; error codes map to the same sentinels the HTTP client produces.
type Client struct {
	desc network.Descriptor
	n    *Node
}

func NewClient(desc network.Descriptor, n *Node) *Client {
	return &Client{desc: desc, n: n}
}

// Dialer returns a registry dialer resolving descriptors to in-process
// nodes by chain id.
func Dialer(nodes map[int64]*Node) network.Dialer {
	return func(d network.Descriptor) (network.LedgerClient, error) {
		n, ok := nodes[d.ChainID]
		if !ok {
			return nil, fmt.Errorf("%w: chain_id=%d", network.ErrNetworkNotConfigured, d.ChainID)
		}
		return NewClient(d, n), nil
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var re *RPCError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: %s", network.SentinelForCode(re.Code), re.Msg)
	}
	return err
}

func (c *Client) Descriptor() network.Descriptor { return c.desc }

func (c *Client) EstimateGas(_ context.Context, op network.Operation) (uint64, error) {
	gas, err := c.n.EstimateGas(op)
	return gas, mapErr(err)
}

func (c *Client) GasPrice(context.Context) (uint64, error) {
	return c.n.GasPrice(), nil
}

func (c *Client) SendTransaction(_ context.Context, op network.Operation, gasLimit, gasPrice uint64) (hash.Hash32, error) {
	txHash, err := c.n.SendTransaction(op, gasLimit, gasPrice)
	return txHash, mapErr(err)
}

func (c *Client) Receipt(_ context.Context, txHash hash.Hash32) (*network.Receipt, bool, error) {
	return c.n.Receipt(txHash)
}

func (c *Client) BlockNumber(context.Context) (int64, error) {
	return c.n.BlockNumber()
}

func (c *Client) GetRecord(_ context.Context, owner string) (*ledger.Record, error) {
	rec, err := c.n.GetRecord(owner)
	if err != nil {
		if errors.Is(err, ledger.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: owner=%s", network.ErrNotFound, owner)
		}
		return nil, err
	}
	return rec, nil
}

func (c *Client) IsProcessed(_ context.Context, messageID hash.Hash32) (bool, error) {
	return c.n.IsProcessed(messageID)
}
