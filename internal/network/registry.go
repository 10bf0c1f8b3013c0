package network

import (
	"fmt"
	"log"
	"sort"
)

// Dialer turns a descriptor into a live client. Injected so tests can hand
// the registry deterministic doubles instead of HTTP clients.
type Dialer func(Descriptor) (LedgerClient, error)

// Registry holds every configured network. It is built once at startup and
// read-only afterwards; lookups need no locking.
type Registry struct {
	descs   map[int64]Descriptor
	clients map[int64]LedgerClient
}

func NewRegistry(descs []Descriptor, dial Dialer) (*Registry, error) {
	r := &Registry{
		descs:   make(map[int64]Descriptor, len(descs)),
		clients: make(map[int64]LedgerClient, len(descs)),
	}
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.descs[d.ChainID]; dup {
			return nil, fmt.Errorf("%w: duplicate chain_id=%d", ErrInvalidNetwork, d.ChainID)
		}
		c, err := dial(d)
		if err != nil {
			return nil, fmt.Errorf("dial chain_id=%d: %w", d.ChainID, err)
		}
		r.descs[d.ChainID] = d
		r.clients[d.ChainID] = c
		log.Printf("[registry] network loaded: chain_id=%d name=%s testnet=%v confirmations=%d",
			d.ChainID, d.Name, d.IsTestnet, d.RequiredConfirmations)
	}
	return r, nil
}

func (r *Registry) Client(chainID int64) (LedgerClient, error) {
	c, ok := r.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: chain_id=%d", ErrNetworkNotConfigured, chainID)
	}
	return c, nil
}

func (r *Registry) Descriptor(chainID int64) (Descriptor, error) {
	d, ok := r.descs[chainID]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: chain_id=%d", ErrNetworkNotConfigured, chainID)
	}
	return d, nil
}

// ChainIDs lists configured networks; used by the relay to fan a delta out
// to every network except the source.
func (r *Registry) ChainIDs() []int64 {
	out := make([]int64, 0, len(r.descs))
	for id := range r.descs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
