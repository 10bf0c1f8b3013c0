package ledger

import "sync"

// Capability names a role-independent permission. The source system used
// contract-level role inheritance; here it is a flat principal -> capability
// table checked per operation.
type Capability string

const (
	// CapCreditBureau allows attesting KYC verification results.
	CapCreditBureau Capability = "credit_bureau"
)

// Capabilities is the table, built at startup and safe for concurrent reads.
type Capabilities struct {
	mu sync.RWMutex
	m  map[string]map[Capability]bool
}

func NewCapabilities() *Capabilities {
	return &Capabilities{m: make(map[string]map[Capability]bool)}
}

func (c *Capabilities) Grant(principal string, cap Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m[principal] == nil {
		c.m[principal] = make(map[Capability]bool)
	}
	c.m[principal][cap] = true
}

func (c *Capabilities) Revoke(principal string, cap Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.m[principal]; ok {
		delete(set, cap)
	}
}

func (c *Capabilities) Has(principal string, cap Capability) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m[principal][cap]
}
