package network

import (
	"encoding/json"
	"fmt"
	"os"
)

// Descriptor holds one network's connection config. Immutable after the
// registry loads it.
type Descriptor struct {
	ChainID               int64   `json:"chain_id"`
	Name                  string  `json:"name"`
	RPCEndpoint           string  `json:"rpc_endpoint"`
	LedgerContract        string  `json:"ledger_contract"`
	RelayRouter           string  `json:"relay_router"`
	GasMultiplier         float64 `json:"gas_multiplier"`
	RequiredConfirmations int     `json:"required_confirmations"`
	IsTestnet             bool    `json:"is_testnet"`
}

func (d Descriptor) validate() error {
	if d.ChainID <= 0 {
		return fmt.Errorf("%w: chain_id=%d", ErrInvalidNetwork, d.ChainID)
	}
	if d.RPCEndpoint == "" {
		return fmt.Errorf("%w: chain_id=%d has empty rpc endpoint", ErrInvalidNetwork, d.ChainID)
	}
	if d.GasMultiplier < 0 {
		return fmt.Errorf("%w: chain_id=%d gas_multiplier=%f", ErrInvalidNetwork, d.ChainID, d.GasMultiplier)
	}
	if d.RequiredConfirmations < 0 {
		return fmt.Errorf("%w: chain_id=%d required_confirmations=%d", ErrInvalidNetwork, d.ChainID, d.RequiredConfirmations)
	}
	return nil
}

// LoadDescriptors reads the networks file (a JSON array of descriptors).
func LoadDescriptors(path string) ([]Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read networks file: %w", err)
	}
	var descs []Descriptor
	if err := json.Unmarshal(raw, &descs); err != nil {
		return nil, fmt.Errorf("parse networks file: %w", err)
	}
	return descs, nil
}
