package provider

import (
	"encoding/json"
	"fmt"
)

// knownChains are the chain ids wallet_switchEthereumChain accepts.
var knownChains = map[uint64]string{
	1:        "Ethereum",
	10:       "OP Mainnet",
	56:       "BNB Smart Chain",
	137:      "Polygon",
	8453:     "Base",
	42161:    "Arbitrum One",
	11155111: "Sepolia",
}

// KnownChain reports whether chainID is in the supported chain table.
func KnownChain(chainID uint64) bool {
	_, ok := knownChains[chainID]
	return ok
}

func unmarshalParam(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed parameter: %w", err)
	}
	return nil
}
