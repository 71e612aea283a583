package model

// DefaultChainID is the chain the session starts on (Ethereum mainnet).
const DefaultChainID uint64 = 1

// SessionContext is the single mutable snapshot of what is currently
// connected and selected. It is owned by the session store; every other
// component reads copies and never mutates it directly.
//
// SelectedAccount is only ever set while ConnectedDevice is set.
type SessionContext struct {
	ConnectedDevice *Device  `json:"connectedDevice,omitempty"`
	SelectedAccount *Account `json:"selectedAccount,omitempty"`
	TrustChainID    string   `json:"trustChainId,omitempty"`
	ApplicationPath string   `json:"applicationPath,omitempty"`
	ChainID         uint64   `json:"chainId"`
}

// NewSessionContext returns the initial context for a freshly mounted widget.
func NewSessionContext() SessionContext {
	return SessionContext{ChainID: DefaultChainID}
}
