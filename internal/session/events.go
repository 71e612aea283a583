package session

import "connectkit/internal/model"

// Event is the closed set of transitions that may mutate the session
// context. The store applies each event atomically and notifies
// subscribers with the resulting snapshot; no event is dropped or
// coalesced.
type Event interface {
	isEvent()
}

// InitializeContext resets the context to its initial state.
type InitializeContext struct{}

// ChainChanged switches the active chain.
type ChainChanged struct {
	ChainID uint64
}

// AccountChanged selects an account. Ignored while no device is
// connected, so a selected account without a device is unrepresentable.
type AccountChanged struct {
	Account model.Account
}

// DeviceConnected records a newly opened device session.
type DeviceConnected struct {
	Device model.Device
}

// DeviceDisconnected clears the device and everything that depends on it.
type DeviceDisconnected struct{}

// TrustchainConnected records a completed trustchain authentication.
type TrustchainConnected struct {
	TrustChainID    string
	ApplicationPath string
}

// WalletDisconnected tears the whole session down, keeping only the
// active chain.
type WalletDisconnected struct{}

func (InitializeContext) isEvent()   {}
func (ChainChanged) isEvent()        {}
func (AccountChanged) isEvent()      {}
func (DeviceConnected) isEvent()     {}
func (DeviceDisconnected) isEvent()  {}
func (TrustchainConnected) isEvent() {}
func (WalletDisconnected) isEvent()  {}

// reduce applies one event to a context snapshot and returns the next
// snapshot. It is a pure function over the event enumeration; it has no
// knowledge of why a transition happened.
func reduce(ctx model.SessionContext, ev Event) model.SessionContext {
	switch e := ev.(type) {
	case InitializeContext:
		return model.NewSessionContext()
	case ChainChanged:
		ctx.ChainID = e.ChainID
		return ctx
	case AccountChanged:
		if ctx.ConnectedDevice == nil {
			return ctx
		}
		account := e.Account
		ctx.SelectedAccount = &account
		return ctx
	case DeviceConnected:
		device := e.Device
		ctx.ConnectedDevice = &device
		return ctx
	case DeviceDisconnected:
		ctx.ConnectedDevice = nil
		ctx.SelectedAccount = nil
		ctx.TrustChainID = ""
		ctx.ApplicationPath = ""
		return ctx
	case TrustchainConnected:
		ctx.TrustChainID = e.TrustChainID
		ctx.ApplicationPath = e.ApplicationPath
		return ctx
	case WalletDisconnected:
		return model.SessionContext{ChainID: ctx.ChainID}
	default:
		return ctx
	}
}
