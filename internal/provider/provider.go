// Package provider maps externally issued JSON-RPC requests onto the
// session, device, keyring, sync and signing components, implementing the
// EIP-1193 wallet provider contract.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"connectkit/internal/accounts"
	"connectkit/internal/cloudsync"
	"connectkit/internal/device"
	"connectkit/internal/keyring"
	"connectkit/internal/model"
	"connectkit/internal/session"
	"connectkit/internal/signflow"
)

// ClientVersion is reported by web3_clientVersion.
const ClientVersion = "connectkit/1.0.0"

// Provider event names, mirrored onto the EIP-1193 events of the same
// name by the embedding layer.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Event is a provider notification for the embedding layer.
type Event struct {
	Name string
	Data any
}

// Provider is the EIP-1193 facade. Its external contract is fully
// request/response even though the internal orchestration is
// asynchronous and event-driven.
type Provider struct {
	store   *session.Store
	devices *device.Manager
	keys    *keyring.Keyring
	syncer  *cloudsync.Syncer
	list    *accounts.List
	flow    *signflow.Flow
	log     *zap.Logger

	feed event.Feed // of Event

	stop func()
}

// New wires a provider over the component graph and starts mirroring
// context changes into provider events.
func New(store *session.Store, devices *device.Manager, keys *keyring.Keyring, syncer *cloudsync.Syncer, list *accounts.List, flow *signflow.Flow, log *zap.Logger) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Provider{
		store:   store,
		devices: devices,
		keys:    keys,
		syncer:  syncer,
		list:    list,
		flow:    flow,
		log:     log,
	}
	p.watchContext()
	return p
}

// watchContext forwards context transitions as accountsChanged and
// chainChanged provider events.
func (p *Provider) watchContext() {
	updates := make(chan model.SessionContext, 32)
	sub := p.store.Observe(updates)
	done := make(chan struct{})
	p.stop = func() {
		sub.Unsubscribe()
		close(done)
	}

	go func() {
		prev := <-updates // replayed snapshot
		for {
			select {
			case <-done:
				return
			case snap := <-updates:
				if snap.ChainID != prev.ChainID {
					p.feed.Send(Event{Name: EventChainChanged, Data: hexutil.EncodeUint64(snap.ChainID)})
				}
				if !sameAccount(prev.SelectedAccount, snap.SelectedAccount) {
					p.feed.Send(Event{Name: EventAccountsChanged, Data: addressList(snap.SelectedAccount)})
				}
				prev = snap
			}
		}
	}()
}

func sameAccount(a, b *model.Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.FreshAddress == b.FreshAddress
}

func addressList(account *model.Account) []string {
	if account == nil {
		return []string{}
	}
	return []string{account.FreshAddress.Hex()}
}

// Close stops the context watcher.
func (p *Provider) Close() {
	if p.stop != nil {
		p.stop()
	}
}

// Observe subscribes ch to provider events. ch must be buffered.
func (p *Provider) Observe(ch chan<- Event) event.Subscription {
	return p.feed.Subscribe(ch)
}

// Request handles one JSON-RPC request. Unsupported methods yield a
// JSON-RPC error object, never a Go error.
func (p *Provider) Request(ctx context.Context, req model.RPCRequest) model.RPCResponse {
	p.log.Debug("rpc request", zap.String("method", req.Method), zap.Int64("id", req.ID))

	switch req.Method {
	case "eth_chainId":
		return model.NewRPCResult(req, hexutil.EncodeUint64(p.store.Get().ChainID))

	case "eth_accounts":
		return model.NewRPCResult(req, addressList(p.store.Get().SelectedAccount))

	case "eth_requestAccounts":
		return p.requestAccounts(ctx, req)

	case "wallet_switchEthereumChain":
		return p.switchChain(req)

	case "web3_clientVersion":
		return model.NewRPCResult(req, ClientVersion)

	default:
		if signflow.Supported(req.Method) {
			return p.sign(ctx, req)
		}
		return model.NewRPCError(req, model.CodeUnsupportedMethod,
			fmt.Sprintf("the provider does not support %s", req.Method))
	}
}

// ensureSession brings the widget to a usable state: device connected,
// trustchain authenticated, accounts synced, one account selected. Each
// step is skipped when the context already reflects it, so a second
// eth_requestAccounts never re-prompts.
func (p *Provider) ensureSession(ctx context.Context) error {
	snap := p.store.Get()

	if snap.ConnectedDevice == nil {
		if _, err := p.devices.Connect(ctx, model.ConnectionUSB); err != nil {
			return err
		}
		snap = p.store.Get()
	}

	if snap.TrustChainID == "" {
		auth, err := p.keys.Authenticate(ctx, snap.ConnectedDevice.SessionID)
		if err != nil {
			return err
		}
		p.store.Dispatch(session.TrustchainConnected{
			TrustChainID:    auth.TrustChainID,
			ApplicationPath: auth.ApplicationPath,
		})

		if _, err := p.syncer.FetchAndApply(ctx, auth); err != nil {
			return err
		}
	}

	if p.store.Get().SelectedAccount == nil {
		if synced := p.list.All(); len(synced) > 0 {
			p.store.Dispatch(session.AccountChanged{Account: synced[0]})
		}
	}
	return nil
}

func (p *Provider) requestAccounts(ctx context.Context, req model.RPCRequest) model.RPCResponse {
	if err := p.ensureSession(ctx); err != nil {
		return p.errorResponse(req, err)
	}

	// An intent recorded before the session was ready is replayed now
	// that connection and authentication are complete.
	if intent, ok := p.flow.TakePending(); ok {
		if _, err := p.flow.Run(ctx, intent); err != nil {
			p.log.Warn("replayed signing intent failed", zap.Error(err))
		}
	}

	return model.NewRPCResult(req, addressList(p.store.Get().SelectedAccount))
}

func (p *Provider) sign(ctx context.Context, req model.RPCRequest) model.RPCResponse {
	intent := signflow.Intent{Method: req.Method, Params: req.Params}

	if p.store.Get().ConnectedDevice == nil {
		// Record the intent verbatim, bring the session up, then replay
		// exactly what was asked.
		if err := p.flow.SetPending(intent); err != nil {
			return model.NewRPCError(req, model.CodeInvalidParams, err.Error())
		}
		if err := p.ensureSession(ctx); err != nil {
			return p.errorResponse(req, err)
		}
		pending, ok := p.flow.TakePending()
		if !ok {
			return model.NewRPCError(req, model.CodeInternalError, "pending signing intent lost")
		}
		intent = pending
	}

	result, err := p.flow.Run(ctx, intent)
	if err != nil {
		if model.IsBroadcastError(err) && result != nil {
			// The signature exists; only the broadcast failed.
			p.log.Warn("broadcast failed after successful sign", zap.Error(err))
		}
		return p.errorResponse(req, err)
	}

	if req.Method == signflow.MethodSendTransaction {
		return model.NewRPCResult(req, result.Hash.Hex())
	}
	return model.NewRPCResult(req, hexutil.Encode(result.SignedRawTransaction))
}

type switchChainParam struct {
	ChainID hexutil.Uint64 `json:"chainId"`
}

func (p *Provider) switchChain(req model.RPCRequest) model.RPCResponse {
	if len(req.Params) < 1 {
		return model.NewRPCError(req, model.CodeInvalidParams, "wallet_switchEthereumChain needs a chain parameter")
	}
	var param switchChainParam
	if err := unmarshalParam(req.Params[0], &param); err != nil {
		return model.NewRPCError(req, model.CodeInvalidParams, err.Error())
	}
	chainID := uint64(param.ChainID)
	if !KnownChain(chainID) {
		return model.NewRPCError(req, model.CodeUnrecognizedChain,
			fmt.Sprintf("unrecognized chain id %d", chainID))
	}

	p.store.Dispatch(session.ChainChanged{ChainID: chainID})
	return model.NewRPCResult(req, nil)
}

// errorResponse maps internal typed errors onto JSON-RPC error codes.
func (p *Provider) errorResponse(req model.RPCRequest, err error) model.RPCResponse {
	switch {
	case errors.Is(err, model.ErrUserRejected):
		return model.NewRPCError(req, model.CodeUserRejected, "user rejected the request")
	case errors.Is(err, model.ErrConnectionBusy) || errors.Is(err, model.ErrSigningBusy):
		return model.NewRPCError(req, model.CodeResourceUnavailable, err.Error())
	case errors.Is(err, model.ErrNotConnected), model.IsConnectionError(err):
		return model.NewRPCError(req, model.CodeDisconnected, err.Error())
	case errors.Is(err, model.ErrMissingAuthContext):
		return model.NewRPCError(req, model.CodeUnauthorized, err.Error())
	default:
		return model.NewRPCError(req, model.CodeInternalError, err.Error())
	}
}

// Disconnect tears the wallet session down.
func (p *Provider) Disconnect(ctx context.Context) error {
	if err := p.devices.Disconnect(ctx); err != nil {
		return err
	}
	p.store.Dispatch(session.WalletDisconnected{})
	return nil
}

// GetAccounts returns the synced account records.
func (p *Provider) GetAccounts() []model.Account {
	return p.list.All()
}

// HydrateBalances refreshes native and token balances plus fiat
// valuations on the synced accounts and returns the enriched records.
func (p *Provider) HydrateBalances(ctx context.Context) []model.Account {
	return p.syncer.HydrateWithBalance(ctx)
}

// GetSelectedAccount returns the account the session currently points at.
func (p *Provider) GetSelectedAccount() (model.Account, bool) {
	snap := p.store.Get()
	if snap.SelectedAccount == nil {
		return model.Account{}, false
	}
	return *snap.SelectedAccount, true
}

// SelectAccount points the session at the synced account holding addr.
func (p *Provider) SelectAccount(addr common.Address) error {
	account, ok := p.list.Get(addr)
	if !ok {
		return fmt.Errorf("no synced account with address %s", addr.Hex())
	}
	if p.store.Get().ConnectedDevice == nil {
		return model.ErrNotConnected
	}
	p.store.Dispatch(session.AccountChanged{Account: account})
	return nil
}
