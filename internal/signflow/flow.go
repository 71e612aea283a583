// Package signflow drives a transaction or message through the signing
// state machine: IDLE → SIGNING → {SIGNED | ERROR}, with
// USER_INTERACTION_NEEDED excursions while a physical confirmation is
// pending on the device.
package signflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"connectkit/internal/model"
	"connectkit/internal/session"
)

// Signer executes one signing operation on the device. notify is called
// for every physical confirmation the device starts waiting on; Sign
// returns once the user approved (the signature) or rejected/failed.
type Signer interface {
	Sign(ctx context.Context, req model.SignRequest, notify func(model.Interaction)) ([]byte, error)
}

// Broadcaster submits a signed raw transaction to the network.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, signed []byte) (common.Hash, error)
}

// Flow runs signing intents one at a time per widget instance. A second
// Run while one is in progress is rejected with ErrSigningBusy.
type Flow struct {
	signer      Signer
	broadcaster Broadcaster
	store       *session.Store
	log         *zap.Logger

	feed event.Feed // of model.SignFlowStatus

	mu      sync.Mutex
	active  bool
	state   model.FlowState
	pending *Intent
}

// New creates a signing flow. broadcaster may be nil when broadcasting is
// not wired (sign-only embeddings).
func New(signer Signer, broadcaster Broadcaster, store *session.Store, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{signer: signer, broadcaster: broadcaster, store: store, log: log, state: model.FlowIdle}
}

// State returns the machine's current occupancy: FlowIdle while no flow
// runs, otherwise the state of the in-flight flow.
func (f *Flow) State() model.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Observe subscribes ch to flow status updates. ch must be buffered.
func (f *Flow) Observe(ch chan<- model.SignFlowStatus) event.Subscription {
	return f.feed.Subscribe(ch)
}

func (f *Flow) publish(status model.SignFlowStatus) {
	f.mu.Lock()
	f.state = status.State
	f.mu.Unlock()
	f.feed.Send(status)
}

// SetPending records an intent issued before a device session was ready.
// The intent is validated now and replayed verbatim later.
func (f *Flow) SetPending(intent Intent) error {
	if err := Validate(intent); err != nil {
		return &model.SignFlowError{Type: signTypeOf(intent.Method), Err: err}
	}
	f.mu.Lock()
	f.pending = &intent
	f.mu.Unlock()
	f.log.Info("signing intent queued until session is ready", zap.String("method", intent.Method))
	return nil
}

// TakePending removes and returns the recorded intent, if any.
func (f *Flow) TakePending() (Intent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return Intent{}, false
	}
	intent := *f.pending
	f.pending = nil
	return intent, true
}

func signTypeOf(method string) model.SignType {
	switch method {
	case MethodSendTransaction:
		return model.SignTypeTransaction
	case MethodSignTypedDataV4:
		return model.SignTypeTypedMessage
	default:
		return model.SignTypePersonalSign
	}
}

func (f *Flow) acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		return model.ErrSigningBusy
	}
	f.active = true
	return nil
}

func (f *Flow) release() {
	f.mu.Lock()
	f.active = false
	f.state = model.FlowIdle
	f.mu.Unlock()
}

// Run executes one signing intent to a terminal state. It returns the
// signed transaction on success. On broadcast failure the signed
// transaction is still returned alongside the BroadcastTransactionError:
// a valid signature is never lost because broadcast failed.
func (f *Flow) Run(ctx context.Context, intent Intent) (*model.SignedTransaction, error) {
	signType := signTypeOf(intent.Method)

	if err := f.acquire(); err != nil {
		return nil, err
	}
	defer f.release()

	snap := f.store.Get()
	if snap.ConnectedDevice == nil {
		return nil, f.fail(signType, model.ErrNotConnected)
	}

	req, broadcast, err := resolve(intent, snap.ChainID)
	if err != nil {
		return nil, f.fail(signType, err)
	}
	if req.Address == (common.Address{}) && snap.SelectedAccount != nil {
		req.Address = snap.SelectedAccount.FreshAddress
	}
	if req.Address == (common.Address{}) {
		return nil, f.fail(signType, fmt.Errorf("no account to sign with"))
	}
	// The selected account's derivation path applies only when the request
	// actually signs for that account.
	if snap.SelectedAccount != nil && snap.SelectedAccount.FreshAddress == req.Address {
		req.DerivationPath = snap.SelectedAccount.DerivationPath
	}

	// A device disconnect while this flow waits on the user must fail the
	// flow rather than leave it dangling.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	updates := make(chan model.SessionContext, 16)
	sub := f.store.Observe(updates)
	defer sub.Unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				if snap.ConnectedDevice == nil {
					cancel(model.ErrNotConnected)
					return
				}
			}
		}
	}()

	f.publish(model.SignFlowStatus{Type: signType, State: model.FlowSigning})

	signed, err := f.signer.Sign(ctx, req, func(interaction model.Interaction) {
		f.publish(model.SignFlowStatus{
			Type:        signType,
			State:       model.FlowUserInteractionNeeded,
			Interaction: interaction,
		})
	})
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			err = cause
		}
		return nil, f.fail(signType, err)
	}

	// The interaction was satisfied; the flow is signing again until the
	// result is assembled.
	f.publish(model.SignFlowStatus{Type: signType, State: model.FlowSigning})

	result := &model.SignedTransaction{
		RawTransaction:       req.Payload,
		SignedRawTransaction: signed,
	}

	if broadcast {
		if f.broadcaster == nil {
			return nil, f.fail(signType, fmt.Errorf("broadcast requested but no broadcaster configured"))
		}
		hash, err := f.broadcaster.SendRawTransaction(ctx, signed)
		if err != nil {
			broadcastErr := &model.BroadcastTransactionError{Err: err}
			f.publish(model.SignFlowStatus{Type: signType, State: model.FlowError, Err: broadcastErr})
			// Signing succeeded and broadcast failed: both facts reach
			// the caller.
			return result, broadcastErr
		}
		result.Hash = &hash
	}

	f.publish(model.SignFlowStatus{Type: signType, State: model.FlowSigned, Signed: result})
	f.log.Info("signing flow completed",
		zap.String("type", string(signType)),
		zap.Bool("broadcast", result.Broadcast()))
	return result, nil
}

func (f *Flow) fail(signType model.SignType, err error) error {
	flowErr := &model.SignFlowError{Type: signType, Err: err}
	f.publish(model.SignFlowStatus{Type: signType, State: model.FlowError, Err: flowErr})
	return flowErr
}
