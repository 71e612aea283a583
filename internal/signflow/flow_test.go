package signflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectkit/internal/model"
	"connectkit/internal/session"
)

var (
	fromAddr = common.HexToAddress("0xCb8A00000000000000000000000000000000beef")
	toAddr   = common.HexToAddress("0x1111000000000000000000000000000000001111")
)

type scriptedSigner struct {
	interactions []model.Interaction
	signature    []byte
	err          error
	blockUntil   chan struct{} // when set, Sign blocks after notifying until ctx is done
	mu           sync.Mutex
	calls        int
	lastReq      model.SignRequest
}

func (s *scriptedSigner) Sign(ctx context.Context, req model.SignRequest, notify func(model.Interaction)) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.lastReq = req
	s.mu.Unlock()

	for _, interaction := range s.interactions {
		notify(interaction)
	}
	if s.blockUntil != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.blockUntil:
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.signature, nil
}

type fakeBroadcaster struct {
	hash common.Hash
	err  error
}

func (b *fakeBroadcaster) SendRawTransaction(context.Context, []byte) (common.Hash, error) {
	if b.err != nil {
		return common.Hash{}, b.err
	}
	return b.hash, nil
}

func connectedStore(t *testing.T) *session.Store {
	t.Helper()
	store := session.NewStore()
	store.Dispatch(session.DeviceConnected{Device: model.Device{
		Name:      "Nano X",
		SessionID: "sess-1",
		Type:      model.ConnectionUSB,
		Model:     model.DeviceModelNanoX,
	}})
	store.Dispatch(session.AccountChanged{Account: model.Account{
		CloudSyncAccount: model.CloudSyncAccount{
			ID:             "acc-1",
			CurrencyID:     "ethereum",
			FreshAddress:   fromAddr,
			DerivationPath: "44'/60'/0'/0/0",
		},
		Name: "LBD 1",
	}})
	return store
}

func sendTxIntent(t *testing.T) Intent {
	t.Helper()
	tx := map[string]any{
		"from":     fromAddr.Hex(),
		"to":       toAddr.Hex(),
		"value":    "0xde0b6b3a7640000",
		"gas":      "0x5208",
		"gasPrice": "0x3b9aca00",
		"nonce":    "0x1",
	}
	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	return Intent{Method: MethodSendTransaction, Params: []json.RawMessage{raw}}
}

func personalSignIntent(t *testing.T) Intent {
	t.Helper()
	data, err := json.Marshal("0x68656c6c6f")
	require.NoError(t, err)
	addr, err := json.Marshal(fromAddr.Hex())
	require.NoError(t, err)
	return Intent{Method: MethodPersonalSign, Params: []json.RawMessage{data, addr}}
}

func collectStatuses(f *Flow) (*[]model.SignFlowStatus, func()) {
	ch := make(chan model.SignFlowStatus, 64)
	sub := f.Observe(ch)
	statuses := &[]model.SignFlowStatus{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for status := range ch {
			*statuses = append(*statuses, status)
		}
	}()
	return statuses, func() {
		sub.Unsubscribe()
		close(ch)
		<-done
	}
}

func TestRunSignsAndBroadcasts(t *testing.T) {
	store := connectedStore(t)
	signer := &scriptedSigner{
		interactions: []model.Interaction{model.InteractionConfirmOpenApp, model.InteractionSignTransaction},
		signature:    []byte{0xf8, 0x01, 0x02},
	}
	hash := common.HexToHash("0xabc1")
	f := New(signer, &fakeBroadcaster{hash: hash}, store, nil)

	statuses, stop := collectStatuses(f)

	result, err := f.Run(context.Background(), sendTxIntent(t))
	require.NoError(t, err)
	stop()

	require.NotNil(t, result)
	assert.NotEmpty(t, result.RawTransaction)
	assert.Equal(t, []byte{0xf8, 0x01, 0x02}, []byte(result.SignedRawTransaction))
	require.NotNil(t, result.Hash)
	assert.Equal(t, hash, *result.Hash)
	assert.True(t, result.Broadcast())

	// signing → two interactions → signing again → signed.
	got := *statuses
	require.Len(t, got, 5)
	assert.Equal(t, model.FlowSigning, got[0].State)
	assert.Equal(t, model.FlowUserInteractionNeeded, got[1].State)
	assert.Equal(t, model.InteractionConfirmOpenApp, got[1].Interaction)
	assert.Equal(t, model.FlowUserInteractionNeeded, got[2].State)
	assert.Equal(t, model.InteractionSignTransaction, got[2].Interaction)
	assert.Equal(t, model.FlowSigning, got[3].State)
	assert.Equal(t, model.FlowSigned, got[4].State)
	require.NotNil(t, got[4].Signed)

	// The device saw the selected account's derivation path.
	assert.Equal(t, "44'/60'/0'/0/0", signer.lastReq.DerivationPath)
	assert.Equal(t, fromAddr, signer.lastReq.Address)
}

func TestRunPersonalSignDoesNotBroadcast(t *testing.T) {
	store := connectedStore(t)
	signer := &scriptedSigner{signature: []byte{0x01}}
	f := New(signer, &fakeBroadcaster{err: errors.New("must not be called")}, store, nil)

	result, err := f.Run(context.Background(), personalSignIntent(t))
	require.NoError(t, err)
	assert.Nil(t, result.Hash)
	assert.False(t, result.Broadcast())
	assert.Equal(t, model.SignTypePersonalSign, signer.lastReq.Type)
}

func TestRunUserRejection(t *testing.T) {
	store := connectedStore(t)
	signer := &scriptedSigner{
		interactions: []model.Interaction{model.InteractionSignTransaction},
		err:          model.ErrUserRejected,
	}
	f := New(signer, &fakeBroadcaster{}, store, nil)

	statuses, stop := collectStatuses(f)
	result, err := f.Run(context.Background(), sendTxIntent(t))
	stop()

	assert.Nil(t, result)
	var flowErr *model.SignFlowError
	require.ErrorAs(t, err, &flowErr)
	assert.ErrorIs(t, err, model.ErrUserRejected)

	got := *statuses
	require.NotEmpty(t, got)
	final := got[len(got)-1]
	assert.Equal(t, model.FlowError, final.State, "interaction is never the terminal state")
}

func TestBroadcastFailureKeepsSignedPayload(t *testing.T) {
	store := connectedStore(t)
	signer := &scriptedSigner{signature: []byte{0xf8, 0xaa}}
	f := New(signer, &fakeBroadcaster{err: errors.New("mempool full")}, store, nil)

	result, err := f.Run(context.Background(), sendTxIntent(t))
	require.Error(t, err)
	assert.True(t, model.IsBroadcastError(err))

	// Signing success and broadcast failure are independently observable.
	require.NotNil(t, result)
	assert.NotEmpty(t, result.RawTransaction)
	assert.Equal(t, []byte{0xf8, 0xaa}, []byte(result.SignedRawTransaction))
	assert.Nil(t, result.Hash)
}

func TestRunRequiresDevice(t *testing.T) {
	f := New(&scriptedSigner{}, nil, session.NewStore(), nil)
	_, err := f.Run(context.Background(), personalSignIntent(t))
	assert.ErrorIs(t, err, model.ErrNotConnected)
}

func TestConcurrentRunRejected(t *testing.T) {
	store := connectedStore(t)
	block := make(chan struct{})
	signer := &scriptedSigner{signature: []byte{0x01}, blockUntil: block}
	f := New(signer, nil, store, nil)

	done := make(chan error, 1)
	go func() {
		_, err := f.Run(context.Background(), personalSignIntent(t))
		done <- err
	}()

	for {
		signer.mu.Lock()
		started := signer.calls > 0
		signer.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, err := f.Run(context.Background(), personalSignIntent(t))
	assert.ErrorIs(t, err, model.ErrSigningBusy)

	close(block)
	require.NoError(t, <-done)
}

func TestDisconnectDuringInteractionFailsFlow(t *testing.T) {
	store := connectedStore(t)
	signer := &scriptedSigner{
		interactions: []model.Interaction{model.InteractionSignTransaction},
		signature:    []byte{0x01},
		blockUntil:   make(chan struct{}), // never closed; only ctx ends the wait
	}
	f := New(signer, &fakeBroadcaster{}, store, nil)

	done := make(chan error, 1)
	go func() {
		_, err := f.Run(context.Background(), sendTxIntent(t))
		done <- err
	}()

	for {
		signer.mu.Lock()
		started := signer.calls > 0
		signer.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	store.Dispatch(session.DeviceDisconnected{})

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotConnected, "disconnect must fail a flow waiting on the user")
}

func TestDerivationPathOnlyForSelectedAccount(t *testing.T) {
	store := connectedStore(t)
	signer := &scriptedSigner{signature: []byte{0x01}}
	f := New(signer, nil, store, nil)

	// Signing for the selected account carries its derivation path.
	_, err := f.Run(context.Background(), personalSignIntent(t))
	require.NoError(t, err)
	assert.Equal(t, "44'/60'/0'/0/0", signer.lastReq.DerivationPath)

	// Signing for another synced address must not borrow it.
	other := common.HexToAddress("0x2222000000000000000000000000000000002222")
	data, err := json.Marshal("0x68656c6c6f")
	require.NoError(t, err)
	addr, err := json.Marshal(other.Hex())
	require.NoError(t, err)

	_, err = f.Run(context.Background(), Intent{
		Method: MethodPersonalSign,
		Params: []json.RawMessage{data, addr},
	})
	require.NoError(t, err)
	assert.Equal(t, other, signer.lastReq.Address)
	assert.Empty(t, signer.lastReq.DerivationPath,
		"the selected account's path belongs to its own address only")
}

func TestStateReturnsToIdleBetweenFlows(t *testing.T) {
	store := connectedStore(t)
	block := make(chan struct{})
	signer := &scriptedSigner{
		interactions: []model.Interaction{model.InteractionSignTransaction},
		signature:    []byte{0x01},
		blockUntil:   block,
	}
	f := New(signer, nil, store, nil)

	assert.Equal(t, model.FlowIdle, f.State())

	done := make(chan error, 1)
	go func() {
		_, err := f.Run(context.Background(), personalSignIntent(t))
		done <- err
	}()

	require.Eventually(t, func() bool {
		return f.State() == model.FlowUserInteractionNeeded
	}, time.Second, time.Millisecond)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, model.FlowIdle, f.State())
}

func TestSetPendingValidatesAndReplaysVerbatim(t *testing.T) {
	f := New(&scriptedSigner{}, nil, session.NewStore(), nil)

	intent := sendTxIntent(t)
	require.NoError(t, f.SetPending(intent))

	got, ok := f.TakePending()
	require.True(t, ok)
	assert.Equal(t, intent.Method, got.Method)
	assert.Equal(t, intent.Params, got.Params, "pending intent is retained byte-for-byte")

	_, ok = f.TakePending()
	assert.False(t, ok, "pending intent is consumed once")
}

func TestSetPendingRejectsMalformedParams(t *testing.T) {
	f := New(&scriptedSigner{}, nil, session.NewStore(), nil)

	err := f.SetPending(Intent{Method: MethodSendTransaction, Params: nil})
	require.Error(t, err)

	err = f.SetPending(Intent{
		Method: MethodPersonalSign,
		Params: []json.RawMessage{json.RawMessage(`"0x68656c6c6f"`)},
	})
	require.Error(t, err, "personal_sign needs [data, address]")
}

func TestValidateRejectsMixedFeeFields(t *testing.T) {
	tx := map[string]any{
		"from":         fromAddr.Hex(),
		"gasPrice":     "0x1",
		"maxFeePerGas": "0x2",
	}
	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	err = Validate(Intent{Method: MethodSendTransaction, Params: []json.RawMessage{raw}})
	assert.Error(t, err)
}
