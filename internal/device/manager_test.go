package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectkit/internal/model"
	"connectkit/internal/session"
)

type fakeTransport struct {
	mu          sync.Mutex
	device      model.Device
	connectErr  error
	disconnErr  error
	listErr     error
	connects    int
	disconnects int
	hold        chan struct{} // when set, Connect blocks until closed
}

func (f *fakeTransport) Connect(_ context.Context, connType model.ConnectionType) (model.Device, error) {
	f.mu.Lock()
	f.connects++
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		<-hold
	}
	if f.connectErr != nil {
		return model.Device{}, f.connectErr
	}
	dev := f.device
	dev.Type = connType
	return dev, nil
}

func (f *fakeTransport) Disconnect(context.Context, string) error {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	return f.disconnErr
}

func (f *fakeTransport) ListAvailable(context.Context) ([]model.Device, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []model.Device{f.device}, nil
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{device: model.Device{
		Name:      "Stax 42",
		SessionID: "sess-42",
		Model:     model.DeviceModelStax,
	}}
}

func TestConnectDispatchesBeforeReturning(t *testing.T) {
	store := session.NewStore()
	tr := newFakeTransport()
	m := NewManager(tr, store, nil)

	sessionID, err := m.Connect(context.Background(), model.ConnectionUSB)
	require.NoError(t, err)
	assert.Equal(t, "sess-42", sessionID)

	// The context already reflects the device once Connect resolves.
	ctx := store.Get()
	require.NotNil(t, ctx.ConnectedDevice)
	assert.Equal(t, model.ConnectionUSB, ctx.ConnectedDevice.Type)
}

func TestConnectWrapsTransportFailure(t *testing.T) {
	store := session.NewStore()
	tr := newFakeTransport()
	tr.connectErr = errors.New("device unplugged")
	m := NewManager(tr, store, nil)

	_, err := m.Connect(context.Background(), model.ConnectionBluetooth)
	require.Error(t, err)
	var ce *model.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, model.ConnectionBluetooth, ce.Transport)
	assert.Equal(t, 1, tr.connects, "transport errors are never retried")
	assert.Nil(t, store.Get().ConnectedDevice)
}

func TestConnectRejectsInvalidType(t *testing.T) {
	m := NewManager(newFakeTransport(), session.NewStore(), nil)
	_, err := m.Connect(context.Background(), model.ConnectionType("nfc"))
	assert.True(t, model.IsConnectionError(err))
}

func TestConcurrentConnectRejected(t *testing.T) {
	store := session.NewStore()
	tr := newFakeTransport()
	tr.hold = make(chan struct{})
	m := NewManager(tr, store, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(context.Background(), model.ConnectionUSB)
		done <- err
	}()

	// Wait until the first connect is inside the transport.
	for {
		tr.mu.Lock()
		started := tr.connects > 0
		tr.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, err := m.Connect(context.Background(), model.ConnectionUSB)
	assert.ErrorIs(t, err, model.ErrConnectionBusy)

	close(tr.hold)
	require.NoError(t, <-done)
}

func TestDisconnectIdempotent(t *testing.T) {
	store := session.NewStore()
	tr := newFakeTransport()
	m := NewManager(tr, store, nil)

	require.NoError(t, m.Disconnect(context.Background()))
	assert.Zero(t, tr.disconnects, "no transport call without an active device")

	_, err := m.Connect(context.Background(), model.ConnectionUSB)
	require.NoError(t, err)
	require.NoError(t, m.Disconnect(context.Background()))
	require.NoError(t, m.Disconnect(context.Background()))
	assert.Equal(t, 1, tr.disconnects)
	assert.Nil(t, store.Get().ConnectedDevice)
}

func TestDisconnectFailureKeepsContext(t *testing.T) {
	store := session.NewStore()
	tr := newFakeTransport()
	m := NewManager(tr, store, nil)

	_, err := m.Connect(context.Background(), model.ConnectionUSB)
	require.NoError(t, err)

	tr.disconnErr = errors.New("transport stuck")
	err = m.Disconnect(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsConnectionError(err))
	assert.NotNil(t, store.Get().ConnectedDevice, "context only changes on successful disconnect")
}

func TestSwitchReconnects(t *testing.T) {
	store := session.NewStore()
	tr := newFakeTransport()
	m := NewManager(tr, store, nil)

	_, err := m.Connect(context.Background(), model.ConnectionUSB)
	require.NoError(t, err)

	_, err = m.Switch(context.Background(), model.ConnectionBluetooth)
	require.NoError(t, err)
	require.NotNil(t, store.Get().ConnectedDevice)
	assert.Equal(t, model.ConnectionBluetooth, store.Get().ConnectedDevice.Type)
}

func TestListAvailableWrapsError(t *testing.T) {
	tr := newFakeTransport()
	tr.listErr = errors.New("discovery timeout")
	m := NewManager(tr, session.NewStore(), nil)

	_, err := m.ListAvailable(context.Background())
	assert.True(t, model.IsConnectionError(err))

	tr.listErr = nil
	devices, err := m.ListAvailable(context.Background())
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}
