package device

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"connectkit/internal/model"
	"connectkit/internal/session"
)

// Manager sequences connect/disconnect/switch against the transport.
// Transport failures are surfaced as typed connection errors and never
// retried here; retry is a user action in the UI layer.
type Manager struct {
	transport Transport
	store     *session.Store
	log       *zap.Logger

	mu   sync.Mutex
	busy bool
}

// NewManager creates a manager publishing into store.
func NewManager(transport Transport, store *session.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{transport: transport, store: store, log: log}
}

func (m *Manager) acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return model.ErrConnectionBusy
	}
	m.busy = true
	return nil
}

func (m *Manager) release() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

// Connect opens a device session over connType. The device_connected
// event is dispatched before Connect returns, so callers can rely on the
// context already reflecting the new device. A second Connect while one
// is in progress is rejected with ErrConnectionBusy.
func (m *Manager) Connect(ctx context.Context, connType model.ConnectionType) (string, error) {
	if !connType.Valid() {
		return "", &model.ConnectionError{Op: "connect", Transport: connType, Err: fmt.Errorf("unsupported connection type %q", connType)}
	}
	if err := m.acquire(); err != nil {
		return "", err
	}
	defer m.release()

	dev, err := m.transport.Connect(ctx, connType)
	if err != nil {
		return "", &model.ConnectionError{Op: "connect", Transport: connType, Err: err}
	}

	m.store.Dispatch(session.DeviceConnected{Device: dev})
	m.log.Info("device connected",
		zap.String("device", dev.Name),
		zap.String("session", dev.SessionID),
		zap.String("transport", string(connType)))
	return dev.SessionID, nil
}

// Disconnect closes the current device session. Disconnecting with no
// active device is not an error.
func (m *Manager) Disconnect(ctx context.Context) error {
	snap := m.store.Get()
	if snap.ConnectedDevice == nil {
		return nil
	}

	if err := m.transport.Disconnect(ctx, snap.ConnectedDevice.SessionID); err != nil {
		return &model.ConnectionError{Op: "disconnect", Transport: snap.ConnectedDevice.Type, Err: err}
	}

	m.store.Dispatch(session.DeviceDisconnected{})
	m.log.Info("device disconnected", zap.String("device", snap.ConnectedDevice.Name))
	return nil
}

// Switch tears the current session down and connects over connType.
func (m *Manager) Switch(ctx context.Context, connType model.ConnectionType) (string, error) {
	if err := m.Disconnect(ctx); err != nil {
		return "", err
	}
	return m.Connect(ctx, connType)
}

// ListAvailable enumerates reachable devices.
func (m *Manager) ListAvailable(ctx context.Context) ([]model.Device, error) {
	devices, err := m.transport.ListAvailable(ctx)
	if err != nil {
		return nil, &model.ConnectionError{Op: "discover", Err: err}
	}
	return devices, nil
}
