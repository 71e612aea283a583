// Package device orchestrates hardware device connections against the
// transport collaborator and maps the results into session events.
package device

import (
	"context"

	"connectkit/internal/model"
)

// Transport is the hardware management collaborator. Implementations own
// physical device discovery, session lifecycle and command execution;
// this package only sequences them.
type Transport interface {
	// Connect opens a session over the given transport type and returns
	// the connected device carrying its session id.
	Connect(ctx context.Context, connType model.ConnectionType) (model.Device, error)

	// Disconnect closes the session.
	Disconnect(ctx context.Context, sessionID string) error

	// ListAvailable enumerates devices currently reachable.
	ListAvailable(ctx context.Context) ([]model.Device, error)
}
