package model

// ConnectionType is the transport a device is reachable over.
type ConnectionType string

const (
	ConnectionUSB       ConnectionType = "usb"
	ConnectionBluetooth ConnectionType = "bluetooth"
)

// Valid reports whether t is one of the supported transports.
func (t ConnectionType) Valid() bool {
	return t == ConnectionUSB || t == ConnectionBluetooth
}

// DeviceModel identifies a hardware device model.
type DeviceModel string

const (
	DeviceModelNanoS  DeviceModel = "nanoS"
	DeviceModelNanoSP DeviceModel = "nanoSP"
	DeviceModelNanoX  DeviceModel = "nanoX"
	DeviceModelStax   DeviceModel = "stax"
	DeviceModelFlex   DeviceModel = "flex"
)

// Device is a read-only projection of a hardware device held by the
// transport collaborator. SessionID identifies the open transport session.
type Device struct {
	Name      string         `json:"name"`
	SessionID string         `json:"sessionId"`
	Type      ConnectionType `json:"type"`
	Model     DeviceModel    `json:"modelId"`
}
