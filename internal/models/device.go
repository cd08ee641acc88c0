package models

import "encoding/json"

// DeviceConnection describes the live connection state reported by the platform.
type DeviceConnection struct {
	Active   bool   `json:"active"`
	TS       int64  `json:"ts,omitempty"`       // Last connection change, unix millis
	Location string `json:"location,omitempty"` // Remote address of the device
	RxBytes  int64  `json:"rx_bytes,omitempty"` // Bytes received in the current session
	TxBytes  int64  `json:"tx_bytes,omitempty"` // Bytes sent in the current session
}

// Device is a device entry as returned by listing and status calls.
type Device struct {
	Device      string            `json:"device"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Type        string            `json:"type,omitempty"`
	Product     string            `json:"product,omitempty"`
	Connection  *DeviceConnection `json:"connection,omitempty"`
}

// PropertyUpdate is the body used to overwrite a device property.
type PropertyUpdate struct {
	Value json.RawMessage `json:"value"`
}

// FleetStatus is the per-device result of a product-wide status query.
type FleetStatus struct {
	Device string  `json:"device"`
	Status *Device `json:"status,omitempty"`
	Error  string  `json:"error,omitempty"`
}
