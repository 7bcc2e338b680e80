// Package tenant provides read/write access to barbershop messaging
// configuration. The dispatch layer reads a shop's gateway session binding
// before each send and downgrades the connection status when a send proves
// the session is gone; everything else on the barbershop record is owned by
// the provisioning flow.
package tenant

// ConnectionStatus is the state of a barbershop's dedicated gateway session.
type ConnectionStatus string

const (
	// StatusConnected means the session is paired and believed usable.
	StatusConnected ConnectionStatus = "connected"

	// StatusConnecting means QR pairing is in progress.
	StatusConnecting ConnectionStatus = "connecting"

	// StatusDisconnected means the session is not usable; sends fall back
	// to the shared default session.
	StatusDisconnected ConnectionStatus = "disconnected"
)

// MessagingConfig is the messaging sub-record of a barbershop.
type MessagingConfig struct {
	// TenantID is the barbershop identifier.
	TenantID string

	// Enabled is true if the shop opted into a dedicated gateway session.
	Enabled bool

	// ConnectionStatus is owned by the provisioning flow; the dispatch
	// layer only ever writes the connected -> disconnected transition.
	ConnectionStatus ConnectionStatus

	// InstanceName is the opaque gateway session identifier; empty if no
	// dedicated session exists.
	InstanceName string
}

// HasDedicatedSession reports whether sends for this shop should go through
// its own gateway session rather than the shared default.
func (c *MessagingConfig) HasDedicatedSession() bool {
	return c.Enabled && c.ConnectionStatus == StatusConnected && c.InstanceName != ""
}
