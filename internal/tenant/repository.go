package tenant

import (
	"context"
	"errors"
)

// ErrTenantNotFound is returned when a barbershop does not exist.
var ErrTenantNotFound = errors.New("tenant not found")

// Directory defines the interface for barbershop messaging configuration.
type Directory interface {
	// GetMessagingConfig retrieves the messaging sub-record of a shop.
	GetMessagingConfig(ctx context.Context, tenantID string) (*MessagingConfig, error)

	// SetConnectionStatus updates the shop's session connection status.
	// The dispatch layer only ever calls this with StatusDisconnected.
	SetConnectionStatus(ctx context.Context, tenantID string, status ConnectionStatus) error
}
