package tenant

import (
	"context"
	"sync"
)

// InMemoryDirectory is an in-memory implementation of Directory for testing.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	configs map[string]*MessagingConfig
}

// NewInMemoryDirectory creates an empty in-memory directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		configs: make(map[string]*MessagingConfig),
	}
}

// Put stores a shop's messaging config.
func (d *InMemoryDirectory) Put(cfg *MessagingConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := *cfg
	d.configs[cfg.TenantID] = &copied
}

// GetMessagingConfig retrieves the messaging sub-record of a shop.
func (d *InMemoryDirectory) GetMessagingConfig(ctx context.Context, tenantID string) (*MessagingConfig, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cfg, ok := d.configs[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	copied := *cfg
	return &copied, nil
}

// SetConnectionStatus updates the shop's session connection status.
func (d *InMemoryDirectory) SetConnectionStatus(ctx context.Context, tenantID string, status ConnectionStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg, ok := d.configs[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	cfg.ConnectionStatus = status
	return nil
}

// Ensure InMemoryDirectory implements Directory.
var _ Directory = (*InMemoryDirectory)(nil)
