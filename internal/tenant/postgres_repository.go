package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory is a PostgreSQL implementation of Directory backed by
// the barbershops table.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a new PostgreSQL tenant directory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// GetMessagingConfig retrieves the messaging sub-record of a shop.
func (d *PostgresDirectory) GetMessagingConfig(ctx context.Context, tenantID string) (*MessagingConfig, error) {
	query := `
		SELECT id, whatsapp_enabled, whatsapp_connection_status, COALESCE(whatsapp_instance_name, '')
		FROM barbershops
		WHERE id = $1
	`

	var cfg MessagingConfig
	err := d.pool.QueryRow(ctx, query, tenantID).Scan(
		&cfg.TenantID,
		&cfg.Enabled,
		&cfg.ConnectionStatus,
		&cfg.InstanceName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}

	return &cfg, nil
}

// SetConnectionStatus updates the shop's session connection status.
// Last-write-wins; the provisioning flow may race this with a re-pairing,
// which is acceptable since it only ever re-promotes to connected.
func (d *PostgresDirectory) SetConnectionStatus(ctx context.Context, tenantID string, status ConnectionStatus) error {
	query := `
		UPDATE barbershops
		SET whatsapp_connection_status = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := d.pool.Exec(ctx, query, tenantID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// Ensure PostgresDirectory implements Directory.
var _ Directory = (*PostgresDirectory)(nil)
