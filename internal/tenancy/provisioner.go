package tenancy

import (
	"context"
	"fmt"

	"assetflow/pkg/database"

	"go.uber.org/zap"
)

// MigrateFunc applies a schema to the database at dsn.
type MigrateFunc func(dsn string, schema database.Schema) (bool, error)

// Provisioner creates tenant databases through an admin connection and
// brings them to the current tenant schema. Both steps are idempotent.
type Provisioner struct {
	admin   database.Querier
	baseURL string
	migrate MigrateFunc
	logger  *zap.Logger
}

// NewProvisioner creates a tenant database provisioner
func NewProvisioner(admin database.Querier, baseURL string, migrate MigrateFunc, logger *zap.Logger) *Provisioner {
	if migrate == nil {
		migrate = database.Migrate
	}
	return &Provisioner{admin: admin, baseURL: baseURL, migrate: migrate, logger: logger}
}

// Provision creates the tenant database if needed and migrates it
func (p *Provisioner) Provision(ctx context.Context, tenantName string) error {
	if err := database.CreateTenantDatabase(ctx, p.admin, tenantName); err != nil {
		return err
	}

	dsn, err := database.TenantDSN(p.baseURL, tenantName)
	if err != nil {
		return err
	}
	changed, err := p.migrate(dsn, database.SchemaTenant)
	if err != nil {
		return fmt.Errorf("migrate tenant %s: %w", tenantName, err)
	}

	p.logger.Info("tenant database ready",
		zap.String("tenant", tenantName),
		zap.String("database", database.TenantDatabaseName(tenantName)),
		zap.Bool("migrated", changed),
	)
	return nil
}
