package repositories

import (
	"context"
	"errors"
	"fmt"

	"assetflow/internal/models"
	"assetflow/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GlobalProductRepository stores the cross-tenant product index.
type GlobalProductRepository interface {
	Get(ctx context.Context, tenantID, originalID uuid.UUID) (*models.GlobalProduct, error)
	GetForUpdate(ctx context.Context, tenantID, originalID uuid.UUID) (*models.GlobalProduct, error)
	Upsert(ctx context.Context, product *models.GlobalProduct) error
}

type globalProductRepo struct {
	db database.Querier
}

// NewGlobalProductRepo creates a new global product repository
func NewGlobalProductRepo(db database.Querier) GlobalProductRepository {
	return &globalProductRepo{db: db}
}

const globalProductColumns = `tenant_id, original_id, tenant_name, name, category, attributes, serial_number,
		location, status, condition, recoverable, fp_shipment, active_shipment, is_deleted, warehouse, member,
		last_assigned, source_updated_at, synced_at`

func (r *globalProductRepo) Get(ctx context.Context, tenantID, originalID uuid.UUID) (*models.GlobalProduct, error) {
	query := `SELECT ` + globalProductColumns + ` FROM global_products WHERE tenant_id = $1 AND original_id = $2`
	return scanGlobalProduct(r.db.QueryRow(ctx, query, tenantID, originalID))
}

// GetForUpdate serializes concurrent projections of the same item. The
// transaction-scoped advisory lock is keyed on the item, so it also holds
// before the first row exists. Missing rows yield (nil, nil).
func (r *globalProductRepo) GetForUpdate(ctx context.Context, tenantID, originalID uuid.UUID) (*models.GlobalProduct, error) {
	lock := `SELECT pg_advisory_xact_lock(hashtextextended($1::text || '/' || $2::text, 0))`
	if _, err := r.db.Exec(ctx, lock, tenantID, originalID); err != nil {
		return nil, fmt.Errorf("lock global product %s/%s: %w", tenantID, originalID, err)
	}
	query := `SELECT ` + globalProductColumns + ` FROM global_products WHERE tenant_id = $1 AND original_id = $2 FOR UPDATE`
	return scanGlobalProduct(r.db.QueryRow(ctx, query, tenantID, originalID))
}

// Upsert writes the row unless the stored one mirrors a newer tenant state.
func (r *globalProductRepo) Upsert(ctx context.Context, g *models.GlobalProduct) error {
	attributes := g.Attributes
	if attributes == nil {
		attributes = []models.Attribute{}
	}
	attrJSON, err := marshalJSON(attributes)
	if err != nil {
		return err
	}
	warehouseJSON, err := marshalJSON(g.Warehouse)
	if err != nil {
		return err
	}
	memberJSON, err := marshalJSON(g.Member)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO global_products (tenant_id, original_id, tenant_name, name, category, attributes, serial_number,
			location, status, condition, recoverable, fp_shipment, active_shipment, is_deleted, warehouse, member,
			last_assigned, source_updated_at, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW())
		ON CONFLICT (tenant_id, original_id) DO UPDATE
		SET tenant_name = EXCLUDED.tenant_name,
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			attributes = EXCLUDED.attributes,
			serial_number = EXCLUDED.serial_number,
			location = EXCLUDED.location,
			status = EXCLUDED.status,
			condition = EXCLUDED.condition,
			recoverable = EXCLUDED.recoverable,
			fp_shipment = EXCLUDED.fp_shipment,
			active_shipment = EXCLUDED.active_shipment,
			is_deleted = EXCLUDED.is_deleted,
			warehouse = EXCLUDED.warehouse,
			member = EXCLUDED.member,
			last_assigned = EXCLUDED.last_assigned,
			source_updated_at = EXCLUDED.source_updated_at,
			synced_at = NOW()
		WHERE global_products.source_updated_at <= EXCLUDED.source_updated_at
	`
	_, err = r.db.Exec(ctx, query, g.TenantID, g.OriginalID, g.TenantName, g.Name, g.Category, attrJSON,
		g.SerialNumber, string(g.Location), string(g.Status), string(g.Condition), g.Recoverable, g.FPShipment,
		g.ActiveShipment, g.IsDeleted, warehouseJSON, memberJSON, g.LastAssigned, g.SourceUpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert global product %s/%s: %w", g.TenantID, g.OriginalID, err)
	}
	return nil
}

func scanGlobalProduct(row pgx.Row) (*models.GlobalProduct, error) {
	var (
		g          models.GlobalProduct
		attributes []byte
		location   string
		status     string
		condition  string
		warehouse  []byte
		member     []byte
	)
	err := row.Scan(&g.TenantID, &g.OriginalID, &g.TenantName, &g.Name, &g.Category, &attributes, &g.SerialNumber,
		&location, &status, &condition, &g.Recoverable, &g.FPShipment, &g.ActiveShipment, &g.IsDeleted, &warehouse,
		&member, &g.LastAssigned, &g.SourceUpdatedAt, &g.SyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan global product: %w", err)
	}
	g.Location = models.Location(location)
	g.Status = models.ProductStatus(status)
	g.Condition = models.Condition(condition)
	if err := unmarshalJSON(attributes, &g.Attributes); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(warehouse, &g.Warehouse); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(member, &g.Member); err != nil {
		return nil, err
	}
	return &g, nil
}
