package repositories

import (
	"context"
	"fmt"

	"assetflow/internal/models"
	"assetflow/pkg/database"

	"github.com/google/uuid"
)

// WarehouseMetricsRepository maintains the running occupancy counters. Every
// write is a relative update so concurrent writers never lose increments.
type WarehouseMetricsRepository interface {
	// AddTotals applies delta to the warehouse totals and reports whether a
	// metrics row existed.
	AddTotals(ctx context.Context, warehouseID uuid.UUID, delta models.MetricDelta) (bool, error)
	// Create inserts an empty metrics row unless one already exists.
	Create(ctx context.Context, metrics *models.WarehouseMetrics) error
	// AddTenant increments the tenant breakdown entry, creating it if needed.
	AddTenant(ctx context.Context, warehouseID, tenantID uuid.UUID, tenantName string, delta models.MetricDelta) error
	// SubtractTenant decrements the tenant breakdown entry and reports whether
	// it existed.
	SubtractTenant(ctx context.Context, warehouseID, tenantID uuid.UUID, delta models.MetricDelta) (bool, error)
	// PruneTenants drops breakdown entries that reached zero.
	PruneTenants(ctx context.Context, warehouseID uuid.UUID) error
	// RecountTenants refreshes total_tenants from the breakdown entries.
	RecountTenants(ctx context.Context, warehouseID uuid.UUID) error

	Get(ctx context.Context, warehouseID uuid.UUID) (*models.WarehouseMetrics, error)
	ListByCountry(ctx context.Context, countryCode string) ([]models.WarehouseMetrics, error)
	ListAll(ctx context.Context) ([]models.WarehouseMetrics, error)
}

type warehouseMetricsRepo struct {
	db database.Querier
}

// NewWarehouseMetricsRepo creates a new warehouse metrics repository
func NewWarehouseMetricsRepo(db database.Querier) WarehouseMetricsRepository {
	return &warehouseMetricsRepo{db: db}
}

func (r *warehouseMetricsRepo) AddTotals(ctx context.Context, warehouseID uuid.UUID, delta models.MetricDelta) (bool, error) {
	query := `
		UPDATE warehouse_metrics
		SET total_products = total_products + $2,
			total_computers = total_computers + $3,
			total_other_products = total_other_products + $4,
			updated_at = NOW()
		WHERE warehouse_id = $1
	`
	tag, err := r.db.Exec(ctx, query, warehouseID, delta.Products, delta.Computers, delta.Others)
	if err != nil {
		return false, fmt.Errorf("update totals of warehouse %s: %w", warehouseID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *warehouseMetricsRepo) Create(ctx context.Context, metrics *models.WarehouseMetrics) error {
	query := `
		INSERT INTO warehouse_metrics (warehouse_id, warehouse_name, country_code, total_products, total_computers,
			total_other_products, total_tenants, updated_at)
		VALUES ($1, $2, $3, 0, 0, 0, 0, NOW())
		ON CONFLICT (warehouse_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, metrics.WarehouseID, metrics.WarehouseName, metrics.CountryCode)
	if err != nil {
		return fmt.Errorf("create metrics of warehouse %s: %w", metrics.WarehouseID, err)
	}
	return nil
}

func (r *warehouseMetricsRepo) AddTenant(ctx context.Context, warehouseID, tenantID uuid.UUID, tenantName string, delta models.MetricDelta) error {
	query := `
		INSERT INTO warehouse_tenant_metrics (warehouse_id, tenant_id, tenant_name, total_products, computers, other_products)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (warehouse_id, tenant_id) DO UPDATE
		SET tenant_name = EXCLUDED.tenant_name,
			total_products = warehouse_tenant_metrics.total_products + EXCLUDED.total_products,
			computers = warehouse_tenant_metrics.computers + EXCLUDED.computers,
			other_products = warehouse_tenant_metrics.other_products + EXCLUDED.other_products
	`
	_, err := r.db.Exec(ctx, query, warehouseID, tenantID, tenantName, delta.Products, delta.Computers, delta.Others)
	if err != nil {
		return fmt.Errorf("update tenant %s metrics of warehouse %s: %w", tenantID, warehouseID, err)
	}
	return nil
}

func (r *warehouseMetricsRepo) SubtractTenant(ctx context.Context, warehouseID, tenantID uuid.UUID, delta models.MetricDelta) (bool, error) {
	query := `
		UPDATE warehouse_tenant_metrics
		SET total_products = total_products - $3,
			computers = computers - $4,
			other_products = other_products - $5
		WHERE warehouse_id = $1 AND tenant_id = $2
	`
	tag, err := r.db.Exec(ctx, query, warehouseID, tenantID, delta.Products, delta.Computers, delta.Others)
	if err != nil {
		return false, fmt.Errorf("decrement tenant %s metrics of warehouse %s: %w", tenantID, warehouseID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *warehouseMetricsRepo) PruneTenants(ctx context.Context, warehouseID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM warehouse_tenant_metrics WHERE warehouse_id = $1 AND total_products <= 0`, warehouseID)
	if err != nil {
		return fmt.Errorf("prune tenant metrics of warehouse %s: %w", warehouseID, err)
	}
	return nil
}

func (r *warehouseMetricsRepo) RecountTenants(ctx context.Context, warehouseID uuid.UUID) error {
	query := `
		UPDATE warehouse_metrics
		SET total_tenants = (SELECT COUNT(*) FROM warehouse_tenant_metrics WHERE warehouse_id = $1),
			updated_at = NOW()
		WHERE warehouse_id = $1
	`
	_, err := r.db.Exec(ctx, query, warehouseID)
	if err != nil {
		return fmt.Errorf("recount tenants of warehouse %s: %w", warehouseID, err)
	}
	return nil
}

const metricsColumns = `warehouse_id, warehouse_name, country_code, total_products, total_computers,
		total_other_products, total_tenants, updated_at`

// Get returns (nil, nil) when the warehouse has no metrics row yet.
func (r *warehouseMetricsRepo) Get(ctx context.Context, warehouseID uuid.UUID) (*models.WarehouseMetrics, error) {
	list, err := r.list(ctx, `SELECT `+metricsColumns+` FROM warehouse_metrics WHERE warehouse_id = $1`, warehouseID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *warehouseMetricsRepo) ListByCountry(ctx context.Context, countryCode string) ([]models.WarehouseMetrics, error) {
	query := `SELECT ` + metricsColumns + ` FROM warehouse_metrics WHERE country_code = $1 ORDER BY warehouse_name`
	return r.list(ctx, query, countryCode)
}

func (r *warehouseMetricsRepo) ListAll(ctx context.Context) ([]models.WarehouseMetrics, error) {
	query := `SELECT ` + metricsColumns + ` FROM warehouse_metrics ORDER BY country_code, warehouse_name`
	return r.list(ctx, query)
}

func (r *warehouseMetricsRepo) list(ctx context.Context, query string, args ...any) ([]models.WarehouseMetrics, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query warehouse metrics: %w", err)
	}

	var (
		out []models.WarehouseMetrics
		ids []uuid.UUID
	)
	for rows.Next() {
		var m models.WarehouseMetrics
		if err := rows.Scan(&m.WarehouseID, &m.WarehouseName, &m.CountryCode, &m.TotalProducts, &m.TotalComputers,
			&m.TotalOtherProducts, &m.TotalTenants, &m.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan warehouse metrics: %w", err)
		}
		out = append(out, m)
		ids = append(ids, m.WarehouseID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	breakdown, err := r.breakdown(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].TenantMetrics = breakdown[out[i].WarehouseID]
	}
	return out, nil
}

func (r *warehouseMetricsRepo) breakdown(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.TenantMetrics, error) {
	query := `
		SELECT warehouse_id, tenant_id, tenant_name, total_products, computers, other_products
		FROM warehouse_tenant_metrics
		WHERE warehouse_id = ANY($1)
		ORDER BY tenant_name
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query tenant metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.TenantMetrics, len(ids))
	for rows.Next() {
		var (
			warehouseID uuid.UUID
			tm          models.TenantMetrics
		)
		if err := rows.Scan(&warehouseID, &tm.TenantID, &tm.TenantName, &tm.TotalProducts, &tm.Computers,
			&tm.OtherProducts); err != nil {
			return nil, fmt.Errorf("scan tenant metrics: %w", err)
		}
		out[warehouseID] = append(out[warehouseID], tm)
	}
	return out, rows.Err()
}
