package repositories

import (
	"context"
	"errors"
	"fmt"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TenantRepository is the registry of tenants kept in the shared database.
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByName(ctx context.Context, name string) (*models.Tenant, error)
	UpdateRecoverableConfig(ctx context.Context, id uuid.UUID, config map[string]bool) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
}

type tenantRepo struct {
	db database.Querier
}

// NewTenantRepo creates a new tenant repository
func NewTenantRepo(db database.Querier) TenantRepository {
	return &tenantRepo{db: db}
}

const tenantColumns = `id, name, display_name, country, state, city, zip_code, address, apartment, phone,
		recoverable_config, widgets, is_active, created_at, updated_at`

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	config := tenant.RecoverableConfig
	if config == nil {
		config = map[string]bool{}
	}
	configJSON, err := marshalJSON(config)
	if err != nil {
		return err
	}
	widgets := tenant.Widgets
	if widgets == nil {
		widgets = []models.Widget{}
	}
	widgetsJSON, err := marshalJSON(widgets)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tenants (id, name, display_name, country, state, city, zip_code, address, apartment, phone,
			recoverable_config, widgets, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query, tenant.ID, tenant.Name, tenant.DisplayName, tenant.Country, tenant.State,
		tenant.City, tenant.ZipCode, tenant.Address, tenant.Apartment, tenant.Phone, configJSON, widgetsJSON,
		tenant.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant %q: %w", tenant.Name, common.ErrDuplicate)
		}
		return fmt.Errorf("insert tenant %q: %w", tenant.Name, err)
	}
	return nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

// GetByName returns (nil, nil) when no tenant carries the name.
func (r *tenantRepo) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE name = $1`
	return scanTenant(r.db.QueryRow(ctx, query, name))
}

func (r *tenantRepo) UpdateRecoverableConfig(ctx context.Context, id uuid.UUID, config map[string]bool) error {
	if config == nil {
		config = map[string]bool{}
	}
	configJSON, err := marshalJSON(config)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET recoverable_config = $2, updated_at = NOW() WHERE id = $1`, id, configJSON)
	if err != nil {
		return fmt.Errorf("update recoverable config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("tenant", id.String())
	}
	return nil
}

func (r *tenantRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("tenant", id.String())
	}
	return nil
}

func (r *tenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var (
		t       models.Tenant
		config  []byte
		widgets []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &t.Country, &t.State, &t.City, &t.ZipCode, &t.Address,
		&t.Apartment, &t.Phone, &config, &widgets, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	if err := unmarshalJSON(config, &t.RecoverableConfig); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(widgets, &t.Widgets); err != nil {
		return nil, err
	}
	return &t, nil
}
