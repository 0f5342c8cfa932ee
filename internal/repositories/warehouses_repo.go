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

// WarehouseRepository reads and maintains the per-country warehouse registry.
type WarehouseRepository interface {
	GetCountry(ctx context.Context, countryCode string) (*models.WarehouseCountry, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	CreateCountry(ctx context.Context, country *models.WarehouseCountry) error
	CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error
	Activate(ctx context.Context, countryCode string, id uuid.UUID) (int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

type warehouseRepo struct {
	db database.Querier
}

// NewWarehouseRepo creates a new warehouse repository
func NewWarehouseRepo(db database.Querier) WarehouseRepository {
	return &warehouseRepo{db: db}
}

const warehouseColumns = `id, country_code, name, address, city, state, zip_code, phone, email, partner_type,
		is_active, is_deleted, created_at, updated_at`

// GetCountry loads the country entry with all of its warehouses, deleted ones
// included. Unknown countries yield (nil, nil).
func (r *warehouseRepo) GetCountry(ctx context.Context, countryCode string) (*models.WarehouseCountry, error) {
	country := &models.WarehouseCountry{}
	err := r.db.QueryRow(ctx, `SELECT country_code, country_name FROM warehouse_countries WHERE country_code = $1`,
		countryCode).Scan(&country.CountryCode, &country.CountryName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get warehouse country %s: %w", countryCode, err)
	}

	query := `
		SELECT ` + warehouseColumns + `
		FROM warehouses
		WHERE country_code = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, countryCode)
	if err != nil {
		return nil, fmt.Errorf("list warehouses of %s: %w", countryCode, err)
	}
	defer rows.Close()

	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		country.Warehouses = append(country.Warehouses, *w)
	}
	return country, rows.Err()
}

func (r *warehouseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	query := `SELECT ` + warehouseColumns + ` FROM warehouses WHERE id = $1`
	w, err := scanWarehouse(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (r *warehouseRepo) CreateCountry(ctx context.Context, country *models.WarehouseCountry) error {
	query := `
		INSERT INTO warehouse_countries (country_code, country_name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (country_code) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, country.CountryCode, country.CountryName)
	return err
}

func (r *warehouseRepo) CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error {
	query := `
		INSERT INTO warehouses (id, country_code, name, address, city, state, zip_code, phone, email, partner_type,
			is_active, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, warehouse.ID, warehouse.CountryCode, warehouse.Name, warehouse.Address,
		warehouse.City, warehouse.State, warehouse.ZipCode, warehouse.Phone, warehouse.Email, warehouse.PartnerType,
		warehouse.IsActive)
	if err != nil {
		return fmt.Errorf("insert warehouse %s: %w", warehouse.ID, err)
	}
	return nil
}

// Activate flips every live warehouse of the country in one statement so the
// target ends up the only active one. It returns the number of rows touched.
func (r *warehouseRepo) Activate(ctx context.Context, countryCode string, id uuid.UUID) (int64, error) {
	query := `
		UPDATE warehouses
		SET is_active = (id = $2), updated_at = NOW()
		WHERE country_code = $1 AND is_deleted = FALSE
	`
	tag, err := r.db.Exec(ctx, query, countryCode, id)
	if err != nil {
		return 0, fmt.Errorf("activate warehouse %s: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

// SoftDelete marks the warehouse deleted and inactive.
func (r *warehouseRepo) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE warehouses
		SET is_deleted = TRUE, is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete warehouse %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanWarehouse(row pgx.Row) (*models.Warehouse, error) {
	w := &models.Warehouse{}
	err := row.Scan(&w.ID, &w.CountryCode, &w.Name, &w.Address, &w.City, &w.State, &w.ZipCode, &w.Phone, &w.Email,
		&w.PartnerType, &w.IsActive, &w.IsDeleted, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan warehouse: %w", err)
	}
	return w, nil
}
