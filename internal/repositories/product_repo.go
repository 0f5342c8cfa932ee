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
	"github.com/shopspring/decimal"
)

// ProductRepository manages standalone items of one tenant.
type ProductRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Insert(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	SerialExists(ctx context.Context, serial string, excludeID uuid.UUID) (bool, error)
}

type productRepo struct {
	db database.Querier
}

// NewProductRepo creates a new product repository
func NewProductRepo(db database.Querier) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `id, name, category, attributes, serial_number, location, status, recoverable,
		condition, fp_shipment, active_shipment, price::text, warehouse, is_deleted, created_at, updated_at`

func (r *productRepo) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(r.db.QueryRow(ctx, query, id))
}

// GetForUpdate locks the row for the rest of the transaction. Missing rows
// yield (nil, nil).
func (r *productRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	return scanProduct(r.db.QueryRow(ctx, query, id))
}

func (r *productRepo) Insert(ctx context.Context, product *models.Product) error {
	args, err := productArgs(product)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO products (id, name, category, attributes, serial_number, location, status, recoverable,
			condition, fp_shipment, active_shipment, price, warehouse, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::numeric, $13, $14, NOW(), NOW())
	`
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("serial number %q: %w", product.Serial(), common.ErrDuplicate)
		}
		return fmt.Errorf("insert product %s: %w", product.ID, err)
	}
	return nil
}

func (r *productRepo) Update(ctx context.Context, product *models.Product) error {
	args, err := productArgs(product)
	if err != nil {
		return err
	}
	query := `
		UPDATE products
		SET name = $2, category = $3, attributes = $4, serial_number = $5, location = $6, status = $7,
			recoverable = $8, condition = $9, fp_shipment = $10, active_shipment = $11, price = $12::numeric,
			warehouse = $13, is_deleted = $14, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("serial number %q: %w", product.Serial(), common.ErrDuplicate)
		}
		return fmt.Errorf("update product %s: %w", product.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("product", product.ID.String())
	}
	return nil
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("product", id.String())
	}
	return nil
}

// SerialExists checks both storage shapes for a live item carrying serial.
func (r *productRepo) SerialExists(ctx context.Context, serial string, excludeID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM products WHERE serial_number = $1 AND is_deleted = FALSE AND id <> $2
		) OR EXISTS (
			SELECT 1 FROM members m, jsonb_array_elements(m.products) AS p
			WHERE p->>'serial_number' = $1 AND p->>'id' <> $2::text
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, serial, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check serial number: %w", err)
	}
	return exists, nil
}

func productArgs(p *models.Product) ([]any, error) {
	attributes := p.Attributes
	if attributes == nil {
		attributes = []models.Attribute{}
	}
	attrJSON, err := marshalJSON(attributes)
	if err != nil {
		return nil, err
	}
	warehouseJSON, err := marshalJSON(p.Warehouse)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID, p.Name, p.Category, attrJSON, p.SerialNumber, string(p.Location), string(p.Status), p.Recoverable,
		string(p.Condition), p.FPShipment, p.ActiveShipment, priceText(p.Price), warehouseJSON, p.IsDeleted,
	}, nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		p          models.Product
		location   string
		status     string
		condition  string
		attributes []byte
		price      *string
		warehouse  []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Category, &attributes, &p.SerialNumber, &location, &status, &p.Recoverable,
		&condition, &p.FPShipment, &p.ActiveShipment, &price, &warehouse, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.Location = models.Location(location)
	p.Status = models.ProductStatus(status)
	p.Condition = models.Condition(condition)
	if err := unmarshalJSON(attributes, &p.Attributes); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(warehouse, &p.Warehouse); err != nil {
		return nil, err
	}
	if p.Price, err = parsePrice(price); err != nil {
		return nil, err
	}
	return &p, nil
}

func priceText(price *decimal.Decimal) *string {
	if price == nil {
		return nil
	}
	s := price.String()
	return &s
}

func parsePrice(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", *raw, err)
	}
	return &d, nil
}
