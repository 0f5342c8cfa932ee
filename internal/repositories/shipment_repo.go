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

// ShipmentRepository stores shipments of a tenant
type ShipmentRepository interface {
	Create(ctx context.Context, shipment *models.Shipment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	ActiveForProduct(ctx context.Context, productID uuid.UUID) (*models.Shipment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ShipmentStatus) error
	// CountActiveForMember counts unresolved shipments with the member on
	// either end.
	CountActiveForMember(ctx context.Context, memberID uuid.UUID) (int, error)
}

type shipmentRepo struct {
	db database.Querier
}

// NewShipmentRepo creates a new shipment repository
func NewShipmentRepo(db database.Querier) ShipmentRepository {
	return &shipmentRepo{db: db}
}

const shipmentColumns = `id, origin, destination, product_ids, status, action_type, actor_id, desirable_date,
		created_at, updated_at`

func (r *shipmentRepo) Create(ctx context.Context, shipment *models.Shipment) error {
	origin, err := marshalJSON(shipment.Origin)
	if err != nil {
		return err
	}
	destination, err := marshalJSON(shipment.Destination)
	if err != nil {
		return err
	}
	ids := shipment.ProductIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	productIDs, err := marshalJSON(ids)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO shipments (id, origin, destination, product_ids, status, action_type, actor_id,
			desirable_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query, shipment.ID, origin, destination, productIDs, string(shipment.Status),
		string(shipment.ActionType), shipment.ActorID, shipment.DesirableDate)
	if err != nil {
		return fmt.Errorf("insert shipment %s: %w", shipment.ID, err)
	}
	return nil
}

func (r *shipmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE id = $1`
	return scanShipment(r.db.QueryRow(ctx, query, id))
}

func (r *shipmentRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE id = $1 FOR UPDATE`
	return scanShipment(r.db.QueryRow(ctx, query, id))
}

func (r *shipmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ShipmentStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE shipments SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update shipment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("shipment", id.String())
	}
	return nil
}

func (r *shipmentRepo) CountActiveForMember(ctx context.Context, memberID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM shipments
		WHERE status IN ($2, $3)
			AND ((origin->>'kind' = 'member' AND origin->>'ref_id' = $1::text)
				OR (destination->>'kind' = 'member' AND destination->>'ref_id' = $1::text))
	`
	var count int
	err := r.db.QueryRow(ctx, query, memberID,
		string(models.ShipmentInTransit), string(models.ShipmentInTransitMissingData)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active shipments of member %s: %w", memberID, err)
	}
	return count, nil
}

// ActiveForProduct returns the newest unresolved shipment carrying the
// product, or (nil, nil).
func (r *shipmentRepo) ActiveForProduct(ctx context.Context, productID uuid.UUID) (*models.Shipment, error) {
	query := `
		SELECT ` + shipmentColumns + ` FROM shipments
		WHERE product_ids @> jsonb_build_array($1::text)
			AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanShipment(r.db.QueryRow(ctx, query, productID,
		string(models.ShipmentInTransit), string(models.ShipmentInTransitMissingData)))
}

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var (
		s           models.Shipment
		origin      []byte
		destination []byte
		productIDs  []byte
		status      string
		actionType  string
	)
	err := row.Scan(&s.ID, &origin, &destination, &productIDs, &status, &actionType, &s.ActorID,
		&s.DesirableDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan shipment: %w", err)
	}
	s.Status = models.ShipmentStatus(status)
	s.ActionType = models.ActionType(actionType)
	if err := unmarshalJSON(origin, &s.Origin); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(destination, &s.Destination); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(productIDs, &s.ProductIDs); err != nil {
		return nil, err
	}
	return &s, nil
}
