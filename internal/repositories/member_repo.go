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

// MemberRepository manages members and the items embedded in them.
type MemberRepository interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindHolderForUpdate(ctx context.Context, productID uuid.UUID) (*models.Member, error)
	Insert(ctx context.Context, member *models.Member) error
	SaveProducts(ctx context.Context, member *models.Member) error
}

type memberRepo struct {
	db database.Querier
}

// NewMemberRepo creates a new member repository
func NewMemberRepo(db database.Querier) MemberRepository {
	return &memberRepo{db: db}
}

const memberColumns = `id, first_name, last_name, email, phone, dni, country, city, zip_code, address, apartment,
		products, active_shipment, is_deleted, created_at, updated_at`

func (r *memberRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1 FOR UPDATE`
	return scanMember(r.db.QueryRow(ctx, query, id))
}

// FindHolderForUpdate returns the member whose embedded list holds the
// product, or (nil, nil).
func (r *memberRepo) FindHolderForUpdate(ctx context.Context, productID uuid.UUID) (*models.Member, error) {
	query := `
		SELECT ` + memberColumns + ` FROM members
		WHERE products @> jsonb_build_array(jsonb_build_object('id', $1::text))
		LIMIT 1
		FOR UPDATE
	`
	return scanMember(r.db.QueryRow(ctx, query, productID))
}

func (r *memberRepo) Insert(ctx context.Context, member *models.Member) error {
	products, err := embeddedJSON(member.Products)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO members (id, first_name, last_name, email, phone, dni, country, city, zip_code, address,
			apartment, products, active_shipment, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query, member.ID, member.FirstName, member.LastName, member.Email, member.Phone,
		member.DNI, member.Country, member.City, member.ZipCode, member.Address, member.Apartment, products,
		member.ActiveShipment, member.IsDeleted)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member email %q: %w", member.Email, common.ErrDuplicate)
		}
		return fmt.Errorf("insert member %s: %w", member.ID, err)
	}
	return nil
}

// SaveProducts writes the embedded list and the active shipment flag.
func (r *memberRepo) SaveProducts(ctx context.Context, member *models.Member) error {
	products, err := embeddedJSON(member.Products)
	if err != nil {
		return err
	}
	query := `
		UPDATE members
		SET products = $2, active_shipment = $3, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, member.ID, products, member.ActiveShipment)
	if err != nil {
		return fmt.Errorf("save products of member %s: %w", member.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("member", member.ID.String())
	}
	return nil
}

func embeddedJSON(products []models.Product) ([]byte, error) {
	if products == nil {
		products = []models.Product{}
	}
	return marshalJSON(products)
}

func scanMember(row pgx.Row) (*models.Member, error) {
	var (
		m        models.Member
		products []byte
	)
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.DNI, &m.Country, &m.City, &m.ZipCode,
		&m.Address, &m.Apartment, &products, &m.ActiveShipment, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan member: %w", err)
	}
	if err := unmarshalJSON(products, &m.Products); err != nil {
		return nil, err
	}
	return &m, nil
}
