package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"assetflow/pkg/database"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TenantStore groups the accessors of one tenant database. All of them share
// the same querier, so a store built on a transaction is transactional.
type TenantStore interface {
	Products() ProductRepository
	Members() MemberRepository
	Shipments() ShipmentRepository
	History() HistoryRepository
}

type tenantStore struct {
	products  ProductRepository
	members   MemberRepository
	shipments ShipmentRepository
	history   HistoryRepository
}

// NewTenantStore binds every tenant repository to q
func NewTenantStore(q database.Querier) TenantStore {
	return &tenantStore{
		products:  NewProductRepo(q),
		members:   NewMemberRepo(q),
		shipments: NewShipmentRepo(q),
		history:   NewHistoryRepo(q),
	}
}

func (s *tenantStore) Products() ProductRepository   { return s.products }
func (s *tenantStore) Members() MemberRepository     { return s.members }
func (s *tenantStore) Shipments() ShipmentRepository { return s.shipments }
func (s *tenantStore) History() HistoryRepository    { return s.history }

// SharedStore groups the accessors of the shared database.
type SharedStore interface {
	Tenants() TenantRepository
	Warehouses() WarehouseRepository
	WarehouseMetrics() WarehouseMetricsRepository
	GlobalProducts() GlobalProductRepository
}

// SharedTxRunner is a SharedStore that can also open transactions.
type SharedTxRunner interface {
	SharedStore
	WithinSharedTx(ctx context.Context, fn func(store SharedStore) error) error
}

type sharedStore struct {
	tenants        TenantRepository
	warehouses     WarehouseRepository
	metrics        WarehouseMetricsRepository
	globalProducts GlobalProductRepository
}

// NewSharedStore binds every shared repository to q
func NewSharedStore(q database.Querier) SharedStore {
	return &sharedStore{
		tenants:        NewTenantRepo(q),
		warehouses:     NewWarehouseRepo(q),
		metrics:        NewWarehouseMetricsRepo(q),
		globalProducts: NewGlobalProductRepo(q),
	}
}

func (s *sharedStore) Tenants() TenantRepository                    { return s.tenants }
func (s *sharedStore) Warehouses() WarehouseRepository              { return s.warehouses }
func (s *sharedStore) WarehouseMetrics() WarehouseMetricsRepository { return s.metrics }
func (s *sharedStore) GlobalProducts() GlobalProductRepository      { return s.globalProducts }

// SharedDB is the shared database handle used outside of any tenant.
type SharedDB struct {
	SharedStore
	db database.DB
}

// NewSharedDB wraps the shared pool
func NewSharedDB(db database.DB) *SharedDB {
	return &SharedDB{SharedStore: NewSharedStore(db), db: db}
}

// WithinSharedTx runs fn with a store bound to a single shared transaction.
func (s *SharedDB) WithinSharedTx(ctx context.Context, fn func(store SharedStore) error) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(NewSharedStore(tx))
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// marshalJSON encodes v for a JSONB column; nil values become SQL NULL.
func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}

// unmarshalJSON decodes a JSONB column, leaving dst untouched for NULL.
func unmarshalJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode jsonb: %w", err)
	}
	return nil
}
