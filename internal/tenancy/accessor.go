package tenancy

import (
	"context"

	"assetflow/internal/repositories"
	"assetflow/pkg/database"

	"github.com/jackc/pgx/v5"
)

// ConnectionSource hands out the connection of a tenant.
type ConnectionSource interface {
	Acquire(ctx context.Context, tenantName string) (database.DB, error)
}

// Accessor binds repositories to a tenant's connection. Each call goes back
// to the registry, so an evicted connection is redialed transparently.
type Accessor struct {
	source ConnectionSource
}

// NewAccessor creates an accessor that resolves every call through source
func NewAccessor(source ConnectionSource) *Accessor {
	return &Accessor{source: source}
}

// Store returns the tenant's repositories outside of a transaction.
func (a *Accessor) Store(ctx context.Context, tenantName string) (repositories.TenantStore, error) {
	db, err := a.source.Acquire(ctx, tenantName)
	if err != nil {
		return nil, err
	}
	return repositories.NewTenantStore(db), nil
}

// Products returns the product repository of the tenant
func (a *Accessor) Products(ctx context.Context, tenantName string) (repositories.ProductRepository, error) {
	store, err := a.Store(ctx, tenantName)
	if err != nil {
		return nil, err
	}
	return store.Products(), nil
}

// Members returns the member repository of the tenant
func (a *Accessor) Members(ctx context.Context, tenantName string) (repositories.MemberRepository, error) {
	store, err := a.Store(ctx, tenantName)
	if err != nil {
		return nil, err
	}
	return store.Members(), nil
}

// Shipments returns the shipment repository of the tenant
func (a *Accessor) Shipments(ctx context.Context, tenantName string) (repositories.ShipmentRepository, error) {
	store, err := a.Store(ctx, tenantName)
	if err != nil {
		return nil, err
	}
	return store.Shipments(), nil
}

// History returns the history repository of the tenant
func (a *Accessor) History(ctx context.Context, tenantName string) (repositories.HistoryRepository, error) {
	store, err := a.Store(ctx, tenantName)
	if err != nil {
		return nil, err
	}
	return store.History(), nil
}

// WithinTx runs fn against one transaction of the tenant's database. The
// transaction never spans another tenant or the shared database.
func (a *Accessor) WithinTx(ctx context.Context, tenantName string, fn func(store repositories.TenantStore) error) error {
	db, err := a.source.Acquire(ctx, tenantName)
	if err != nil {
		return err
	}
	return database.WithTx(ctx, db, func(tx pgx.Tx) error {
		return fn(repositories.NewTenantStore(tx))
	})
}
