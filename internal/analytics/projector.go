package analytics

import (
	"context"
	"fmt"
	"time"

	"assetflow/internal/models"
	"assetflow/internal/repositories"

	"go.uber.org/zap"
)

// Placeholder metadata for metrics rows whose warehouse is missing from the
// registry.
const (
	UnknownWarehouseName    = "Unknown Warehouse"
	UnknownWarehouseCountry = "N/A"
)

// Projector mirrors committed tenant-local item state into the global product
// index and keeps warehouse metrics in step with it.
type Projector struct {
	shared repositories.SharedTxRunner
	logger *zap.Logger
	now    func() time.Time
}

// NewProjector creates a new projector
func NewProjector(shared repositories.SharedTxRunner, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{shared: shared, logger: logger, now: time.Now}
}

// Project applies one snapshot. Metric deltas are derived from the index row
// it replaces, inside the same shared transaction, so replaying a snapshot
// changes nothing. A snapshot older than the row already indexed is skipped;
// workers and the retry queue deliver out of order.
func (p *Projector) Project(ctx context.Context, snap models.ProductSnapshot) error {
	return p.shared.WithinSharedTx(ctx, func(store repositories.SharedStore) error {
		prev, err := store.GlobalProducts().GetForUpdate(ctx, snap.TenantID, snap.Product.ID)
		if err != nil {
			return fmt.Errorf("load index row: %w", err)
		}
		if prev != nil && snap.Product.UpdatedAt.Before(prev.SourceUpdatedAt) {
			p.logger.Debug("skipping stale snapshot",
				zap.String("tenant", snap.TenantName),
				zap.String("product_id", snap.Product.ID.String()),
				zap.Time("snapshot_updated_at", snap.Product.UpdatedAt),
				zap.Time("indexed_updated_at", prev.SourceUpdatedAt),
			)
			return nil
		}

		next := p.indexRow(snap)
		next.LastAssigned = lastAssigned(prev, next, snap.LastAssigned)

		if err := p.applyMetrics(ctx, store, snap, prev, next); err != nil {
			return err
		}
		return store.GlobalProducts().Upsert(ctx, next)
	})
}

func (p *Projector) indexRow(snap models.ProductSnapshot) *models.GlobalProduct {
	item := snap.Product
	row := &models.GlobalProduct{
		TenantID:        snap.TenantID,
		OriginalID:      item.ID,
		TenantName:      snap.TenantName,
		Name:            item.Name,
		Category:        item.Category,
		Attributes:      item.Attributes,
		SerialNumber:    item.SerialNumber,
		Location:        item.Location,
		Status:          item.Status,
		Condition:       item.Condition,
		Recoverable:     item.Recoverable,
		FPShipment:      item.FPShipment,
		ActiveShipment:  item.ActiveShipment,
		IsDeleted:       item.IsDeleted,
		SyncedAt:        p.now().UTC(),
		SourceUpdatedAt: item.UpdatedAt,
	}
	switch item.Location {
	case models.LocationFPWarehouse:
		if item.Warehouse != nil {
			w := *item.Warehouse
			row.Warehouse = &w
		}
	case models.LocationEmployee:
		if snap.Member != nil {
			m := *snap.Member
			row.Member = &m
		}
	}
	return row
}

// lastAssigned records where the item most recently left. It is derived only
// when a previous row exists; a first sync takes the supplied value as is.
func lastAssigned(prev, next *models.GlobalProduct, override *string) string {
	if prev == nil {
		if override != nil {
			return *override
		}
		return ""
	}
	if prev.Location != next.Location {
		switch prev.Location {
		case models.LocationFPWarehouse:
			country := ""
			if prev.Warehouse != nil {
				country = prev.Warehouse.CountryCode
			}
			return "FP warehouse - " + country
		case models.LocationEmployee:
			if prev.Member != nil {
				return prev.Member.Email
			}
		}
	}
	if override != nil {
		return *override
	}
	return prev.LastAssigned
}

func (p *Projector) applyMetrics(ctx context.Context, store repositories.SharedStore, snap models.ProductSnapshot, prev, next *models.GlobalProduct) error {
	from := prev.HeldWarehouse()
	to := next.HeldWarehouse()

	if from != nil && to != nil && from.WarehouseID == to.WarehouseID && prev.IsComputer() == next.IsComputer() {
		return nil
	}
	if from != nil {
		if err := p.depart(ctx, store, snap, from, prev.IsComputer()); err != nil {
			return err
		}
	}
	if to != nil {
		if err := p.arrive(ctx, store, snap, to, next.IsComputer()); err != nil {
			return err
		}
	}
	return nil
}

func (p *Projector) arrive(ctx context.Context, store repositories.SharedStore, snap models.ProductSnapshot, ref *models.WarehouseRef, isComputer bool) error {
	metrics := store.WarehouseMetrics()
	delta := models.DeltaFor(isComputer)

	found, err := metrics.AddTotals(ctx, ref.WarehouseID, delta)
	if err != nil {
		return fmt.Errorf("increment warehouse %s: %w", ref.WarehouseID, err)
	}
	if !found {
		if err := p.createMetrics(ctx, store, ref); err != nil {
			return err
		}
		if _, err := metrics.AddTotals(ctx, ref.WarehouseID, delta); err != nil {
			return fmt.Errorf("increment warehouse %s: %w", ref.WarehouseID, err)
		}
	}

	if err := metrics.AddTenant(ctx, ref.WarehouseID, snap.TenantID, snap.TenantName, delta); err != nil {
		return fmt.Errorf("increment tenant breakdown: %w", err)
	}
	return metrics.RecountTenants(ctx, ref.WarehouseID)
}

// createMetrics is the self-healing path for a warehouse that has never
// received an item.
func (p *Projector) createMetrics(ctx context.Context, store repositories.SharedStore, ref *models.WarehouseRef) error {
	row := &models.WarehouseMetrics{
		WarehouseID:   ref.WarehouseID,
		WarehouseName: UnknownWarehouseName,
		CountryCode:   UnknownWarehouseCountry,
	}
	w, err := store.Warehouses().GetByID(ctx, ref.WarehouseID)
	if err != nil {
		return fmt.Errorf("look up warehouse %s: %w", ref.WarehouseID, err)
	}
	if w != nil {
		row.WarehouseName = w.Name
		row.CountryCode = w.CountryCode
	} else {
		p.logger.Warn("warehouse missing from registry, using placeholder metadata",
			zap.String("warehouse_id", ref.WarehouseID.String()),
		)
	}
	return store.WarehouseMetrics().Create(ctx, row)
}

func (p *Projector) depart(ctx context.Context, store repositories.SharedStore, snap models.ProductSnapshot, ref *models.WarehouseRef, isComputer bool) error {
	metrics := store.WarehouseMetrics()
	delta := models.DeltaFor(isComputer)

	found, err := metrics.AddTotals(ctx, ref.WarehouseID, delta.Negate())
	if err != nil {
		return fmt.Errorf("decrement warehouse %s: %w", ref.WarehouseID, err)
	}
	if !found {
		p.logger.Warn("departure from warehouse without metrics",
			zap.String("warehouse_id", ref.WarehouseID.String()),
			zap.String("tenant", snap.TenantName),
		)
		return nil
	}

	if _, err := metrics.SubtractTenant(ctx, ref.WarehouseID, snap.TenantID, delta); err != nil {
		return fmt.Errorf("decrement tenant breakdown: %w", err)
	}
	if err := metrics.PruneTenants(ctx, ref.WarehouseID); err != nil {
		return err
	}
	return metrics.RecountTenants(ctx, ref.WarehouseID)
}
