package models

import (
	"time"

	"github.com/google/uuid"
)

// GlobalProduct is one row of the cross-tenant product index. It mirrors the
// tenant-local item and is never authoritative.
type GlobalProduct struct {
	TenantID       uuid.UUID     `json:"tenant_id" db:"tenant_id"`
	OriginalID     uuid.UUID     `json:"original_id" db:"original_id"`
	TenantName     string        `json:"tenant_name" db:"tenant_name"`
	Name           string        `json:"name" db:"name"`
	Category       string        `json:"category" db:"category"`
	Attributes     []Attribute   `json:"attributes" db:"attributes"`
	SerialNumber   *string       `json:"serial_number,omitempty" db:"serial_number"`
	Location       Location      `json:"location" db:"location"`
	Status         ProductStatus `json:"status" db:"status"`
	Condition      Condition     `json:"condition" db:"condition"`
	Recoverable    bool          `json:"recoverable" db:"recoverable"`
	FPShipment     bool          `json:"fp_shipment" db:"fp_shipment"`
	ActiveShipment bool          `json:"active_shipment" db:"active_shipment"`
	IsDeleted      bool          `json:"is_deleted" db:"is_deleted"`
	Warehouse      *WarehouseRef `json:"warehouse,omitempty" db:"warehouse"`
	Member         *MemberRef    `json:"member,omitempty" db:"member"`
	LastAssigned   string        `json:"last_assigned" db:"last_assigned"`
	// SourceUpdatedAt is the tenant-side UpdatedAt of the state this row
	// mirrors. Older snapshots never replace it.
	SourceUpdatedAt time.Time `json:"source_updated_at" db:"source_updated_at"`
	SyncedAt        time.Time `json:"synced_at" db:"synced_at"`
}

// IsComputer mirrors Product.IsComputer for index rows.
func (g *GlobalProduct) IsComputer() bool {
	p := Product{Category: g.Category}
	return p.IsComputer()
}

// HeldWarehouse returns the warehouse whose metrics count this row, or nil.
func (g *GlobalProduct) HeldWarehouse() *WarehouseRef {
	if g == nil || g.IsDeleted || g.Location != LocationFPWarehouse || g.Warehouse == nil {
		return nil
	}
	return g.Warehouse
}

// ProductSnapshot is the full current state of a tenant-local item handed to
// the global projector after a tenant transaction commits.
type ProductSnapshot struct {
	TenantID     uuid.UUID  `json:"tenant_id"`
	TenantName   string     `json:"tenant_name"`
	Product      Product    `json:"product"`
	Member       *MemberRef `json:"member,omitempty"`
	LastAssigned *string    `json:"last_assigned,omitempty"`
}

// ProjectionJob wraps a snapshot queued for retry.
type ProjectionJob struct {
	Snapshot ProductSnapshot `json:"snapshot"`
	Attempts int             `json:"attempts"`
	LastErr  string          `json:"last_error,omitempty"`
	QueuedAt time.Time       `json:"queued_at"`
}
