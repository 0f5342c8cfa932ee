package models

import (
	"time"

	"github.com/google/uuid"
)

// WarehouseCountry is the registry entry of a country and its warehouses.
type WarehouseCountry struct {
	CountryCode string      `json:"country_code" db:"country_code"`
	CountryName string      `json:"country_name" db:"country_name"`
	Warehouses  []Warehouse `json:"warehouses"`
}

// ActiveWarehouse returns the single active, non-deleted warehouse, if any.
func (c *WarehouseCountry) ActiveWarehouse() *Warehouse {
	for i := range c.Warehouses {
		w := &c.Warehouses[i]
		if w.IsActive && !w.IsDeleted {
			return w
		}
	}
	return nil
}

type Warehouse struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CountryCode string    `json:"country_code" db:"country_code" validate:"required,len=2"`
	Name        string    `json:"name" db:"name" validate:"required"`
	Address     string    `json:"address" db:"address"`
	City        string    `json:"city" db:"city"`
	State       string    `json:"state" db:"state"`
	ZipCode     string    `json:"zip_code" db:"zip_code"`
	Phone       string    `json:"phone" db:"phone"`
	Email       string    `json:"email" db:"email"`
	PartnerType string    `json:"partner_type" db:"partner_type"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	IsDeleted   bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (w *Warehouse) Ref() *WarehouseRef {
	return &WarehouseRef{
		WarehouseID:   w.ID,
		WarehouseName: w.Name,
		CountryCode:   w.CountryCode,
	}
}

// WarehouseAssignment is the outcome of a successful warehouse resolution.
type WarehouseAssignment struct {
	WarehouseID   uuid.UUID `json:"warehouse_id"`
	WarehouseName string    `json:"warehouse_name"`
	CountryCode   string    `json:"country_code"`
}

func (a *WarehouseAssignment) Ref() *WarehouseRef {
	if a == nil {
		return nil
	}
	return &WarehouseRef{
		WarehouseID:   a.WarehouseID,
		WarehouseName: a.WarehouseName,
		CountryCode:   a.CountryCode,
	}
}

type EscalationReason string

const (
	EscalationUnknownCountry EscalationReason = "unknown_country"
	EscalationNoWarehouse    EscalationReason = "no_warehouse"
	EscalationNoActive       EscalationReason = "no_active_warehouse"
)

// Escalation is returned instead of an assignment when an operator has to
// step in. It is not an error.
type Escalation struct {
	Reason      EscalationReason `json:"reason"`
	CountryCode string           `json:"country_code"`
	TenantName  string           `json:"tenant_name"`
	ProductID   uuid.UUID        `json:"product_id"`
	Category    string           `json:"category"`
	Message     string           `json:"message"`
}
