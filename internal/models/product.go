package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Location is where an inventory item currently is.
type Location string

const (
	LocationEmployee    Location = "Employee"
	LocationOurOffice   Location = "Our office"
	LocationFPWarehouse Location = "FP warehouse"
)

// Valid reports whether l is one of the known locations.
func (l Location) Valid() bool {
	switch l {
	case LocationEmployee, LocationOurOffice, LocationFPWarehouse:
		return true
	}
	return false
}

// Shape returns the storage shape implied by the location.
func (l Location) Shape() StorageShape {
	if l == LocationEmployee {
		return ShapeEmbedded
	}
	return ShapeStandalone
}

// StorageShape tells whether an item is its own record or lives inside a
// member's products list.
type StorageShape string

const (
	ShapeStandalone StorageShape = "standalone"
	ShapeEmbedded   StorageShape = "embedded"
)

type Condition string

const (
	ConditionOptimal   Condition = "Optimal"
	ConditionDefective Condition = "Defective"
	ConditionUnusable  Condition = "Unusable"
)

type ProductStatus string

const (
	StatusAvailable            ProductStatus = "Available"
	StatusDelivered            ProductStatus = "Delivered"
	StatusUnavailable          ProductStatus = "Unavailable"
	StatusInTransit            ProductStatus = "In Transit"
	StatusInTransitMissingData ProductStatus = "In Transit - Missing Data"
	StatusDeprecated           ProductStatus = "Deprecated"
)

// CategoryComputer is counted separately in warehouse metrics.
const CategoryComputer = "Computer"

// Attribute is one ordered key/value pair of a product.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// WarehouseRef is the snapshot of a partner warehouse stored on an item held
// in FP warehouse.
type WarehouseRef struct {
	WarehouseID   uuid.UUID `json:"warehouse_id"`
	WarehouseName string    `json:"warehouse_name"`
	CountryCode   string    `json:"country_code"`
}

type Product struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	Name           string           `json:"name" db:"name"`
	Category       string           `json:"category" db:"category" validate:"required"`
	Attributes     []Attribute      `json:"attributes" db:"attributes"`
	SerialNumber   *string          `json:"serial_number,omitempty" db:"serial_number"`
	Location       Location         `json:"location" db:"location"`
	Status         ProductStatus    `json:"status" db:"status"`
	Recoverable    bool             `json:"recoverable" db:"recoverable"`
	Condition      Condition        `json:"condition" db:"condition"`
	FPShipment     bool             `json:"fp_shipment" db:"fp_shipment"`
	ActiveShipment bool             `json:"active_shipment" db:"active_shipment"`
	Price          *decimal.Decimal `json:"price,omitempty" db:"price"`
	Warehouse      *WarehouseRef    `json:"warehouse,omitempty" db:"warehouse"`
	IsDeleted      bool             `json:"is_deleted" db:"is_deleted"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// IsComputer reports whether the item counts as a computer in metrics.
func (p *Product) IsComputer() bool {
	return strings.EqualFold(p.Category, CategoryComputer)
}

// Serial returns the serial number or an empty string.
func (p *Product) Serial() string {
	if p.SerialNumber == nil {
		return ""
	}
	return *p.SerialNumber
}

// Clone returns a deep copy so snapshots taken before a transition are not
// mutated by it.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.Attributes != nil {
		c.Attributes = append([]Attribute(nil), p.Attributes...)
	}
	if p.SerialNumber != nil {
		s := *p.SerialNumber
		c.SerialNumber = &s
	}
	if p.Price != nil {
		d := *p.Price
		c.Price = &d
	}
	if p.Warehouse != nil {
		w := *p.Warehouse
		c.Warehouse = &w
	}
	return &c
}
