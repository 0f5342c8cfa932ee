package models

import (
	"time"

	"github.com/google/uuid"
)

// WarehouseMetrics holds the running occupancy counters of one warehouse.
type WarehouseMetrics struct {
	WarehouseID        uuid.UUID       `json:"warehouse_id" db:"warehouse_id"`
	WarehouseName      string          `json:"warehouse_name" db:"warehouse_name"`
	CountryCode        string          `json:"country_code" db:"country_code"`
	TotalProducts      int64           `json:"total_products" db:"total_products"`
	TotalComputers     int64           `json:"total_computers" db:"total_computers"`
	TotalOtherProducts int64           `json:"total_other_products" db:"total_other_products"`
	TotalTenants       int64           `json:"total_tenants" db:"total_tenants"`
	TenantMetrics      []TenantMetrics `json:"tenant_metrics"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// TenantMetrics is the per-tenant breakdown entry of a warehouse.
type TenantMetrics struct {
	TenantID      uuid.UUID `json:"tenant_id" db:"tenant_id"`
	TenantName    string    `json:"tenant_name" db:"tenant_name"`
	TotalProducts int64     `json:"total_products" db:"total_products"`
	Computers     int64     `json:"computers" db:"computers"`
	OtherProducts int64     `json:"other_products" db:"other_products"`
}

// MetricDelta is a change applied to the counters for a single item.
type MetricDelta struct {
	Products  int64
	Computers int64
	Others    int64
}

// DeltaFor returns the arrival delta of one item.
func DeltaFor(isComputer bool) MetricDelta {
	if isComputer {
		return MetricDelta{Products: 1, Computers: 1}
	}
	return MetricDelta{Products: 1, Others: 1}
}

// Negate flips the sign, turning an arrival into a departure.
func (d MetricDelta) Negate() MetricDelta {
	return MetricDelta{Products: -d.Products, Computers: -d.Computers, Others: -d.Others}
}

// CountryMetrics aggregates the warehouses of one country.
type CountryMetrics struct {
	CountryCode        string             `json:"country_code"`
	TotalProducts      int64              `json:"total_products"`
	TotalComputers     int64              `json:"total_computers"`
	TotalOtherProducts int64              `json:"total_other_products"`
	Warehouses         []WarehouseMetrics `json:"warehouses"`
}

// GlobalOverview aggregates every warehouse.
type GlobalOverview struct {
	TotalWarehouses    int              `json:"total_warehouses"`
	TotalProducts      int64            `json:"total_products"`
	TotalComputers     int64            `json:"total_computers"`
	TotalOtherProducts int64            `json:"total_other_products"`
	TotalTenants       int64            `json:"total_tenants"`
	Countries          []CountryMetrics `json:"countries"`
	GeneratedAt        time.Time        `json:"generated_at"`
}
