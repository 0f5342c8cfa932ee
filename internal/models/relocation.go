package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RelocationRequest asks to move one item to a new location.
type RelocationRequest struct {
	ProductID      uuid.UUID        `json:"product_id" validate:"required"`
	TargetLocation Location         `json:"target_location" validate:"required,location"`
	TargetMemberID *uuid.UUID       `json:"target_member_id,omitempty" validate:"required_if=TargetLocation Employee"`
	ActionType     ActionType       `json:"action_type,omitempty" validate:"omitempty,oneof=assign reassign relocate return offboarding"`
	FPShipment     bool             `json:"fp_shipment"`
	DesirableDate  *time.Time       `json:"desirable_date,omitempty"`
	Condition      *Condition       `json:"condition,omitempty" validate:"omitempty,oneof=Optimal Defective Unusable"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	// OriginCountry overrides the country used to pick a partner warehouse
	// when the target is FP warehouse.
	OriginCountry string `json:"origin_country,omitempty" validate:"omitempty,len=2"`
	// RequireCompleteAddress refuses the move instead of creating a shipment
	// with missing destination data.
	RequireCompleteAddress bool `json:"require_complete_address,omitempty"`
}

// RelocationResult is what a completed relocation produced.
type RelocationResult struct {
	Product    *Product    `json:"product"`
	Shipment   *Shipment   `json:"shipment,omitempty"`
	Escalation *Escalation `json:"escalation,omitempty"`
	History    bool        `json:"history_recorded"`
	// MissingAddressFields lists what the destination lacks when the
	// shipment was created as In Transit - Missing Data.
	MissingAddressFields []string `json:"missing_address_fields,omitempty"`
}

// BulkRelocationRequest runs many independent relocations all-or-nothing.
type BulkRelocationRequest struct {
	Relocations []RelocationRequest `json:"relocations" validate:"required,min=1,dive"`
}

// BulkRelocationResult mirrors the per-item results of a committed batch.
type BulkRelocationResult struct {
	OperationID    string             `json:"operation_id"`
	TotalItems     int                `json:"total_items"`
	StartTime      time.Time          `json:"start_time"`
	CompletionTime time.Time          `json:"completion_time"`
	Results        []RelocationResult `json:"results"`
}

// StatusInput is everything status derivation looks at.
type StatusInput struct {
	FPShipment      bool      `json:"fp_shipment"`
	Location        Location  `json:"location" validate:"required,location"`
	HasAssignee     bool      `json:"has_assignee"`
	Condition       Condition `json:"condition"`
	AddressComplete bool      `json:"address_complete"`
}

// NewProductRequest creates an item standalone or straight into a member.
type NewProductRequest struct {
	Product  Product    `json:"product"`
	Location Location   `json:"location" validate:"required,location"`
	MemberID *uuid.UUID `json:"member_id,omitempty" validate:"required_if=Location Employee"`
	// Warehouse pins the partner warehouse when Location is FP warehouse.
	Warehouse *WarehouseRef `json:"warehouse,omitempty"`
}
