package models

import (
	"time"

	"github.com/google/uuid"
)

type ShipmentStatus string

const (
	ShipmentInTransit            ShipmentStatus = "In Transit"
	ShipmentInTransitMissingData ShipmentStatus = "In Transit - Missing Data"
	ShipmentReceived             ShipmentStatus = "Received"
	ShipmentCancelled            ShipmentStatus = "Cancelled"
)

// Active reports whether the shipment is still unresolved.
func (s ShipmentStatus) Active() bool {
	return s == ShipmentInTransit || s == ShipmentInTransitMissingData
}

// PartyKind identifies who is on one end of a shipment.
type PartyKind string

const (
	PartyMember    PartyKind = "member"
	PartyOffice    PartyKind = "office"
	PartyWarehouse PartyKind = "warehouse"
)

// Party is an origin or destination of a shipment along with the address
// fields used to decide if it can be shipped to.
type Party struct {
	Kind      PartyKind  `json:"kind"`
	RefID     *uuid.UUID `json:"ref_id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	DNI       string     `json:"dni,omitempty"`
	Country   string     `json:"country,omitempty"`
	State     string     `json:"state,omitempty"`
	City      string     `json:"city,omitempty"`
	ZipCode   string     `json:"zip_code,omitempty"`
	Address   string     `json:"address,omitempty"`
	Apartment string     `json:"apartment,omitempty"`
}

// MemberParty describes a member as a shipment end.
func MemberParty(m *Member) Party {
	id := m.ID
	return Party{
		Kind:      PartyMember,
		RefID:     &id,
		Name:      m.FullName(),
		Email:     m.Email,
		Phone:     m.Phone,
		DNI:       m.DNI,
		Country:   m.Country,
		City:      m.City,
		ZipCode:   m.ZipCode,
		Address:   m.Address,
		Apartment: m.Apartment,
	}
}

// OfficeParty describes the tenant's corporate office as a shipment end.
func OfficeParty(t *Tenant) Party {
	id := t.ID
	return Party{
		Kind:      PartyOffice,
		RefID:     &id,
		Name:      t.DisplayName,
		Phone:     t.Phone,
		Country:   t.Country,
		State:     t.State,
		City:      t.City,
		ZipCode:   t.ZipCode,
		Address:   t.Address,
		Apartment: t.Apartment,
	}
}

// WarehouseParty describes a partner warehouse as a shipment end.
func WarehouseParty(ref *WarehouseRef) Party {
	if ref == nil {
		return Party{Kind: PartyWarehouse, Name: "FP warehouse"}
	}
	id := ref.WarehouseID
	return Party{
		Kind:    PartyWarehouse,
		RefID:   &id,
		Name:    ref.WarehouseName,
		Country: ref.CountryCode,
	}
}

type Shipment struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	Origin        Party          `json:"origin" db:"origin"`
	Destination   Party          `json:"destination" db:"destination"`
	ProductIDs    []uuid.UUID    `json:"product_ids" db:"product_ids"`
	Status        ShipmentStatus `json:"status" db:"status"`
	ActionType    ActionType     `json:"action_type" db:"action_type"`
	ActorID       string         `json:"actor_id" db:"actor_id"`
	DesirableDate *time.Time     `json:"desirable_date,omitempty" db:"desirable_date"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// MemberID returns the member on this end of a shipment, if any.
func (p Party) MemberID() (uuid.UUID, bool) {
	if p.Kind != PartyMember || p.RefID == nil {
		return uuid.Nil, false
	}
	return *p.RefID, true
}

// ShipmentStatusRequest resolves an in-transit shipment.
type ShipmentStatusRequest struct {
	Status ShipmentStatus `json:"status" validate:"required,oneof=Received Cancelled"`
}

// ShipmentResolution is the shipment after resolution and the items it
// released.
type ShipmentResolution struct {
	Shipment *Shipment `json:"shipment"`
	Products []Product `json:"products"`
}
