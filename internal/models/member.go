package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Member is a person in a tenant. Items assigned to the member live in
// Products and nowhere else.
type Member struct {
	ID             uuid.UUID `json:"id" db:"id"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Email          string    `json:"email" db:"email"`
	Phone          string    `json:"phone" db:"phone"`
	DNI            string    `json:"dni" db:"dni"`
	Country        string    `json:"country" db:"country"`
	City           string    `json:"city" db:"city"`
	ZipCode        string    `json:"zip_code" db:"zip_code"`
	Address        string    `json:"address" db:"address"`
	Apartment      string    `json:"apartment" db:"apartment"`
	Products       []Product `json:"products" db:"products"`
	ActiveShipment bool      `json:"active_shipment" db:"active_shipment"`
	IsDeleted      bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// ProductIndex returns the position of the product in the embedded list or -1.
func (m *Member) ProductIndex(productID uuid.UUID) int {
	for i := range m.Products {
		if m.Products[i].ID == productID {
			return i
		}
	}
	return -1
}

// RemoveProduct drops the product from the embedded list and returns it.
func (m *Member) RemoveProduct(productID uuid.UUID) (*Product, bool) {
	idx := m.ProductIndex(productID)
	if idx < 0 {
		return nil, false
	}
	removed := m.Products[idx]
	m.Products = append(m.Products[:idx:idx], m.Products[idx+1:]...)
	return &removed, true
}

// Ref is the projection-facing summary of the member.
func (m *Member) Ref() *MemberRef {
	return &MemberRef{
		MemberID: m.ID,
		Email:    m.Email,
		FullName: m.FullName(),
		Country:  m.Country,
	}
}

// MemberRef is the assignee sub-object of a global index row.
type MemberRef struct {
	MemberID uuid.UUID `json:"member_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Country  string    `json:"country"`
}
