package models

import (
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	DisplayName       string          `json:"display_name" db:"display_name"`
	Country           string          `json:"country" db:"country"`
	State             string          `json:"state" db:"state"`
	City              string          `json:"city" db:"city"`
	ZipCode           string          `json:"zip_code" db:"zip_code"`
	Address           string          `json:"address" db:"address"`
	Apartment         string          `json:"apartment" db:"apartment"`
	Phone             string          `json:"phone" db:"phone"`
	RecoverableConfig map[string]bool `json:"recoverable_config" db:"recoverable_config"`
	Widgets           []Widget        `json:"widgets" db:"widgets"`
	IsActive          bool            `json:"is_active" db:"is_active"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// Widget is one tile of the tenant's dashboard layout.
type Widget struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// IsRecoverable looks up the recoverable flag for a category.
func (t *Tenant) IsRecoverable(category string) bool {
	if t == nil || t.RecoverableConfig == nil {
		return false
	}
	return t.RecoverableConfig[category]
}
