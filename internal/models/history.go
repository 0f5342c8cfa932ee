package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HistorySchemaVersion is stamped on every history record written today.
const HistorySchemaVersion = 2

// ActionType tags an audited transition.
type ActionType string

const (
	ActionAssign      ActionType = "assign"
	ActionReassign    ActionType = "reassign"
	ActionRelocate    ActionType = "relocate"
	ActionReturn      ActionType = "return"
	ActionOffboarding ActionType = "offboarding"
	ActionCreate      ActionType = "create"
	ActionDelete      ActionType = "delete"
	// ActionResolveShipment closes a shipment as received or cancelled.
	ActionResolveShipment ActionType = "resolve-shipment"
)

// Mutating reports whether the action moves an item and therefore requires
// the item to be free of an active shipment.
func (a ActionType) Mutating() bool {
	switch a {
	case ActionAssign, ActionReassign, ActionRelocate, ActionReturn, ActionOffboarding:
		return true
	}
	return false
}

type ItemType string

const (
	ItemProduct  ItemType = "products"
	ItemMember   ItemType = "members"
	ItemShipment ItemType = "shipments"
)

// HistoryData carries the before and after snapshots of a change.
type HistoryData struct {
	OldData json.RawMessage `json:"old_data"`
	NewData json.RawMessage `json:"new_data"`
}

type HistoryRecord struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	SchemaVersion int         `json:"schema_version" db:"schema_version"`
	ActionType    ActionType  `json:"action_type" db:"action_type"`
	ItemType      ItemType    `json:"item_type" db:"item_type"`
	ItemID        *uuid.UUID  `json:"item_id,omitempty" db:"item_id"`
	ActorID       string      `json:"actor_id" db:"actor_id"`
	Data          HistoryData `json:"data"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// legacyHistory is the record layout written before schema versioning.
type legacyHistory struct {
	ID         uuid.UUID  `json:"id"`
	ActionType string     `json:"actionType"`
	ItemType   string     `json:"itemType"`
	UserID     string     `json:"userId"`
	ItemID     *uuid.UUID `json:"itemId,omitempty"`
	Changes    struct {
		Before json.RawMessage `json:"before"`
		After  json.RawMessage `json:"after"`
	} `json:"changes"`
	CreatedAt time.Time `json:"createdAt"`
}

// UpgradeLegacyHistory converts a raw record to the current shape. Records
// that already carry a schema version are decoded as-is.
func UpgradeLegacyHistory(raw []byte) (*HistoryRecord, error) {
	var head struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	if head.SchemaVersion > 0 {
		var rec HistoryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	}

	var legacy legacyHistory
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, err
	}
	return &HistoryRecord{
		ID:            legacy.ID,
		SchemaVersion: HistorySchemaVersion,
		ActionType:    ActionType(legacy.ActionType),
		ItemType:      ItemType(legacy.ItemType),
		ItemID:        legacy.ItemID,
		ActorID:       legacy.UserID,
		Data: HistoryData{
			OldData: legacy.Changes.Before,
			NewData: legacy.Changes.After,
		},
		CreatedAt: legacy.CreatedAt,
	}, nil
}
