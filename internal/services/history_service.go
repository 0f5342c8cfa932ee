package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/repositories"

	"github.com/google/uuid"
)

// HistoryEntry is one audited change before it is serialized.
type HistoryEntry struct {
	ActionType models.ActionType
	ItemType   models.ItemType
	ItemID     *uuid.UUID
	ActorID    string
	OldData    any
	NewData    any
}

type HistoryRecorder interface {
	// Record appends one history record through repo, which is usually bound
	// to the caller's tenant transaction
	Record(ctx context.Context, repo repositories.HistoryRepository, entry HistoryEntry) error

	// ItemHistory lists the records of one item, newest first
	ItemHistory(ctx context.Context, repo repositories.HistoryRepository, itemID uuid.UUID, limit int) ([]*models.HistoryRecord, error)
}

type historyRecorder struct {
	now func() time.Time
}

// NewHistoryRecorder creates a new history recorder
func NewHistoryRecorder() HistoryRecorder {
	return &historyRecorder{now: time.Now}
}

// Record fails when the actor is missing so that no change goes unattributed.
func (r *historyRecorder) Record(ctx context.Context, repo repositories.HistoryRepository, entry HistoryEntry) error {
	if entry.ActorID == "" {
		return common.NewValidation("actor_id", "is required to record history")
	}
	if entry.ActionType == "" {
		return common.NewValidation("action_type", "is required to record history")
	}

	oldData, err := encodeSnapshot(entry.OldData)
	if err != nil {
		return fmt.Errorf("encode old data: %w", err)
	}
	newData, err := encodeSnapshot(entry.NewData)
	if err != nil {
		return fmt.Errorf("encode new data: %w", err)
	}

	record := &models.HistoryRecord{
		ID:            uuid.New(),
		SchemaVersion: models.HistorySchemaVersion,
		ActionType:    entry.ActionType,
		ItemType:      entry.ItemType,
		ItemID:        entry.ItemID,
		ActorID:       entry.ActorID,
		Data:          models.HistoryData{OldData: oldData, NewData: newData},
		CreatedAt:     r.now().UTC(),
	}
	return repo.Insert(ctx, record)
}

func (r *historyRecorder) ItemHistory(ctx context.Context, repo repositories.HistoryRepository, itemID uuid.UUID, limit int) ([]*models.HistoryRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return repo.ListByItem(ctx, itemID, limit)
}

func encodeSnapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}
