package repositories

import (
	"context"
	"fmt"
	"time"

	"assetflow/internal/models"
	"assetflow/pkg/database"

	"github.com/google/uuid"
)

// HistoryRepository stores the audit trail of a tenant
type HistoryRepository interface {
	// Insert appends a history record
	Insert(ctx context.Context, record *models.HistoryRecord) error

	// ListByItem returns the newest records for an item first
	ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]*models.HistoryRecord, error)
}

type historyRepo struct {
	db database.Querier
}

// NewHistoryRepo creates a new history repository
func NewHistoryRepo(db database.Querier) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) Insert(ctx context.Context, record *models.HistoryRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO history (id, schema_version, action_type, item_type, item_id, actor_id, old_data, new_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query, record.ID, record.SchemaVersion, string(record.ActionType),
		string(record.ItemType), record.ItemID, record.ActorID, rawOrNil(record.Data.OldData),
		rawOrNil(record.Data.NewData), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	return nil
}

func (r *historyRepo) ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]*models.HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, schema_version, action_type, item_type, item_id, actor_id, old_data, new_data, created_at
		FROM history
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var records []*models.HistoryRecord
	for rows.Next() {
		var (
			rec        models.HistoryRecord
			actionType string
			itemType   string
			oldData    []byte
			newData    []byte
		)
		if err := rows.Scan(&rec.ID, &rec.SchemaVersion, &actionType, &itemType, &rec.ItemID, &rec.ActorID,
			&oldData, &newData, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		rec.ActionType = models.ActionType(actionType)
		rec.ItemType = models.ItemType(itemType)
		rec.Data.OldData = oldData
		rec.Data.NewData = newData
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func rawOrNil(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
