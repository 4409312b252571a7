package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/uara/dashboard/internal/model"
)

// ActivityRepository appends activity records. It never updates or deletes
// them; they go only when their request is deleted.
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts an activity. Inside a transaction it commits or rolls back
// with the mutation that caused it.
func (r *ActivityRepository) Append(ctx context.Context, a *model.Activity) error {
	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode activity meta: %w", err)
	}

	rec := &ActivityRecord{
		ID:        a.ID,
		RequestID: a.RequestID,
		UserID:    a.UserID,
		ActorID:   a.ActorID,
		Type:      string(a.Type),
		Meta:      datatypes.JSON(meta),
		CreatedAt: a.CreatedAt,
	}
	if err := conn(ctx, r.db).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// Recent returns up to limit activities for a request, newest first, with actors.
func (r *ActivityRepository) Recent(ctx context.Context, requestID string, limit int) ([]model.Activity, error) {
	return recentActivities(conn(ctx, r.db), requestID, limit)
}

func recentActivities(tx *gorm.DB, requestID string, limit int) ([]model.Activity, error) {
	var recs []ActivityRecord
	err := tx.Where("request_id = ?", requestID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}

	actorIDs := make([]string, len(recs))
	for i := range recs {
		actorIDs[i] = recs[i].ActorID
	}
	actors, err := userSummaries(tx, actorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]model.Activity, 0, len(recs))
	for i := range recs {
		a, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		a.Actor = actors[a.ActorID]
		out = append(out, a)
	}
	return out, nil
}
