// Package activity records the audit trail of request events and announces
// committed events on the event stream.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uara/dashboard/internal/model"
	"github.com/uara/dashboard/pkg/logger"
	"github.com/uara/dashboard/pkg/metrics"
)

// publishTimeout bounds one best-effort publish.
const publishTimeout = 2 * time.Second

// Store appends activities. Implementations join the transaction carried by ctx.
type Store interface {
	Append(ctx context.Context, a *model.Activity) error
}

// Publisher announces a committed activity to other systems.
type Publisher interface {
	PublishActivity(ctx context.Context, a *model.Activity) error
}

// Logger writes activities and announces them once their transaction commits.
type Logger struct {
	store     Store
	publisher Publisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewLogger creates an activity Logger. publisher may be nil.
func NewLogger(store Store, publisher Publisher, log *logger.Logger) *Logger {
	return &Logger{
		store:     store,
		publisher: publisher,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record appends an activity of meta's type for a request owned by ownerID.
func (l *Logger) Record(ctx context.Context, ownerID, actorID, requestID string, meta model.ActivityMeta) (*model.Activity, error) {
	a := &model.Activity{
		ID:        uuid.Must(uuid.NewV7()).String(),
		RequestID: requestID,
		UserID:    ownerID,
		ActorID:   actorID,
		Type:      meta.ActivityType(),
		Meta:      meta,
		CreatedAt: l.now(),
	}
	if err := l.store.Append(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to record %s activity: %w", a.Type, err)
	}
	return a, nil
}

// Announce publishes committed activities. Failures are logged and never
// reach the caller.
func (l *Logger) Announce(ctx context.Context, acts []*model.Activity) {
	if l.publisher == nil || len(acts) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	for _, a := range acts {
		err := l.publisher.PublishActivity(ctx, a)
		metrics.RecordEventPublished(string(a.Type), err)
		if err != nil {
			l.logger.Warn("failed to publish activity",
				zap.String("activity_id", a.ID),
				zap.String("request_id", a.RequestID),
				zap.String("type", string(a.Type)),
				zap.Error(err),
			)
		}
	}
}
