package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uara/dashboard/internal/model"
)

// DetailActivityLimit is how many recent activities a request detail carries.
const DetailActivityLimit = 20

// ListCommentLimit is how many recent comments each listed request carries.
const ListCommentLimit = 3

// RequestRepository persists requests with their comments and attachments.
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// LockOwner takes a row lock on the customer for the rest of the current
// transaction, serialising that customer's request mutations. SQLite has no
// row locks; its single writer gives the same guarantee.
func (r *RequestRepository) LockOwner(ctx context.Context, userID string) error {
	tx := conn(ctx, r.db)
	if !isSQLite(tx) {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var user UserRecord
	if err := tx.Select("id").Where("id = ?", userID).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}

// FindOwned returns the bare request row if it exists and belongs to userID.
func (r *RequestRepository) FindOwned(ctx context.Context, userID, id string) (*model.Request, error) {
	var rec RequestRecord
	err := conn(ctx, r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find request: %w", err)
	}

	req := rec.toModel()
	return &req, nil
}

// HasActive reports whether userID owns an ACTIVE request other than excludeID.
func (r *RequestRepository) HasActive(ctx context.Context, userID, excludeID string) (bool, error) {
	q := conn(ctx, r.db).
		Model(&RequestRecord{}).
		Where("user_id = ? AND status = ?", userID, string(model.StatusActive))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to count active requests: %w", err)
	}
	return n > 0, nil
}

// MaxBacklogOrder returns the highest order index among userID's BACKLOG
// requests, or 0 when there are none.
func (r *RequestRepository) MaxBacklogOrder(ctx context.Context, userID string) (int, error) {
	var max sql.NullInt64
	err := conn(ctx, r.db).
		Model(&RequestRecord{}).
		Select("MAX(order_index)").
		Where("user_id = ? AND status = ?", userID, string(model.StatusBacklog)).
		Row().
		Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read backlog order: %w", err)
	}
	return int(max.Int64), nil
}

// Create inserts a request row.
func (r *RequestRepository) Create(ctx context.Context, req *model.Request) error {
	if err := conn(ctx, r.db).Create(toRequestRecord(req)).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of in to the request.
func (r *RequestRepository) Update(ctx context.Context, id string, in model.UpdateRequestInput) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Priority != nil {
		updates["priority"] = *in.Priority
	}
	if in.Status != nil {
		updates["status"] = string(*in.Status)
	}
	if in.ETA != nil {
		if in.ETA.IsZero() {
			updates["eta"] = nil
		} else {
			updates["eta"] = in.ETA.UTC()
		}
	}
	if in.PreviewURL != nil {
		if *in.PreviewURL == "" {
			updates["preview_url"] = nil
		} else {
			updates["preview_url"] = *in.PreviewURL
		}
	}

	result := conn(ctx, r.db).
		Model(&RequestRecord{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a request together with its comments, attachments and activities.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	tx := conn(ctx, r.db)

	for _, child := range []any{&ActivityRecord{}, &AttachmentRecord{}, &CommentRecord{}} {
		if err := tx.Where("request_id = ?", id).Delete(child).Error; err != nil {
			return fmt.Errorf("failed to delete request children: %w", err)
		}
	}

	result := tx.Where("id = ?", id).Delete(&RequestRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder sets order_index to position+1 for each id that is one of userID's
// BACKLOG requests. Other ids are ignored.
func (r *RequestRepository) Reorder(ctx context.Context, userID string, ids []string) error {
	tx := conn(ctx, r.db)
	now := time.Now().UTC()

	for i, id := range ids {
		err := tx.Model(&RequestRecord{}).
			Where("id = ? AND user_id = ? AND status = ?", id, userID, string(model.StatusBacklog)).
			Updates(map[string]any{"order_index": i + 1, "updated_at": now}).Error
		if err != nil {
			return fmt.Errorf("failed to reorder request: %w", err)
		}
	}
	return nil
}

// ListByUser returns every request owned by userID in dashboard order, each
// with its latest comments, all attachments, and child counts.
func (r *RequestRepository) ListByUser(ctx context.Context, userID string) ([]model.Request, error) {
	tx := conn(ctx, r.db)

	var recs []RequestRecord
	err := tx.Where("user_id = ?", userID).
		Order(statusOrder()).
		Order("priority ASC").
		Order("order_index ASC").
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	reqs := make([]model.Request, len(recs))
	for i := range recs {
		reqs[i] = recs[i].toModel()
	}

	if err := attachChildren(tx, reqs, ListCommentLimit); err != nil {
		return nil, err
	}
	return reqs, nil
}

// GetWithChildren returns an owned request with all comments and attachments.
func (r *RequestRepository) GetWithChildren(ctx context.Context, userID, id string) (*model.Request, error) {
	req, err := r.FindOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	reqs := []model.Request{*req}
	if err := attachChildren(conn(ctx, r.db), reqs, 0); err != nil {
		return nil, err
	}
	return &reqs[0], nil
}

// GetDetail returns an owned request with all comments, attachments, the most
// recent activities and its creator.
func (r *RequestRepository) GetDetail(ctx context.Context, userID, id string) (*model.Request, error) {
	req, err := r.GetWithChildren(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	tx := conn(ctx, r.db)

	acts, err := recentActivities(tx, req.ID, DetailActivityLimit)
	if err != nil {
		return nil, err
	}
	req.Activities = acts

	creators, err := userSummaries(tx, []string{req.CreatedByID})
	if err != nil {
		return nil, err
	}
	req.CreatedBy = creators[req.CreatedByID]

	return req, nil
}

// CreateComment inserts a comment and fills in its author.
func (r *RequestRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	tx := conn(ctx, r.db)

	rec := &CommentRecord{
		ID:         c.ID,
		RequestID:  c.RequestID,
		AuthorID:   c.AuthorID,
		Body:       c.Body,
		Visibility: string(c.Visibility),
		CreatedAt:  c.CreatedAt,
	}
	if err := tx.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	authors, err := userSummaries(tx, []string{c.AuthorID})
	if err != nil {
		return err
	}
	c.Author = authors[c.AuthorID]
	return nil
}

// CreateAttachment inserts an attachment.
func (r *RequestRepository) CreateAttachment(ctx context.Context, a *model.Attachment) error {
	rec := &AttachmentRecord{
		ID:         a.ID,
		RequestID:  a.RequestID,
		UserID:     a.UserID,
		URL:        a.URL,
		Kind:       a.Kind,
		UploadedBy: a.UploadedBy,
		CreatedAt:  a.CreatedAt,
	}
	if err := conn(ctx, r.db).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

// statusOrder ranks statuses in model.Statuses order for ORDER BY.
func statusOrder() string {
	var b strings.Builder
	b.WriteString("CASE status")
	for i, s := range model.Statuses {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", s, i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(model.Statuses))
	return b.String()
}

// attachChildren loads comments and attachments for reqs in place. With
// latestComments > 0 each request keeps only that many newest comments;
// otherwise all comments are kept oldest first. Counts always cover every row.
func attachChildren(tx *gorm.DB, reqs []model.Request, latestComments int) error {
	if len(reqs) == 0 {
		return nil
	}

	ids := make([]string, len(reqs))
	pos := make(map[string]int, len(reqs))
	for i := range reqs {
		ids[i] = reqs[i].ID
		pos[reqs[i].ID] = i
	}

	commentOrder := "created_at ASC, id ASC"
	if latestComments > 0 {
		commentOrder = "created_at DESC, id DESC"
	}

	var comments []CommentRecord
	if err := tx.Where("request_id IN ?", ids).Order(commentOrder).Find(&comments).Error; err != nil {
		return fmt.Errorf("failed to load comments: %w", err)
	}

	authorIDs := make([]string, 0, len(comments))
	for i := range comments {
		authorIDs = append(authorIDs, comments[i].AuthorID)
	}
	authors, err := userSummaries(tx, authorIDs)
	if err != nil {
		return err
	}

	for i := range comments {
		req := &reqs[pos[comments[i].RequestID]]
		req.Counts.Comments++
		if latestComments > 0 && len(req.Comments) >= latestComments {
			continue
		}
		c := comments[i].toModel()
		c.Author = authors[c.AuthorID]
		req.Comments = append(req.Comments, c)
	}

	var attachments []AttachmentRecord
	if err := tx.Where("request_id IN ?", ids).Order("created_at ASC, id ASC").Find(&attachments).Error; err != nil {
		return fmt.Errorf("failed to load attachments: %w", err)
	}
	for i := range attachments {
		req := &reqs[pos[attachments[i].RequestID]]
		req.Counts.Attachments++
		req.Attachments = append(req.Attachments, attachments[i].toModel())
	}

	return nil
}

// userSummaries returns display info keyed by user id. Unknown ids are absent.
func userSummaries(tx *gorm.DB, ids []string) (map[string]*model.UserSummary, error) {
	out := make(map[string]*model.UserSummary)
	if len(ids) == 0 {
		return out, nil
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return out, nil
	}

	var users []UserRecord
	if err := tx.Where("id IN ?", unique).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for i := range users {
		s := users[i].toModel().Summary()
		out[s.ID] = &s
	}
	return out, nil
}
