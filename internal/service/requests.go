// Package service implements the request lifecycle and customer account
// operations on top of the store.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/uara/dashboard/internal/apperror"
	"github.com/uara/dashboard/internal/model"
	"github.com/uara/dashboard/internal/store"
	"github.com/uara/dashboard/internal/validate"
	"github.com/uara/dashboard/pkg/logger"
	"github.com/uara/dashboard/pkg/metrics"
	"github.com/uara/dashboard/pkg/retry"
	"github.com/uara/dashboard/pkg/tracing"
)

// RequestStore is the persistence the lifecycle depends on.
type RequestStore interface {
	LockOwner(ctx context.Context, userID string) error
	FindOwned(ctx context.Context, userID, id string) (*model.Request, error)
	HasActive(ctx context.Context, userID, excludeID string) (bool, error)
	MaxBacklogOrder(ctx context.Context, userID string) (int, error)
	Create(ctx context.Context, req *model.Request) error
	Update(ctx context.Context, id string, in model.UpdateRequestInput) error
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, userID string, ids []string) error
	ListByUser(ctx context.Context, userID string) ([]model.Request, error)
	GetWithChildren(ctx context.Context, userID, id string) (*model.Request, error)
	GetDetail(ctx context.Context, userID, id string) (*model.Request, error)
	CreateComment(ctx context.Context, c *model.Comment) error
	CreateAttachment(ctx context.Context, a *model.Attachment) error
}

// Transactor runs fn in a single database transaction.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ActivityRecorder writes activities inside a transaction and announces them
// after commit.
type ActivityRecorder interface {
	Record(ctx context.Context, ownerID, actorID, requestID string, meta model.ActivityMeta) (*model.Activity, error)
	Announce(ctx context.Context, acts []*model.Activity)
}

// ViewCache holds each customer's request list between mutations.
type ViewCache interface {
	GetRequests(ctx context.Context, userID string) ([]model.Request, bool)
	SetRequests(ctx context.Context, userID string, reqs []model.Request)
	Invalidate(ctx context.Context, userID string)
}

// OwnerProvisioner recreates a customer row that vanished after the caller
// was admitted, e.g. an account deleted through another instance.
type OwnerProvisioner interface {
	Reprovision(ctx context.Context, userID string) error
}

// LifecycleOptions tunes the request lifecycle.
type LifecycleOptions struct {
	// BlockCreateWhileActive refuses new requests while the customer has an
	// ACTIVE one.
	BlockCreateWhileActive bool
	// ReadRetry bounds retries of read operations.
	ReadRetry retry.Policy
	// OperationTimeout bounds each operation's database work. Zero disables it.
	OperationTimeout time.Duration
}

// DefaultLifecycleOptions returns the production defaults.
func DefaultLifecycleOptions() LifecycleOptions {
	return LifecycleOptions{
		BlockCreateWhileActive: true,
		ReadRetry:              retry.DefaultPolicy,
		OperationTimeout:       10 * time.Second,
	}
}

// RequestService owns every mutation of a request and enforces that a
// customer has at most one ACTIVE request.
type RequestService struct {
	store      RequestStore
	tx         Transactor
	activities ActivityRecorder
	cache      ViewCache
	owners     OwnerProvisioner
	opts       LifecycleOptions
	logger     *logger.Logger
}

// NewRequestService creates a new RequestService. cache and owners may be nil;
// without owners a missing customer row is reported as UNAUTHORIZED.
func NewRequestService(st RequestStore, tx Transactor, activities ActivityRecorder, cache ViewCache, owners OwnerProvisioner, opts LifecycleOptions, log *logger.Logger) *RequestService {
	if cache == nil {
		cache = noCache{}
	}
	return &RequestService{
		store:      st,
		tx:         tx,
		activities: activities,
		cache:      cache,
		owners:     owners,
		opts:       opts,
		logger:     log,
	}
}

// recordFunc appends an activity inside the running mutation.
type recordFunc func(requestID string, meta model.ActivityMeta) error

// mutate runs fn in a transaction holding the customer's lock. Activities
// recorded through fn commit with it and are announced afterwards.
func (s *RequestService) mutate(ctx context.Context, userID string, fn func(ctx context.Context, record recordFunc) error) error {
	var acts []*model.Activity

	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.tx.RunInTransaction(txCtx, func(ctx context.Context) error {
		acts = nil
		if err := s.lockOwner(ctx, userID); err != nil {
			return err
		}

		record := func(requestID string, meta model.ActivityMeta) error {
			a, err := s.activities.Record(ctx, userID, userID, requestID, meta)
			if err != nil {
				return err
			}
			acts = append(acts, a)
			return nil
		}
		return fn(ctx, record)
	})
	if err != nil {
		return err
	}

	s.activities.Announce(ctx, acts)
	s.cache.Invalidate(ctx, userID)
	return nil
}

// lockOwner locks the customer row, recreating it first when it is missing
// and an OwnerProvisioner is configured.
func (s *RequestService) lockOwner(ctx context.Context, userID string) error {
	err := s.store.LockOwner(ctx, userID)
	if errors.Is(err, store.ErrNotFound) && s.owners != nil {
		s.logger.Warn("customer row missing, reprovisioning", zap.String("user_id", userID))
		if err := s.owners.Reprovision(ctx, userID); err != nil {
			return err
		}
		err = s.store.LockOwner(ctx, userID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return apperror.Unauthorized("Account is not provisioned")
	}
	return err
}

func (s *RequestService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.OperationTimeout)
}

// guardActive fails when userID owns an ACTIVE request other than excludeID.
func (s *RequestService) guardActive(ctx context.Context, userID, excludeID, rule string) error {
	active, err := s.store.HasActive(ctx, userID, excludeID)
	if err != nil {
		return err
	}
	if active {
		metrics.RecordRejection(rule)
		return apperror.Invariant(apperror.ErrActiveRequestExists)
	}
	return nil
}

// CreateRequest creates a BACKLOG request at the end of the customer's backlog.
func (s *RequestService) CreateRequest(ctx context.Context, callerID string, in model.CreateRequestInput) (*model.Request, error) {
	ctx, span := tracing.Start(ctx, "RequestService.CreateRequest", attribute.String("user.id", callerID))
	defer span.End()

	in = sanitizeCreate(in)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var created *model.Request
	err := s.mutate(ctx, callerID, func(ctx context.Context, record recordFunc) error {
		if s.opts.BlockCreateWhileActive {
			if err := s.guardActive(ctx, callerID, "", "create_while_active"); err != nil {
				return err
			}
		}

		last, err := s.store.MaxBacklogOrder(ctx, callerID)
		if err != nil {
			return err
		}

		req := newRequest(callerID, in, last+1)
		if err := s.store.Create(ctx, req); err != nil {
			return err
		}
		if err := record(req.ID, model.CreatedMeta{Title: req.Title}); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, s.fail("create request", callerID, "", err)
	}

	metrics.RecordCreated("single", 1)
	s.logger.Info("request created",
		zap.String("user_id", callerID),
		zap.String("request_id", created.ID),
		zap.Int("order_index", created.OrderIndex),
	)
	return created, nil
}

// CreateBulkRequests creates every item as a BACKLOG request, or none of them.
func (s *RequestService) CreateBulkRequests(ctx context.Context, callerID string, in model.BulkCreateInput) ([]model.Request, error) {
	ctx, span := tracing.Start(ctx, "RequestService.CreateBulkRequests",
		attribute.String("user.id", callerID),
		attribute.Int("batch.size", len(in.Requests)),
	)
	defer span.End()

	items := make([]model.CreateRequestInput, len(in.Requests))
	for i := range in.Requests {
		items[i] = sanitizeCreate(in.Requests[i])
	}
	in.Requests = items
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var created []model.Request
	err := s.mutate(ctx, callerID, func(ctx context.Context, record recordFunc) error {
		created = created[:0]
		if s.opts.BlockCreateWhileActive {
			if err := s.guardActive(ctx, callerID, "", "create_while_active"); err != nil {
				return err
			}
		}

		next, err := s.store.MaxBacklogOrder(ctx, callerID)
		if err != nil {
			return err
		}

		for _, item := range in.Requests {
			next++
			req := newRequest(callerID, item, next)
			if err := s.store.Create(ctx, req); err != nil {
				return err
			}
			if err := record(req.ID, model.CreatedMeta{Title: req.Title, BulkCreate: true}); err != nil {
				return err
			}
			created = append(created, *req)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("create bulk requests", callerID, "", err)
	}

	metrics.RecordCreated("bulk", len(created))
	s.logger.Info("bulk requests created",
		zap.String("user_id", callerID),
		zap.Int("count", len(created)),
	)
	return created, nil
}

// Submit creates the confirmed subtasks of a sized request as one batch, or
// the request itself when no subtasks were confirmed.
func (s *RequestService) Submit(ctx context.Context, callerID string, in model.SubmitInput) ([]model.Request, error) {
	in.Title = sanitize(in.Title)
	in.Description = sanitize(in.Description)
	subtasks := make([]model.Subtask, len(in.Subtasks))
	for i, st := range in.Subtasks {
		subtasks[i] = model.Subtask{Title: sanitize(st.Title), Description: sanitize(st.Description)}
	}
	in.Subtasks = subtasks
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	if len(in.Subtasks) == 0 {
		req, err := s.CreateRequest(ctx, callerID, model.CreateRequestInput{
			Title:       in.Title,
			Description: in.Description,
			Priority:    in.Priority,
		})
		if err != nil {
			return nil, err
		}
		return []model.Request{*req}, nil
	}

	items := make([]model.CreateRequestInput, 0, len(in.Subtasks))
	for _, st := range in.Subtasks {
		items = append(items, model.CreateRequestInput{
			Title:       st.Title,
			Description: st.Description,
			Priority:    in.Priority,
		})
	}
	return s.CreateBulkRequests(ctx, callerID, model.BulkCreateInput{Requests: items})
}

// UpdateRequest edits any subset of a request's fields. A change to ACTIVE is
// held to the same single-active rule as UpdateRequestStatus.
func (s *RequestService) UpdateRequest(ctx context.Context, callerID, id string, in model.UpdateRequestInput) (*model.Request, error) {
	ctx, span := tracing.Start(ctx, "RequestService.UpdateRequest", attribute.String("request.id", id))
	defer span.End()

	in.Title = sanitizePtr(in.Title)
	in.Description = sanitizePtr(in.Description)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.PreviewURL != nil && *in.PreviewURL != "" {
		if err := validate.Var("preview_url", *in.PreviewURL, "url"); err != nil {
			return nil, err
		}
	}

	var (
		updated *model.Request
		before  model.Status
	)
	err := s.mutate(ctx, callerID, func(ctx context.Context, record recordFunc) error {
		current, err := s.store.FindOwned(ctx, callerID, id)
		if err != nil {
			return err
		}
		before = current.Status

		if in.Status != nil && *in.Status == model.StatusActive && current.Status != model.StatusActive {
			if err := s.guardActive(ctx, callerID, id, "activate_second"); err != nil {
				return err
			}
		}

		if err := s.store.Update(ctx, id, in); err != nil {
			return err
		}

		if diff := diffRequest(current, in); len(diff) > 0 {
			if err := record(id, diff); err != nil {
				return err
			}
		}

		updated, err = s.store.GetWithChildren(ctx, callerID, id)
		return err
	})
	if err != nil {
		return nil, s.fail("update request", callerID, id, err)
	}

	if updated.Status != before {
		metrics.RecordTransition(string(before), string(updated.Status))
	}
	s.logger.Info("request updated",
		zap.String("user_id", callerID),
		zap.String("request_id", id),
	)
	return updated, nil
}

// UpdateRequestStatus moves a request to status. Entering ACTIVE fails while
// another of the customer's requests is ACTIVE.
func (s *RequestService) UpdateRequestStatus(ctx context.Context, callerID, id string, status model.Status) (*model.Request, error) {
	ctx, span := tracing.Start(ctx, "RequestService.UpdateRequestStatus",
		attribute.String("request.id", id),
		attribute.String("request.status", string(status)),
	)
	defer span.End()

	if err := validate.Struct(model.UpdateStatusInput{Status: status}); err != nil {
		return nil, err
	}

	var (
		updated *model.Request
		before  model.Status
	)
	err := s.mutate(ctx, callerID, func(ctx context.Context, record recordFunc) error {
		current, err := s.store.FindOwned(ctx, callerID, id)
		if err != nil {
			return err
		}
		before = current.Status

		if status == model.StatusActive {
			if err := s.guardActive(ctx, callerID, id, "activate_second"); err != nil {
				return err
			}
		}

		if err := s.store.Update(ctx, id, model.UpdateRequestInput{Status: &status}); err != nil {
			return err
		}
		if err := record(id, model.StatusChangedMeta{From: current.Status, To: status}); err != nil {
			return err
		}

		updated, err = s.store.GetWithChildren(ctx, callerID, id)
		return err
	})
	if err != nil {
		return nil, s.fail("update request status", callerID, id, err)
	}

	metrics.RecordTransition(string(before), string(status))
	s.logger.Info("request status changed",
		zap.String("user_id", callerID),
		zap.String("request_id", id),
		zap.String("from", string(before)),
		zap.String("to", string(status)),
	)
	return updated, nil
}

// AddComment appends a comment authored by the caller.
func (s *RequestService) AddComment(ctx context.Context, callerID, requestID string, in model.AddCommentInput) (*model.Comment, error) {
	ctx, span := tracing.Start(ctx, "RequestService.AddComment", attribute.String("request.id", requestID))
	defer span.End()

	in.Body = sanitize(in.Body)
	if in.Visibility == "" {
		in.Visibility = model.VisibilityPublic
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		ID:         newID(),
		RequestID:  requestID,
		AuthorID:   callerID,
		Body:       in.Body,
		Visibility: in.Visibility,
		CreatedAt:  time.Now().UTC(),
	}
	err := s.mutate(ctx, callerID, func(ctx context.Context, record recordFunc) error {
		if _, err := s.store.FindOwned(ctx, callerID, requestID); err != nil {
			return err
		}
		if err := s.store.CreateComment(ctx, comment); err != nil {
			return err
		}
		return record(requestID, model.CommentAddedMeta{CommentID: comment.ID})
	})
	if err != nil {
		return nil, s.fail("add comment", callerID, requestID, err)
	}

	s.logger.Info("comment added",
		zap.String("user_id", callerID),
		zap.String("request_id", requestID),
		zap.String("comment_id", comment.ID),
	)
	return comment, nil
}

// AddAttachment appends a link attachment uploaded by the caller.
func (s *RequestService) AddAttachment(ctx context.Context, callerID, requestID string, in model.AddAttachmentInput) (*model.Attachment, error) {
	ctx, span := tracing.Start(ctx, "RequestService.AddAttachment", attribute.String("request.id", requestID))
	defer span.End()

	in.Kind = sanitize(in.Kind)
	if in.Kind == "" {
		in.Kind = model.DefaultAttachmentKind
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	attachment := &model.Attachment{
		ID:         newID(),
		RequestID:  requestID,
		UserID:     callerID,
		URL:        in.URL,
		Kind:       in.Kind,
		UploadedBy: callerID,
		CreatedAt:  time.Now().UTC(),
	}
	err := s.mutate(ctx, callerID, func(ctx context.Context, record recordFunc) error {
		if _, err := s.store.FindOwned(ctx, callerID, requestID); err != nil {
			return err
		}
		if err := s.store.CreateAttachment(ctx, attachment); err != nil {
			return err
		}
		return record(requestID, model.AttachmentAddedMeta{AttachmentID: attachment.ID, URL: attachment.URL})
	})
	if err != nil {
		return nil, s.fail("add attachment", callerID, requestID, err)
	}

	s.logger.Info("attachment added",
		zap.String("user_id", callerID),
		zap.String("request_id", requestID),
		zap.String("attachment_id", attachment.ID),
	)
	return attachment, nil
}

// DeleteRequest removes a BACKLOG request and everything attached to it.
func (s *RequestService) DeleteRequest(ctx context.Context, callerID, id string) error {
	ctx, span := tracing.Start(ctx, "RequestService.DeleteRequest", attribute.String("request.id", id))
	defer span.End()

	err := s.mutate(ctx, callerID, func(ctx context.Context, _ recordFunc) error {
		current, err := s.store.FindOwned(ctx, callerID, id)
		if err != nil {
			return err
		}
		if current.Status != model.StatusBacklog {
			metrics.RecordRejection("delete_not_backlog")
			return apperror.Invariant(apperror.ErrDeleteNotBacklog)
		}
		return s.store.Delete(ctx, id)
	})
	if err != nil {
		return s.fail("delete request", callerID, id, err)
	}

	s.logger.Info("request deleted",
		zap.String("user_id", callerID),
		zap.String("request_id", id),
	)
	return nil
}

// ReorderRequests renumbers the caller's BACKLOG requests in the given order.
// Ids that are not the caller's BACKLOG requests, malformed or foreign, are
// ignored and leave every other position in place.
func (s *RequestService) ReorderRequests(ctx context.Context, callerID string, ids []string) error {
	ctx, span := tracing.Start(ctx, "RequestService.ReorderRequests", attribute.Int("batch.size", len(ids)))
	defer span.End()

	err := s.mutate(ctx, callerID, func(ctx context.Context, _ recordFunc) error {
		return s.store.Reorder(ctx, callerID, ids)
	})
	if err != nil {
		return s.fail("reorder requests", callerID, "", err)
	}

	s.logger.Info("requests reordered",
		zap.String("user_id", callerID),
		zap.Int("count", len(ids)),
	)
	return nil
}

// GetUserRequests lists the caller's requests in dashboard order.
func (s *RequestService) GetUserRequests(ctx context.Context, callerID string) ([]model.Request, error) {
	ctx, span := tracing.Start(ctx, "RequestService.GetUserRequests")
	defer span.End()

	if cached, ok := s.cache.GetRequests(ctx, callerID); ok {
		return cached, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var reqs []model.Request
	err := retry.Do(ctx, "list_requests", s.opts.ReadRetry, func() error {
		var err error
		reqs, err = s.store.ListByUser(ctx, callerID)
		return err
	})
	if err != nil {
		return nil, s.fail("list requests", callerID, "", err)
	}

	s.cache.SetRequests(ctx, callerID, reqs)
	return reqs, nil
}

// GetRequest returns one of the caller's requests with its full history.
// Missing and foreign ids both yield NOT_FOUND.
func (s *RequestService) GetRequest(ctx context.Context, callerID, id string) (*model.Request, error) {
	ctx, span := tracing.Start(ctx, "RequestService.GetRequest", attribute.String("request.id", id))
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var req *model.Request
	err := retry.Do(ctx, "get_request", s.opts.ReadRetry, func() error {
		var err error
		req, err = s.store.GetDetail(ctx, callerID, id)
		if errors.Is(err, store.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, s.fail("get request", callerID, id, err)
	}
	return req, nil
}

// fail converts err into the *apperror.Error returned to callers and logs it.
func (s *RequestService) fail(op, userID, requestID string, err error) error {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.String("request_id", requestID),
	}

	if appErr, ok := apperror.As(err); ok {
		s.logger.Info("request operation rejected", append(fields, zap.String("kind", string(appErr.Kind)), zap.String("reason", appErr.Message))...)
		return appErr
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		s.logger.Info("request operation rejected", append(fields, zap.String("kind", string(apperror.KindNotFound)))...)
		return apperror.NotFound("Request")
	case errors.Is(err, store.ErrDuplicate):
		metrics.RecordRejection("active_index")
		s.logger.Warn("single active request enforced by index", fields...)
		return apperror.Invariant(apperror.ErrActiveRequestExists)
	}

	s.logger.Error("request operation failed", append(fields, zap.Error(err))...)
	return apperror.Database(err)
}

func newRequest(userID string, in model.CreateRequestInput, orderIndex int) *model.Request {
	now := time.Now().UTC()
	return &model.Request{
		ID:          newID(),
		UserID:      userID,
		CreatedByID: userID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.PriorityOrDefault(),
		Status:      model.StatusBacklog,
		OrderIndex:  orderIndex,
		CreatedAt:   now,
		UpdatedAt:   now,
		Comments:    []model.Comment{},
		Attachments: []model.Attachment{},
	}
}

// diffRequest reports the tracked fields that in would change on current.
func diffRequest(current *model.Request, in model.UpdateRequestInput) model.UpdatedMeta {
	diff := model.UpdatedMeta{}
	if in.Title != nil && *in.Title != current.Title {
		diff["title"] = model.FieldChange{From: current.Title, To: *in.Title}
	}
	if in.Status != nil && *in.Status != current.Status {
		diff["status"] = model.FieldChange{From: current.Status, To: *in.Status}
	}
	if in.Priority != nil && *in.Priority != current.Priority {
		diff["priority"] = model.FieldChange{From: current.Priority, To: *in.Priority}
	}
	return diff
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

type noCache struct{}

func (noCache) GetRequests(context.Context, string) ([]model.Request, bool) { return nil, false }
func (noCache) SetRequests(context.Context, string, []model.Request)        {}
func (noCache) Invalidate(context.Context, string)                         {}
