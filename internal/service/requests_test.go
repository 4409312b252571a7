package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/uara/dashboard/internal/activity"
	"github.com/uara/dashboard/internal/apperror"
	"github.com/uara/dashboard/internal/model"
	"github.com/uara/dashboard/internal/store"
	"github.com/uara/dashboard/internal/store/storetest"
	"github.com/uara/dashboard/pkg/logger"
	"github.com/uara/dashboard/pkg/retry"
)

const (
	alice = "cust-alice"
	bob   = "cust-bob"
)

// faultyStore injects failures into a real repository.
type faultyStore struct {
	*store.RequestRepository
	failCreateAt int
	creates      int
	listFailures int
	// blindActive makes HasActive report no ACTIVE request.
	blindActive bool
}

func (f *faultyStore) HasActive(ctx context.Context, userID, excludeID string) (bool, error) {
	if f.blindActive {
		return false, nil
	}
	return f.RequestRepository.HasActive(ctx, userID, excludeID)
}

func (f *faultyStore) Create(ctx context.Context, req *model.Request) error {
	f.creates++
	if f.creates == f.failCreateAt {
		return errors.New("connection reset by peer")
	}
	return f.RequestRepository.Create(ctx, req)
}

func (f *faultyStore) ListByUser(ctx context.Context, userID string) ([]model.Request, error) {
	if f.listFailures > 0 {
		f.listFailures--
		return nil, errors.New("i/o timeout")
	}
	return f.RequestRepository.ListByUser(ctx, userID)
}

type harness struct {
	db   *gorm.DB
	repo *faultyStore
	svc  *RequestService
}

func newHarness(t *testing.T, mutate ...func(*LifecycleOptions)) *harness {
	t.Helper()

	db := storetest.Open(t)
	storetest.SeedUser(t, db, alice)
	storetest.SeedUser(t, db, bob)

	opts := DefaultLifecycleOptions()
	opts.ReadRetry = retry.Policy{Attempts: 3, BaseDelay: time.Millisecond}
	for _, m := range mutate {
		m(&opts)
	}

	repo := &faultyStore{RequestRepository: store.NewRequestRepository(db)}
	acts := activity.NewLogger(store.NewActivityRepository(db), nil, logger.Nop())
	svc := NewRequestService(repo, store.NewTransactionManager(db), acts, nil, nil, opts, logger.Nop())

	return &harness{db: db, repo: repo, svc: svc}
}

func (h *harness) create(t *testing.T, userID, title string) *model.Request {
	t.Helper()
	req, err := h.svc.CreateRequest(context.Background(), userID, model.CreateRequestInput{
		Title:       title,
		Description: title + " details",
	})
	require.NoError(t, err)
	return req
}

func (h *harness) countRows(t *testing.T, rec any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(rec).Where(where, args...).Count(&n).Error)
	return n
}

func requireKind(t *testing.T, err error, kind apperror.Kind) *apperror.Error {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected *apperror.Error, got %T: %v", err, err)
	require.Equal(t, kind, appErr.Kind, appErr.Error())
	return appErr
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func statusPtr(s model.Status) *model.Status { return &s }

func TestCreateRequest_RoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.CreateRequest(ctx, alice, model.CreateRequestInput{
		Title:       "Fix button",
		Description: "Change color to blue",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusBacklog, created.Status)
	assert.Equal(t, model.DefaultPriority, created.Priority)
	assert.Equal(t, 1, created.OrderIndex)
	assert.Empty(t, created.Comments)
	assert.Empty(t, created.Attachments)

	got, err := h.svc.GetRequest(ctx, alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fix button", got.Title)
	assert.Equal(t, "Change color to blue", got.Description)
	assert.Equal(t, model.DefaultPriority, got.Priority)
	assert.Equal(t, model.StatusBacklog, got.Status)

	require.Len(t, got.Activities, 1)
	assert.Equal(t, model.ActivityCreated, got.Activities[0].Type)
	assert.Equal(t, model.CreatedMeta{Title: "Fix button"}, got.Activities[0].Meta)
	require.NotNil(t, got.CreatedBy)
	assert.Equal(t, alice, got.CreatedBy.ID)
}

func TestCreateRequest_ExplicitPriorityAndSanitising(t *testing.T) {
	h := newHarness(t)

	created, err := h.svc.CreateRequest(context.Background(), alice, model.CreateRequestInput{
		Title:       "Logo\x00 tweak",
		Description: "café",
		Priority:    intPtr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "Logo tweak", created.Title)
	assert.Equal(t, "café", created.Description)
	assert.Equal(t, 1, created.Priority)
}

func TestCreateRequest_ValidationRejectsBeforePersisting(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		input model.CreateRequestInput
		field string
	}{
		{"empty title", model.CreateRequestInput{Description: "d"}, "title"},
		{"only control chars", model.CreateRequestInput{Title: "\x00\x01", Description: "d"}, "title"},
		{"empty description", model.CreateRequestInput{Title: "t"}, "description"},
		{"priority out of range", model.CreateRequestInput{Title: "t", Description: "d", Priority: intPtr(9)}, "priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateRequest(context.Background(), alice, tt.input)
			appErr := requireKind(t, err, apperror.KindValidation)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}

	assert.Zero(t, h.countRows(t, &store.RequestRecord{}, "user_id = ?", alice))
}

func TestCreateRequest_OrderIndexIncreases(t *testing.T) {
	h := newHarness(t)

	var last int
	for i := 0; i < 4; i++ {
		req := h.create(t, alice, fmt.Sprintf("item %d", i))
		assert.Greater(t, req.OrderIndex, last)
		last = req.OrderIndex
	}
	assert.Equal(t, 4, last)

	// Other customers have their own sequence.
	assert.Equal(t, 1, h.create(t, bob, "bob first").OrderIndex)
}

func TestCreateRequest_BlockedWhileActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.create(t, alice, "first")
	_, err := h.svc.UpdateRequestStatus(ctx, alice, first.ID, model.StatusActive)
	require.NoError(t, err)

	_, err = h.svc.CreateRequest(ctx, alice, model.CreateRequestInput{Title: "second", Description: "d"})
	appErr := requireKind(t, err, apperror.KindInvariant)
	assert.Equal(t, apperror.ErrActiveRequestExists, appErr.Message)

	_, err = h.svc.CreateBulkRequests(ctx, alice, model.BulkCreateInput{Requests: []model.CreateRequestInput{{Title: "a", Description: "b"}}})
	requireKind(t, err, apperror.KindInvariant)
}

func TestCreateRequest_AllowedWhileActiveWhenRelaxed(t *testing.T) {
	h := newHarness(t, func(o *LifecycleOptions) { o.BlockCreateWhileActive = false })
	ctx := context.Background()

	first := h.create(t, alice, "first")
	_, err := h.svc.UpdateRequestStatus(ctx, alice, first.ID, model.StatusActive)
	require.NoError(t, err)

	second := h.create(t, alice, "second")
	assert.Equal(t, model.StatusBacklog, second.Status)
}

func TestCreateRequest_UnprovisionedCaller(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateRequest(context.Background(), "ghost", model.CreateRequestInput{Title: "t", Description: "d"})
	requireKind(t, err, apperror.KindUnauthorized)
}

func TestCreateBulkRequests_ContinuesBacklogOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		h.create(t, alice, fmt.Sprintf("existing %d", i))
	}

	created, err := h.svc.CreateBulkRequests(ctx, alice, model.BulkCreateInput{Requests: []model.CreateRequestInput{
		{Title: "Homepage", Description: "Landing page"},
		{Title: "Pricing", Description: "Pricing page", Priority: intPtr(2)},
		{Title: "Checkout", Description: "Stripe checkout"},
	}})
	require.NoError(t, err)
	require.Len(t, created, 3)

	for i, want := range []int{6, 7, 8} {
		assert.Equal(t, want, created[i].OrderIndex)
		assert.Equal(t, model.StatusBacklog, created[i].Status)

		detail, err := h.svc.GetRequest(ctx, alice, created[i].ID)
		require.NoError(t, err)
		require.Len(t, detail.Activities, 1)
		assert.Equal(t, model.CreatedMeta{Title: created[i].Title, BulkCreate: true}, detail.Activities[0].Meta)
	}
	assert.Equal(t, 2, created[1].Priority)
	assert.Equal(t, model.DefaultPriority, created[2].Priority)
}

func TestCreateBulkRequests_AllOrNothing(t *testing.T) {
	h := newHarness(t)
	h.repo.failCreateAt = 2

	_, err := h.svc.CreateBulkRequests(context.Background(), alice, model.BulkCreateInput{Requests: []model.CreateRequestInput{
		{Title: "one", Description: "d"},
		{Title: "two", Description: "d"},
		{Title: "three", Description: "d"},
	}})
	requireKind(t, err, apperror.KindDatabase)

	assert.Zero(t, h.countRows(t, &store.RequestRecord{}, "user_id = ?", alice))
	assert.Zero(t, h.countRows(t, &store.ActivityRecord{}, "user_id = ?", alice))
}

func TestCreateBulkRequests_RequiresAtLeastOne(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateBulkRequests(context.Background(), alice, model.BulkCreateInput{})
	requireKind(t, err, apperror.KindValidation)
}

func TestUpdateRequestStatus_SecondActiveRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r1 := h.create(t, alice, "R1")
	r2 := h.create(t, alice, "R2")

	_, err := h.svc.UpdateRequestStatus(ctx, alice, r1.ID, model.StatusActive)
	require.NoError(t, err)

	_, err = h.svc.UpdateRequestStatus(ctx, alice, r2.ID, model.StatusActive)
	appErr := requireKind(t, err, apperror.KindInvariant)
	assert.Equal(t, apperror.ErrActiveRequestExists, appErr.Message)

	got1, err := h.svc.GetRequest(ctx, alice, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got1.Status)

	got2, err := h.svc.GetRequest(ctx, alice, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBacklog, got2.Status)
	assert.Len(t, got2.Activities, 1)
}

func TestUpdateRequestStatus_RecordsTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := h.create(t, alice, "flow")

	updated, err := h.svc.UpdateRequestStatus(ctx, alice, req.ID, model.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, updated.Status)

	// Re-asserting ACTIVE on the active request itself is allowed.
	_, err = h.svc.UpdateRequestStatus(ctx, alice, req.ID, model.StatusActive)
	require.NoError(t, err)

	_, err = h.svc.UpdateRequestStatus(ctx, alice, req.ID, model.StatusReview)
	require.NoError(t, err)

	// Terminal statuses are not locked.
	_, err = h.svc.UpdateRequestStatus(ctx, alice, req.ID, model.StatusDone)
	require.NoError(t, err)
	_, err = h.svc.UpdateRequestStatus(ctx, alice, req.ID, model.StatusBacklog)
	require.NoError(t, err)

	detail, err := h.svc.GetRequest(ctx, alice, req.ID)
	require.NoError(t, err)
	require.Len(t, detail.Activities, 6)
	assert.Equal(t, model.StatusChangedMeta{From: model.StatusDone, To: model.StatusBacklog}, detail.Activities[0].Meta)
	assert.Equal(t, model.ActivityCreated, detail.Activities[5].Type)
}

func TestUpdateRequestStatus_InvalidStatus(t *testing.T) {
	h := newHarness(t)
	req := h.create(t, alice, "x")

	_, err := h.svc.UpdateRequestStatus(context.Background(), alice, req.ID, model.Status("ARCHIVED"))
	requireKind(t, err, apperror.KindValidation)
}

func TestUpdateRequestStatus_ConcurrentActivation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		ids[i] = h.create(t, alice, fmt.Sprintf("candidate %d", i)).ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.svc.UpdateRequestStatus(ctx, alice, id, model.StatusActive)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if apperror.IsInvariant(err) {
				rejected++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, rejected)
	assert.Equal(t, int64(1), h.countRows(t, &store.RequestRecord{}, "user_id = ? AND status = ?", alice, string(model.StatusActive)))
}

func TestUpdateRequest_StatusPathIsGuarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r1 := h.create(t, alice, "R1")
	r2 := h.create(t, alice, "R2")

	_, err := h.svc.UpdateRequest(ctx, alice, r1.ID, model.UpdateRequestInput{Status: statusPtr(model.StatusActive)})
	require.NoError(t, err)

	_, err = h.svc.UpdateRequest(ctx, alice, r2.ID, model.UpdateRequestInput{Status: statusPtr(model.StatusActive)})
	requireKind(t, err, apperror.KindInvariant)
}

func TestUpdateRequest_RecordsTrackedDiff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := h.create(t, alice, "Old title")

	updated, err := h.svc.UpdateRequest(ctx, alice, req.ID, model.UpdateRequestInput{
		Title:       strPtr("New title"),
		Description: strPtr("New description"),
		Priority:    intPtr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "New description", updated.Description)
	assert.Equal(t, 1, updated.Priority)

	detail, err := h.svc.GetRequest(ctx, alice, req.ID)
	require.NoError(t, err)
	require.Len(t, detail.Activities, 2)

	diff, ok := detail.Activities[0].Meta.(model.UpdatedMeta)
	require.True(t, ok)
	assert.Len(t, diff, 2)
	assert.Equal(t, "Old title", diff["title"].From)
	assert.Equal(t, "New title", diff["title"].To)
	assert.Equal(t, float64(3), diff["priority"].From)
	assert.Equal(t, float64(1), diff["priority"].To)
}

func TestUpdateRequest_UntrackedChangeLogsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := h.create(t, alice, "same")

	_, err := h.svc.UpdateRequest(ctx, alice, req.ID, model.UpdateRequestInput{
		Description: strPtr("only the description"),
		PreviewURL:  strPtr("https://preview.example.com"),
	})
	require.NoError(t, err)

	detail, err := h.svc.GetRequest(ctx, alice, req.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Activities, 1)
	require.NotNil(t, detail.PreviewURL)
}

func TestUpdateRequest_InvalidPreviewURL(t *testing.T) {
	h := newHarness(t)
	req := h.create(t, alice, "x")

	_, err := h.svc.UpdateRequest(context.Background(), alice, req.ID, model.UpdateRequestInput{PreviewURL: strPtr("not a url")})
	appErr := requireKind(t, err, apperror.KindValidation)
	assert.Contains(t, appErr.Fields, "preview_url")
}

func TestUpdateRequest_ForeignRequestNotFound(t *testing.T) {
	h := newHarness(t)
	req := h.create(t, bob, "bob's")

	_, err := h.svc.UpdateRequest(context.Background(), alice, req.ID, model.UpdateRequestInput{Title: strPtr("hijack")})
	requireKind(t, err, apperror.KindNotFound)
}

func TestAddComment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t, alice, "commented")

	comment, err := h.svc.AddComment(ctx, alice, req.ID, model.AddCommentInput{Body: "Looks good"})
	require.NoError(t, err)
	assert.Equal(t, model.VisibilityPublic, comment.Visibility)
	require.NotNil(t, comment.Author)
	assert.Equal(t, alice, comment.Author.ID)

	detail, err := h.svc.GetRequest(ctx, alice, req.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, 1, detail.Counts.Comments)
	assert.Equal(t, model.CommentAddedMeta{CommentID: comment.ID}, detail.Activities[0].Meta)

	_, err = h.svc.AddComment(ctx, alice, req.ID, model.AddCommentInput{Body: ""})
	requireKind(t, err, apperror.KindValidation)

	_, err = h.svc.AddComment(ctx, bob, req.ID, model.AddCommentInput{Body: "sneaky"})
	requireKind(t, err, apperror.KindNotFound)
}

func TestAddAttachment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t, alice, "attached")

	att, err := h.svc.AddAttachment(ctx, alice, req.ID, model.AddAttachmentInput{URL: "https://figma.com/file/abc"})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultAttachmentKind, att.Kind)
	assert.Equal(t, alice, att.UploadedBy)

	detail, err := h.svc.GetRequest(ctx, alice, req.ID)
	require.NoError(t, err)
	require.Len(t, detail.Attachments, 1)
	assert.Equal(t, model.AttachmentAddedMeta{AttachmentID: att.ID, URL: "https://figma.com/file/abc"}, detail.Activities[0].Meta)

	_, err = h.svc.AddAttachment(ctx, alice, req.ID, model.AddAttachmentInput{URL: "figma.com/file"})
	requireKind(t, err, apperror.KindValidation)
}

func TestDeleteRequest_OnlyBacklog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, status := range []model.Status{model.StatusActive, model.StatusReview, model.StatusPaused, model.StatusDone, model.StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			req := h.create(t, bob, "not deletable")
			_, err := h.svc.UpdateRequestStatus(ctx, bob, req.ID, status)
			require.NoError(t, err)

			err = h.svc.DeleteRequest(ctx, bob, req.ID)
			appErr := requireKind(t, err, apperror.KindInvariant)
			assert.Equal(t, apperror.ErrDeleteNotBacklog, appErr.Message)

			got, err := h.svc.GetRequest(ctx, bob, req.ID)
			require.NoError(t, err)
			assert.Equal(t, status, got.Status)

			// Free the active slot for the next case.
			_, err = h.svc.UpdateRequestStatus(ctx, bob, req.ID, model.StatusDone)
			require.NoError(t, err)
		})
	}
}

func TestDeleteRequest_Backlog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := h.create(t, alice, "temporary")
	_, err := h.svc.AddComment(ctx, alice, req.ID, model.AddCommentInput{Body: "note"})
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteRequest(ctx, alice, req.ID))

	_, err = h.svc.GetRequest(ctx, alice, req.ID)
	requireKind(t, err, apperror.KindNotFound)
	assert.Zero(t, h.countRows(t, &store.ActivityRecord{}, "request_id = ?", req.ID))
	assert.Zero(t, h.countRows(t, &store.CommentRecord{}, "request_id = ?", req.ID))
}

func TestDeleteRequest_ForeignNotFound(t *testing.T) {
	h := newHarness(t)
	req := h.create(t, bob, "bob's")

	requireKind(t, h.svc.DeleteRequest(context.Background(), alice, req.ID), apperror.KindNotFound)
	assert.Equal(t, int64(1), h.countRows(t, &store.RequestRecord{}, "id = ?", req.ID))
}

func TestGetRequest_NotFoundIsIndistinguishable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	foreign := h.create(t, bob, "private")

	_, errForeign := h.svc.GetRequest(ctx, alice, foreign.ID)
	_, errMissing := h.svc.GetRequest(ctx, alice, uuid.Must(uuid.NewV7()).String())

	foreignErr := requireKind(t, errForeign, apperror.KindNotFound)
	missingErr := requireKind(t, errMissing, apperror.KindNotFound)
	assert.Equal(t, missingErr.Message, foreignErr.Message)
	assert.Equal(t, missingErr.Code, foreignErr.Code)
}

func TestReorderRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.create(t, alice, "a")
	b := h.create(t, alice, "b")
	c := h.create(t, alice, "c")

	require.NoError(t, h.svc.ReorderRequests(ctx, alice, []string{c.ID, a.ID, b.ID}))

	list, err := h.svc.GetUserRequests(ctx, alice)
	require.NoError(t, err)
	order := map[string]int{}
	for _, r := range list {
		order[r.ID] = r.OrderIndex
	}
	assert.Less(t, order[c.ID], order[a.ID])
	assert.Less(t, order[a.ID], order[b.ID])

}

func TestReorderRequests_SkipsUnknownIDs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.create(t, alice, "a")
	b := h.create(t, alice, "b")
	theirs := h.create(t, bob, "theirs")

	err := h.svc.ReorderRequests(ctx, alice, []string{b.ID, "not-a-uuid", theirs.ID, a.ID})
	require.NoError(t, err)

	gotB, err := h.svc.GetRequest(ctx, alice, b.ID)
	require.NoError(t, err)
	gotA, err := h.svc.GetRequest(ctx, alice, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotB.OrderIndex)
	assert.Equal(t, 4, gotA.OrderIndex)

	gotTheirs, err := h.svc.GetRequest(ctx, bob, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, theirs.OrderIndex, gotTheirs.OrderIndex)
}

func TestGetUserRequests_RetriesTransientFailures(t *testing.T) {
	h := newHarness(t)
	h.create(t, alice, "listed")
	h.repo.listFailures = 2

	list, err := h.svc.GetUserRequests(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetUserRequests_GivesUpAfterPolicy(t *testing.T) {
	h := newHarness(t)
	h.repo.listFailures = 3

	_, err := h.svc.GetUserRequests(context.Background(), alice)
	requireKind(t, err, apperror.KindDatabase)
}

// memoryCache records cache traffic.
type memoryCache struct {
	mu          sync.Mutex
	lists       map[string][]model.Request
	invalidated []string
}

func (m *memoryCache) GetRequests(_ context.Context, userID string) ([]model.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[userID]
	return l, ok
}

func (m *memoryCache) SetRequests(_ context.Context, userID string, reqs []model.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[userID] = reqs
}

func (m *memoryCache) Invalidate(_ context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lists, userID)
	m.invalidated = append(m.invalidated, userID)
}

func TestRequestService_CacheInvalidatedAfterMutation(t *testing.T) {
	h := newHarness(t)
	cache := &memoryCache{lists: map[string][]model.Request{}}
	svc := NewRequestService(h.repo, store.NewTransactionManager(h.db),
		activity.NewLogger(store.NewActivityRepository(h.db), nil, logger.Nop()),
		cache, nil, h.svc.opts, logger.Nop())
	ctx := context.Background()

	_, err := svc.CreateRequest(ctx, alice, model.CreateRequestInput{Title: "one", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{alice}, cache.invalidated)

	list, err := svc.GetUserRequests(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Served from cache even though the store now fails.
	h.repo.listFailures = 10
	list, err = svc.GetUserRequests(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// A rejected mutation leaves the cache alone.
	requireKind(t, svc.DeleteRequest(ctx, alice, uuid.NewString()), apperror.KindNotFound)
	assert.Len(t, cache.invalidated, 1)
}

func TestSubmit_WithoutSubtasksCreatesOriginal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.Submit(ctx, alice, model.SubmitInput{
		Title:       "Full website",
		Description: "Homepage, pricing, checkout and auth",
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Full website", created[0].Title)
	assert.Equal(t, "Homepage, pricing, checkout and auth", created[0].Description)
	assert.Equal(t, model.DefaultPriority, created[0].Priority)
}

func TestSubmit_WithSubtasksCreatesBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.Submit(ctx, alice, model.SubmitInput{
		Title:       "Full website",
		Description: "everything",
		Priority:    intPtr(2),
		Subtasks: []model.Subtask{
			{Title: "Homepage", Description: "Hero and footer"},
			{Title: "Pricing", Description: "Three tiers"},
		},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	for i, want := range []string{"Homepage", "Pricing"} {
		assert.Equal(t, want, created[i].Title)
		assert.Equal(t, 2, created[i].Priority)
		assert.Equal(t, i+1, created[i].OrderIndex)
	}
	assert.Zero(t, h.countRows(t, &store.RequestRecord{}, "title = ?", "Full website"))
}

func TestSubmit_ValidatesWholeSubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, alice, model.SubmitInput{
		Title:       "Full website",
		Description: "everything",
		Subtasks: []model.Subtask{
			{Title: "Homepage", Description: "Hero and footer"},
			{Title: "", Description: "Three tiers"},
		},
	})
	appErr := requireKind(t, err, apperror.KindValidation)
	assert.Contains(t, appErr.Fields, "subtasks[1].title")
	assert.NotContains(t, appErr.Fields, "requests[1].title")

	_, err = h.svc.Submit(ctx, alice, model.SubmitInput{
		Description: "everything",
		Subtasks: []model.Subtask{
			{Title: "Homepage", Description: "Hero and footer"},
			{Title: "Pricing", Description: "Three tiers"},
		},
	})
	appErr = requireKind(t, err, apperror.KindValidation)
	assert.Contains(t, appErr.Fields, "title")

	assert.Zero(t, h.countRows(t, &store.RequestRecord{}, "user_id = ?", alice))
}

func TestUpdateRequestStatus_IndexBacksUpActiveCheck(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.create(t, alice, "first")
	second := h.create(t, alice, "second")
	_, err := h.svc.UpdateRequestStatus(ctx, alice, first.ID, model.StatusActive)
	require.NoError(t, err)

	h.repo.blindActive = true

	_, err = h.svc.UpdateRequestStatus(ctx, alice, second.ID, model.StatusActive)
	appErr := requireKind(t, err, apperror.KindInvariant)
	assert.Equal(t, apperror.ErrActiveRequestExists, appErr.Message)

	_, err = h.svc.UpdateRequest(ctx, alice, second.ID, model.UpdateRequestInput{Status: statusPtr(model.StatusActive)})
	requireKind(t, err, apperror.KindInvariant)

	got, err := h.svc.GetRequest(ctx, alice, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBacklog, got.Status)
	assert.Zero(t, h.countRows(t, &store.ActivityRecord{}, "request_id = ? AND type = ?",
		second.ID, string(model.ActivityStatusChanged)))
	assert.Equal(t, int64(1), h.countRows(t, &store.RequestRecord{}, "user_id = ? AND status = ?",
		alice, string(model.StatusActive)))
}
