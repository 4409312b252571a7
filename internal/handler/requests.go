package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uara/dashboard/internal/middleware"
	"github.com/uara/dashboard/internal/model"
)

// RequestService is the request lifecycle as seen by HTTP.
type RequestService interface {
	CreateRequest(ctx context.Context, callerID string, in model.CreateRequestInput) (*model.Request, error)
	CreateBulkRequests(ctx context.Context, callerID string, in model.BulkCreateInput) ([]model.Request, error)
	Submit(ctx context.Context, callerID string, in model.SubmitInput) ([]model.Request, error)
	UpdateRequest(ctx context.Context, callerID, id string, in model.UpdateRequestInput) (*model.Request, error)
	UpdateRequestStatus(ctx context.Context, callerID, id string, status model.Status) (*model.Request, error)
	AddComment(ctx context.Context, callerID, requestID string, in model.AddCommentInput) (*model.Comment, error)
	AddAttachment(ctx context.Context, callerID, requestID string, in model.AddAttachmentInput) (*model.Attachment, error)
	DeleteRequest(ctx context.Context, callerID, id string) error
	ReorderRequests(ctx context.Context, callerID string, ids []string) error
	GetUserRequests(ctx context.Context, callerID string) ([]model.Request, error)
	GetRequest(ctx context.Context, callerID, id string) (*model.Request, error)
}

// RequestHandler handles request lifecycle endpoints.
type RequestHandler struct {
	service RequestService
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(svc RequestService) *RequestHandler {
	return &RequestHandler{service: svc}
}

// List handles GET /api/v1/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.service.GetUserRequests(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, reqs)
}

// Create handles POST /api/v1/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.CreateRequestInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.service.CreateRequest(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, req)
}

// CreateBulk handles POST /api/v1/requests/bulk
func (h *RequestHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var in model.BulkCreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	reqs, err := h.service.CreateBulkRequests(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, reqs)
}

// Reorder handles PUT /api/v1/requests/order
func (h *RequestHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var in model.ReorderInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ReorderRequests(r.Context(), middleware.GetUserID(r.Context()), in.RequestIDs); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"reordered": len(in.RequestIDs)})
}

// Get handles GET /api/v1/requests/{id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.GetRequest(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, req)
}

// Update handles PATCH /api/v1/requests/{id}
func (h *RequestHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in model.UpdateRequestInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.service.UpdateRequest(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, req)
}

// UpdateStatus handles PUT /api/v1/requests/{id}/status
func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var in model.UpdateStatusInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.service.UpdateRequestStatus(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, req)
}

// Delete handles DELETE /api/v1/requests/{id}
func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteRequest(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

// AddComment handles POST /api/v1/requests/{id}/comments
func (h *RequestHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var in model.AddCommentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.service.AddComment(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, comment)
}

// AddAttachment handles POST /api/v1/requests/{id}/attachments
func (h *RequestHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	var in model.AddAttachmentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	att, err := h.service.AddAttachment(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, att)
}
