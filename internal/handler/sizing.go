package handler

import (
	"context"
	"net/http"

	"github.com/uara/dashboard/internal/middleware"
	"github.com/uara/dashboard/internal/model"
	"github.com/uara/dashboard/internal/validate"
)

// Sizer judges whether a proposed request fits in one unit of work.
type Sizer interface {
	Assess(ctx context.Context, title, description string) model.SizeAssessment
}

// SizingHandler handles the analyze and submit endpoints.
type SizingHandler struct {
	sizer    Sizer
	requests RequestService
}

// NewSizingHandler creates a new sizing handler.
func NewSizingHandler(sizer Sizer, requests RequestService) *SizingHandler {
	return &SizingHandler{sizer: sizer, requests: requests}
}

// Analyze handles POST /api/v1/requests/analyze
func (h *SizingHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var in model.AnalyzeInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, h.sizer.Assess(r.Context(), in.Title, in.Description))
}

// Submit handles POST /api/v1/requests/submit
func (h *SizingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in model.SubmitInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	reqs, err := h.requests.Submit(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, reqs)
}
