package handler

import (
	"context"
	"net/http"

	"github.com/uara/dashboard/internal/middleware"
	"github.com/uara/dashboard/internal/model"
)

// AccountService manages the caller's account.
type AccountService interface {
	EnsureUser(ctx context.Context, id model.Identity) error
	GetSettings(ctx context.Context, userID string) (*model.Settings, error)
	UpdateNotificationSettings(ctx context.Context, userID string, in model.NotificationSettingsInput) (*model.Settings, error)
	DeleteAccount(ctx context.Context, userID string) error
}

// SettingsHandler handles settings and account endpoints.
type SettingsHandler struct {
	accounts AccountService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(accounts AccountService) *SettingsHandler {
	return &SettingsHandler{accounts: accounts}
}

// Get handles GET /api/v1/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.accounts.GetSettings(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, settings)
}

// UpdateNotifications handles PUT /api/v1/settings/notifications
func (h *SettingsHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var in model.NotificationSettingsInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	settings, err := h.accounts.UpdateNotificationSettings(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, settings)
}

// DeleteAccount handles DELETE /api/v1/account
func (h *SettingsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"deleted": true})
}
