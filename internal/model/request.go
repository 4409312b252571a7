// Package model defines data structures for the customer dashboard.
package model

import (
	"time"
)

// Status is the lifecycle state of a work request.
type Status string

const (
	StatusBacklog  Status = "BACKLOG"
	StatusActive   Status = "ACTIVE"
	StatusReview   Status = "REVIEW"
	StatusDone     Status = "DONE"
	StatusPaused   Status = "PAUSED"
	StatusRejected Status = "REJECTED"
)

// Statuses lists every status in list display order.
var Statuses = []Status{
	StatusActive,
	StatusReview,
	StatusBacklog,
	StatusPaused,
	StatusDone,
	StatusRejected,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// DefaultPriority is assigned when a request is created without one.
const DefaultPriority = 3

// Request is one unit of customer-submitted work.
type Request struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	CreatedByID string     `json:"created_by_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Status      Status     `json:"status"`
	OrderIndex  int        `json:"order_index"`
	PreviewURL  *string    `json:"preview_url,omitempty"`
	ETA         *time.Time `json:"eta,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Populated on read.
	Comments    []Comment    `json:"comments"`
	Attachments []Attachment `json:"attachments"`
	Activities  []Activity   `json:"activities,omitempty"`
	CreatedBy   *UserSummary `json:"created_by,omitempty"`
	Counts      RequestCount `json:"counts"`
}

// RequestCount holds child row counts for a request.
type RequestCount struct {
	Comments    int `json:"comments"`
	Attachments int `json:"attachments"`
}

// CreateRequestInput is the input to create a single request.
type CreateRequestInput struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	Priority    *int   `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
}

// PriorityOrDefault returns the requested priority or DefaultPriority.
func (in CreateRequestInput) PriorityOrDefault() int {
	if in.Priority == nil {
		return DefaultPriority
	}
	return *in.Priority
}

// BulkCreateInput is the input to create several requests atomically.
type BulkCreateInput struct {
	Requests []CreateRequestInput `json:"requests" validate:"required,min=1,dive"`
}

// UpdateRequestInput carries the fields to change. Nil fields are left as is.
// An empty PreviewURL or a zero ETA clears the stored value.
type UpdateRequestInput struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description,omitempty" validate:"omitempty,min=1"`
	Priority    *int       `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
	Status      *Status    `json:"status,omitempty" validate:"omitempty,oneof=BACKLOG ACTIVE REVIEW DONE PAUSED REJECTED"`
	ETA         *time.Time `json:"eta,omitempty"`
	PreviewURL  *string    `json:"preview_url,omitempty"`
}

// UpdateStatusInput is the input to the dedicated status transition.
type UpdateStatusInput struct {
	Status Status `json:"status" validate:"required,oneof=BACKLOG ACTIVE REVIEW DONE PAUSED REJECTED"`
}

// ReorderInput lists backlog request ids in their new order. Ids that are not
// the caller's BACKLOG requests, malformed ones included, are skipped.
type ReorderInput struct {
	RequestIDs []string `json:"request_ids"`
}
