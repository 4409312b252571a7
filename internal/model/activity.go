package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityType names a domain event recorded against a request.
type ActivityType string

const (
	ActivityCreated         ActivityType = "CREATED"
	ActivityUpdated         ActivityType = "UPDATED"
	ActivityStatusChanged   ActivityType = "STATUS_CHANGED"
	ActivityCommentAdded    ActivityType = "COMMENT_ADDED"
	ActivityAttachmentAdded ActivityType = "ATTACHMENT_ADDED"
	ActivitySystemEvent     ActivityType = "SYSTEM_EVENT"
)

// Activity is an append-only audit entry.
type Activity struct {
	ID        string       `json:"id"`
	RequestID string       `json:"request_id"`
	UserID    string       `json:"user_id"`
	ActorID   string       `json:"actor_id"`
	Type      ActivityType `json:"type"`
	Meta      ActivityMeta `json:"meta"`
	CreatedAt time.Time    `json:"created_at"`
	Actor     *UserSummary `json:"actor,omitempty"`
}

// ActivityMeta is the typed payload of an activity. Each variant belongs to
// exactly one ActivityType.
type ActivityMeta interface {
	ActivityType() ActivityType
}

// CreatedMeta is recorded when a request is created.
type CreatedMeta struct {
	Title      string `json:"title"`
	BulkCreate bool   `json:"bulkCreate,omitempty"`
}

func (CreatedMeta) ActivityType() ActivityType { return ActivityCreated }

// FieldChange is the before and after value of one field.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// UpdatedMeta maps each changed field name to its change.
type UpdatedMeta map[string]FieldChange

func (UpdatedMeta) ActivityType() ActivityType { return ActivityUpdated }

// StatusChangedMeta is recorded on a dedicated status transition.
type StatusChangedMeta struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

func (StatusChangedMeta) ActivityType() ActivityType { return ActivityStatusChanged }

// CommentAddedMeta is recorded when a comment is added.
type CommentAddedMeta struct {
	CommentID string `json:"commentId"`
}

func (CommentAddedMeta) ActivityType() ActivityType { return ActivityCommentAdded }

// AttachmentAddedMeta is recorded when an attachment is added.
type AttachmentAddedMeta struct {
	AttachmentID string `json:"attachmentId"`
	URL          string `json:"url"`
}

func (AttachmentAddedMeta) ActivityType() ActivityType { return ActivityAttachmentAdded }

// SystemEventMeta is a free-form event raised by staff tooling.
type SystemEventMeta struct {
	Event  string         `json:"event"`
	Detail map[string]any `json:"detail,omitempty"`
}

func (SystemEventMeta) ActivityType() ActivityType { return ActivitySystemEvent }

// DecodeActivityMeta parses an encoded payload into the variant for t.
func DecodeActivityMeta(t ActivityType, raw []byte) (ActivityMeta, error) {
	var (
		meta ActivityMeta
		err  error
	)
	switch t {
	case ActivityCreated:
		var m CreatedMeta
		err = unmarshalMeta(raw, &m)
		meta = m
	case ActivityUpdated:
		m := UpdatedMeta{}
		err = unmarshalMeta(raw, &m)
		meta = m
	case ActivityStatusChanged:
		var m StatusChangedMeta
		err = unmarshalMeta(raw, &m)
		meta = m
	case ActivityCommentAdded:
		var m CommentAddedMeta
		err = unmarshalMeta(raw, &m)
		meta = m
	case ActivityAttachmentAdded:
		var m AttachmentAddedMeta
		err = unmarshalMeta(raw, &m)
		meta = m
	case ActivitySystemEvent:
		var m SystemEventMeta
		err = unmarshalMeta(raw, &m)
		meta = m
	default:
		return nil, fmt.Errorf("unknown activity type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s meta: %w", t, err)
	}
	return meta, nil
}

func unmarshalMeta(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
