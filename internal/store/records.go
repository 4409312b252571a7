package store

import (
	"time"

	"gorm.io/datatypes"

	"github.com/uara/dashboard/internal/model"
)

// UserRecord is the users table row.
type UserRecord struct {
	ID        string `gorm:"primaryKey"`
	Email     string
	Name      string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserRecord) TableName() string { return "users" }

// SettingsRecord is the user_settings table row.
type SettingsRecord struct {
	UserID          string `gorm:"primaryKey"`
	NotifyOnStatus  bool
	NotifyOnComment bool
	MarketingEmails bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (SettingsRecord) TableName() string { return "user_settings" }

// RequestRecord is the requests table row.
type RequestRecord struct {
	ID          string `gorm:"primaryKey"`
	UserID      string
	CreatedByID string
	Title       string
	Description string
	Priority    int
	Status      string
	OrderIndex  int
	PreviewURL  *string
	ETA         *time.Time `gorm:"column:eta"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (RequestRecord) TableName() string { return "requests" }

// CommentRecord is the request_comments table row.
type CommentRecord struct {
	ID         string `gorm:"primaryKey"`
	RequestID  string
	AuthorID   string
	Body       string
	Visibility string
	CreatedAt  time.Time
}

func (CommentRecord) TableName() string { return "request_comments" }

// AttachmentRecord is the attachments table row.
type AttachmentRecord struct {
	ID         string `gorm:"primaryKey"`
	RequestID  string
	UserID     string
	URL        string `gorm:"column:url"`
	Kind       string
	UploadedBy string
	CreatedAt  time.Time
}

func (AttachmentRecord) TableName() string { return "attachments" }

// ActivityRecord is the activities table row. Meta holds the JSON encoding
// of the type's model.ActivityMeta variant.
type ActivityRecord struct {
	ID        string `gorm:"primaryKey"`
	RequestID string
	UserID    string
	ActorID   string
	Type      string
	Meta      datatypes.JSON
	CreatedAt time.Time
}

func (ActivityRecord) TableName() string { return "activities" }

func toRequestRecord(r *model.Request) *RequestRecord {
	return &RequestRecord{
		ID:          r.ID,
		UserID:      r.UserID,
		CreatedByID: r.CreatedByID,
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      string(r.Status),
		OrderIndex:  r.OrderIndex,
		PreviewURL:  r.PreviewURL,
		ETA:         r.ETA,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (rec *RequestRecord) toModel() model.Request {
	return model.Request{
		ID:          rec.ID,
		UserID:      rec.UserID,
		CreatedByID: rec.CreatedByID,
		Title:       rec.Title,
		Description: rec.Description,
		Priority:    rec.Priority,
		Status:      model.Status(rec.Status),
		OrderIndex:  rec.OrderIndex,
		PreviewURL:  rec.PreviewURL,
		ETA:         rec.ETA,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		Comments:    []model.Comment{},
		Attachments: []model.Attachment{},
	}
}

func (rec *CommentRecord) toModel() model.Comment {
	return model.Comment{
		ID:         rec.ID,
		RequestID:  rec.RequestID,
		AuthorID:   rec.AuthorID,
		Body:       rec.Body,
		Visibility: model.Visibility(rec.Visibility),
		CreatedAt:  rec.CreatedAt,
	}
}

func (rec *AttachmentRecord) toModel() model.Attachment {
	return model.Attachment{
		ID:         rec.ID,
		RequestID:  rec.RequestID,
		UserID:     rec.UserID,
		URL:        rec.URL,
		Kind:       rec.Kind,
		UploadedBy: rec.UploadedBy,
		CreatedAt:  rec.CreatedAt,
	}
}

func (rec *ActivityRecord) toModel() (model.Activity, error) {
	meta, err := model.DecodeActivityMeta(model.ActivityType(rec.Type), rec.Meta)
	if err != nil {
		return model.Activity{}, err
	}
	return model.Activity{
		ID:        rec.ID,
		RequestID: rec.RequestID,
		UserID:    rec.UserID,
		ActorID:   rec.ActorID,
		Type:      model.ActivityType(rec.Type),
		Meta:      meta,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (rec *UserRecord) toModel() model.User {
	return model.User{
		ID:        rec.ID,
		Email:     rec.Email,
		Name:      rec.Name,
		AvatarURL: rec.AvatarURL,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func (rec *SettingsRecord) toModel() model.Settings {
	return model.Settings{
		UserID:          rec.UserID,
		NotifyOnStatus:  rec.NotifyOnStatus,
		NotifyOnComment: rec.NotifyOnComment,
		MarketingEmails: rec.MarketingEmails,
		UpdatedAt:       rec.UpdatedAt,
	}
}
