package model

import "time"

// Visibility controls who can see a comment.
type Visibility string

const (
	VisibilityPublic   Visibility = "PUBLIC"
	VisibilityInternal Visibility = "INTERNAL"
)

// Comment is an immutable note on a request.
type Comment struct {
	ID         string       `json:"id"`
	RequestID  string       `json:"request_id"`
	AuthorID   string       `json:"author_id"`
	Body       string       `json:"body"`
	Visibility Visibility   `json:"visibility"`
	CreatedAt  time.Time    `json:"created_at"`
	Author     *UserSummary `json:"author,omitempty"`
}

// AddCommentInput is the input to add a comment.
type AddCommentInput struct {
	Body       string     `json:"body" validate:"required"`
	Visibility Visibility `json:"visibility,omitempty" validate:"omitempty,oneof=PUBLIC INTERNAL"`
}

// Attachment is an immutable link on a request.
type Attachment struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	UserID     string    `json:"user_id"`
	URL        string    `json:"url"`
	Kind       string    `json:"kind"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// DefaultAttachmentKind is used when no kind is given.
const DefaultAttachmentKind = "link"

// AddAttachmentInput is the input to add an attachment.
type AddAttachmentInput struct {
	URL  string `json:"url" validate:"required,url"`
	Kind string `json:"kind,omitempty" validate:"omitempty,max=50"`
}
