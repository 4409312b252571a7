package model

import "time"

// Identity is the authenticated caller as asserted by the bearer token.
type Identity struct {
	UserID    string
	Email     string
	Name      string
	AvatarURL string
}

// User is a provisioned customer.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSummary is the display information attached to comments and activities.
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Summary returns the display subset of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, AvatarURL: u.AvatarURL}
}

// Settings holds a customer's notification preferences.
type Settings struct {
	UserID          string    `json:"user_id"`
	NotifyOnStatus  bool      `json:"notify_on_status"`
	NotifyOnComment bool      `json:"notify_on_comment"`
	MarketingEmails bool      `json:"marketing_emails"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultSettings returns the preferences a new customer starts with.
func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:          userID,
		NotifyOnStatus:  true,
		NotifyOnComment: true,
	}
}

// NotificationSettingsInput replaces all notification preferences.
type NotificationSettingsInput struct {
	NotifyOnStatus  *bool `json:"notify_on_status" validate:"required"`
	NotifyOnComment *bool `json:"notify_on_comment" validate:"required"`
	MarketingEmails *bool `json:"marketing_emails" validate:"required"`
}
