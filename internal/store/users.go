package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uara/dashboard/internal/model"
)

// UserRepository persists customers and their settings.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure inserts the user and default settings unless they already exist,
// refreshing profile fields for an existing user. created reports whether the
// user row was new.
func (r *UserRepository) Ensure(ctx context.Context, id model.Identity) (*model.User, bool, error) {
	tx := conn(ctx, r.db)
	now := time.Now().UTC()

	rec := &UserRecord{
		ID:        id.UserID,
		Email:     id.Email,
		Name:      id.Name,
		AvatarURL: id.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", result.Error)
	}
	created := result.RowsAffected > 0

	if !created {
		updates := map[string]any{}
		if id.Email != "" {
			updates["email"] = id.Email
		}
		if id.Name != "" {
			updates["name"] = id.Name
		}
		if id.AvatarURL != "" {
			updates["avatar_url"] = id.AvatarURL
		}
		if len(updates) > 0 {
			if err := tx.Model(&UserRecord{}).Where("id = ?", id.UserID).Updates(updates).Error; err != nil {
				return nil, false, fmt.Errorf("failed to refresh user: %w", err)
			}
		}
	}

	defaults := model.DefaultSettings(id.UserID)
	settings := &SettingsRecord{
		UserID:          defaults.UserID,
		NotifyOnStatus:  defaults.NotifyOnStatus,
		NotifyOnComment: defaults.NotifyOnComment,
		MarketingEmails: defaults.MarketingEmails,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(settings).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create default settings: %w", err)
	}

	var stored UserRecord
	if err := tx.Where("id = ?", id.UserID).Take(&stored).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load user: %w", err)
	}
	user := stored.toModel()
	return &user, created, nil
}

// GetSettings returns the user's settings.
func (r *UserRepository) GetSettings(ctx context.Context, userID string) (*model.Settings, error) {
	var rec SettingsRecord
	if err := conn(ctx, r.db).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	s := rec.toModel()
	return &s, nil
}

// UpsertSettings writes all notification preferences for the user.
func (r *UserRepository) UpsertSettings(ctx context.Context, s model.Settings) error {
	now := time.Now().UTC()
	rec := &SettingsRecord{
		UserID:          s.UserID,
		NotifyOnStatus:  s.NotifyOnStatus,
		NotifyOnComment: s.NotifyOnComment,
		MarketingEmails: s.MarketingEmails,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"notify_on_status", "notify_on_comment", "marketing_emails", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Delete removes the user, their settings, and every request they own with
// its children.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	tx := conn(ctx, r.db)

	owned := tx.Model(&RequestRecord{}).Select("id").Where("user_id = ?", userID)
	for _, child := range []any{&ActivityRecord{}, &AttachmentRecord{}, &CommentRecord{}} {
		if err := tx.Where("request_id IN (?)", owned).Delete(child).Error; err != nil {
			return fmt.Errorf("failed to delete request children: %w", err)
		}
	}
	if err := tx.Where("user_id = ?", userID).Delete(&RequestRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete requests: %w", err)
	}
	if err := tx.Where("user_id = ?", userID).Delete(&SettingsRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}

	result := tx.Where("id = ?", userID).Delete(&UserRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
