package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uara/dashboard/internal/apperror"
	"github.com/uara/dashboard/internal/model"
	"github.com/uara/dashboard/internal/store"
	"github.com/uara/dashboard/internal/validate"
	"github.com/uara/dashboard/pkg/logger"
)

// UserStore is the persistence for customers and their settings.
type UserStore interface {
	Ensure(ctx context.Context, id model.Identity) (*model.User, bool, error)
	GetSettings(ctx context.Context, userID string) (*model.Settings, error)
	UpsertSettings(ctx context.Context, s model.Settings) error
	Delete(ctx context.Context, userID string) error
}

// ProvisionMemoTTL bounds how long an instance trusts that a customer it
// provisioned still exists.
const ProvisionMemoTTL = time.Minute

// AccountService provisions customers and manages their settings.
type AccountService struct {
	users  UserStore
	tx     Transactor
	cache  ViewCache
	logger *logger.Logger

	// provisioned maps ids ensured by this process to the memo's expiry.
	provisioned sync.Map
	memoTTL     time.Duration
}

// NewAccountService creates a new AccountService. cache may be nil.
func NewAccountService(users UserStore, tx Transactor, cache ViewCache, log *logger.Logger) *AccountService {
	if cache == nil {
		cache = noCache{}
	}
	return &AccountService{users: users, tx: tx, cache: cache, logger: log, memoTTL: ProvisionMemoTTL}
}

// EnsureUser creates the customer with default settings on first sight.
func (s *AccountService) EnsureUser(ctx context.Context, id model.Identity) error {
	if id.UserID == "" {
		return apperror.Unauthorized("Missing user identity")
	}
	if v, ok := s.provisioned.Load(id.UserID); ok && time.Now().Before(v.(time.Time)) {
		return nil
	}

	var created bool
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		_, created, err = s.users.Ensure(ctx, id)
		return err
	})
	if err != nil {
		s.logger.Error("failed to provision user", zap.String("user_id", id.UserID), zap.Error(err))
		return apperror.Database(err)
	}

	s.provisioned.Store(id.UserID, time.Now().Add(s.memoTTL))
	if created {
		s.logger.Info("user provisioned", zap.String("user_id", id.UserID))
	}
	return nil
}

// Reprovision recreates a customer whose row is gone although this process
// still remembered it, as happens when another instance deleted the account.
// It runs inside the caller's transaction when ctx carries one. Profile
// fields are refreshed by the next EnsureUser.
func (s *AccountService) Reprovision(ctx context.Context, userID string) error {
	s.provisioned.Delete(userID)
	if _, _, err := s.users.Ensure(ctx, model.Identity{UserID: userID}); err != nil {
		return err
	}
	s.logger.Info("user reprovisioned", zap.String("user_id", userID))
	return nil
}

// GetSettings returns the customer's settings, creating defaults if missing.
func (s *AccountService) GetSettings(ctx context.Context, userID string) (*model.Settings, error) {
	settings, err := s.users.GetSettings(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("failed to get settings", zap.String("user_id", userID), zap.Error(err))
		return nil, apperror.Database(err)
	}

	defaults := model.DefaultSettings(userID)
	if err := s.users.UpsertSettings(ctx, defaults); err != nil {
		s.logger.Error("failed to create default settings", zap.String("user_id", userID), zap.Error(err))
		return nil, apperror.Database(err)
	}
	return s.reloadSettings(ctx, userID)
}

// UpdateNotificationSettings replaces the customer's notification preferences.
func (s *AccountService) UpdateNotificationSettings(ctx context.Context, userID string, in model.NotificationSettingsInput) (*model.Settings, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	settings := model.Settings{
		UserID:          userID,
		NotifyOnStatus:  *in.NotifyOnStatus,
		NotifyOnComment: *in.NotifyOnComment,
		MarketingEmails: *in.MarketingEmails,
	}
	if err := s.users.UpsertSettings(ctx, settings); err != nil {
		s.logger.Error("failed to update settings", zap.String("user_id", userID), zap.Error(err))
		return nil, apperror.Database(err)
	}

	s.logger.Info("notification settings updated", zap.String("user_id", userID))
	return s.reloadSettings(ctx, userID)
}

func (s *AccountService) reloadSettings(ctx context.Context, userID string) (*model.Settings, error) {
	settings, err := s.users.GetSettings(ctx, userID)
	if err != nil {
		return nil, apperror.Database(err)
	}
	return settings, nil
}

// DeleteAccount removes the customer and everything they own.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.users.Delete(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NotFound("Account")
		}
		s.logger.Error("failed to delete account", zap.String("user_id", userID), zap.Error(err))
		return apperror.Database(err)
	}

	s.provisioned.Delete(userID)
	s.cache.Invalidate(ctx, userID)
	s.logger.Info("account deleted", zap.String("user_id", userID))
	return nil
}
