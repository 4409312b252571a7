// Package storetest opens migrated in-memory databases for tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/uara/dashboard/internal/model"
	"github.com/uara/dashboard/internal/store"
)

// Open returns a fresh in-memory SQLite database with all migrations applied.
// The pool holds a single connection so every query sees the same database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := store.Open(store.Config{
		Driver:       store.DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetConnMaxLifetime(time.Duration(0))

	require.NoError(t, store.Migrate(db, zap.NewNop()))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SeedUser provisions a customer with default settings.
func SeedUser(t testing.TB, db *gorm.DB, id string) model.User {
	t.Helper()

	user, _, err := store.NewUserRepository(db).Ensure(context.Background(), model.Identity{
		UserID: id,
		Email:  id + "@example.com",
		Name:   "Customer " + id,
	})
	require.NoError(t, err)
	return *user
}
