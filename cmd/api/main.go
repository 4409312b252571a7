// Package main is the entry point for the dashboard API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/uara/dashboard/internal/config"
	"github.com/uara/dashboard/internal/store"
	"github.com/uara/dashboard/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Customer dashboard API",
		Long:  `Serves the customer request dashboard: request lifecycle, sizing advice, and account settings.`,
		RunE:  runServe,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSizeCheckCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger and installs it globally.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	var (
		log *logger.Logger
		err error
	)
	if cfg.IsDevelopment() {
		log, err = logger.NewDevelopment()
	} else {
		log, err = logger.New(cfg.LogLevel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)
	return log, nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := store.Open(store.Config{
		Driver:          cfg.DatabaseDriver,
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
