package main

import (
	"github.com/spf13/cobra"

	"github.com/uara/dashboard/internal/config"
	"github.com/uara/dashboard/internal/store"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  `Apply all pending schema migrations to the configured database and exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer store.Close(db)

			return store.Migrate(db, log.Logger)
		},
	}
}
