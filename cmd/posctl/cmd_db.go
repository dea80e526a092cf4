package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"posgo/backend/internal/config"
	"posgo/backend/internal/logger"
	"posgo/backend/internal/store"
	"posgo/backend/internal/store/memory"
	pgstore "posgo/backend/internal/store/postgres"
)

var errNoDatabase = errors.New("DATABASE_URL is not set; pass --demo to use the in-memory store")

// bootStore loads config and opens the selected data store. The returned
// closer is always safe to call.
func bootStore(ctx context.Context) (store.DataStore, func(), *zap.Logger, error) {
	cfg := config.Load()
	zl, err := logger.New(cfg.AppEnv)
	if err != nil {
		return nil, nil, nil, err
	}
	if demoMode {
		return memory.NewSeeded(zl, memory.WithSnapshot(cfg.DemoSnapshotPath)), func() {}, zl, nil
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, errNoDatabase
	}
	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pg, func() { _ = pg.Close() }, zl, nil
}

// posctl migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		data, closeFn, _, err := bootStore(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		pg, ok := data.(*pgstore.Store)
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "in-memory store needs no migration")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Applying schema...")
		return pg.Migrate(ctx)
	},
}
