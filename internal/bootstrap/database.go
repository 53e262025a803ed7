package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/accountgate/internal/config"
	"github.com/go-authgate/accountgate/internal/store"
)

const dbInitTimeout = 30 * time.Second

// initializeDatabase opens the store, runs migrations and seeds the default
// admin when one is configured
func initializeDatabase(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	var opts []store.Option
	if cfg.DefaultAdminEmail != "" {
		opts = append(opts, store.WithDefaultAdmin(cfg.DefaultAdminEmail, cfg.DefaultAdminPassword))
	}

	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbInitTimeout)
	defer cancel()
	if err := db.Health(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database is not reachable: %w", err)
	}

	log.Printf("Database initialized (driver: %s)", cfg.DatabaseDriver)
	return db, nil
}
