// Package storage is the Postgres implementation of the booking stores.
package storage

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/ledger"
)

//go:embed schema.sql
var schemaSQL string

var (
	_ ledger.Store             = (*Repository)(nil)
	_ catalog.Store            = (*Repository)(nil)
	_ availability.WindowStore = (*Repository)(nil)
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate applies the idempotent schema. Fine for a single service owning its database; a
// migration tool takes over once the schema needs to evolve in place.
func Migrate(ctx context.Context, pool *db.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
