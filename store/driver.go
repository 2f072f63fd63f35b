package store

import (
	"context"
	"database/sql"
	"time"
)

// Driver is an interface for store driver.
// It contains all methods that a store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Fact model related methods.
	CreateFact(ctx context.Context, create *Fact) (*Fact, error)
	GetFact(ctx context.Context, id int64) (*Fact, error)
	ListFacts(ctx context.Context, find *FindFact) ([]*Fact, error)
	CountFacts(ctx context.Context, find *FindFact) (int, error)

	// UpdateFact applies a partial update as a single atomic write.
	// Returns false when the fact is missing or inactive.
	UpdateFact(ctx context.Context, update *UpdateFact) (bool, error)

	// DeactivateFact soft-deletes a fact. Returns false when the fact is
	// missing or already inactive.
	DeactivateFact(ctx context.Context, id int64) (bool, error)

	// MarkFactsUsed sets last_used and increments use_count for every
	// existing id in one statement. Unknown ids are silently skipped.
	MarkFactsUsed(ctx context.Context, ids []int64, now time.Time) error
}
