// Package store persists cleaned grants. The Reconciler drives a Store
// through one transaction per batch; PostgresStore (pgx) is the production
// backend and GormStore (sqlite) serves local runs and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/colby-usm/GrantGuru/internal/model"
)

// ErrNotFound is returned when no grant carries the requested opportunity number.
var ErrNotFound = errors.New("grant not found")

// ErrConflict is returned when a write collides with an existing natural key.
var ErrConflict = errors.New("opportunity number already stored")

// Store is the persistent grant collection.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]model.StoredRecord, error)
	// PurgeArchived deletes grants whose archive date is strictly before
	// the cutoff and returns how many were removed.
	PurgeArchived(ctx context.Context, before time.Time) (int64, error)
}

// Tx is a unit of work. Reads through a Tx observe its own earlier writes.
type Tx interface {
	FindByOpportunityNumber(ctx context.Context, number string) (*model.StoredRecord, error)
	Insert(ctx context.Context, rec *model.StoredRecord) error
	Update(ctx context.Context, rec *model.StoredRecord) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// BatchError identifies the record that aborted a batch.
type BatchError struct {
	Index             int
	OpportunityNumber string
	Op                string
	Err               error
}

func (e *BatchError) Error() string {
	key := e.OpportunityNumber
	if key == "" {
		key = "<none>"
	}
	return fmt.Sprintf("record %d (opportunity %s): %s: %v", e.Index, key, e.Op, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
