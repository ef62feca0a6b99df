package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/colby-usm/GrantGuru/internal/model"
)

// Result counts what one Apply call changed.
type Result struct {
	Inserted int
	Updated  int
}

// Applied is the number of records written.
func (r Result) Applied() int { return r.Inserted + r.Updated }

// Reconciler merges cleaned records into a Store, all-or-nothing per batch.
type Reconciler struct {
	store Store
	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

// NewReconciler returns a Reconciler writing to s.
func NewReconciler(s Store) *Reconciler {
	return &Reconciler{
		store: s,
		now:   time.Now,
		newID: uuid.NewString,
		log:   slog.Default().With("component", "reconciler"),
	}
}

// Apply writes records inside a single transaction. A record whose
// opportunity number is already stored replaces the stored fields in place
// and keeps its identifier; anything else is inserted under a fresh UUID.
// Records without an opportunity number are always inserted.
//
// Records are applied in order, so when a batch repeats a number the last
// occurrence wins. Any failure rolls the whole batch back and is reported
// as *BatchError.
func (r *Reconciler) Apply(ctx context.Context, records []model.CleanedRecord) (Result, error) {
	if len(records) == 0 {
		return Result{}, nil
	}

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.log.Warn("rollback failed", "err", rbErr)
		}
	}()

	var res Result
	for i, rec := range records {
		key := rec.NaturalKey()
		if err := ctx.Err(); err != nil {
			return Result{}, &BatchError{Index: i, OpportunityNumber: key, Op: "apply", Err: err}
		}
		now := r.now().UTC()

		if key != "" {
			existing, err := tx.FindByOpportunityNumber(ctx, key)
			switch {
			case err == nil:
				existing.CleanedRecord = rec
				existing.UpdatedAt = now
				if err := tx.Update(ctx, existing); err != nil {
					return Result{}, &BatchError{Index: i, OpportunityNumber: key, Op: "update", Err: err}
				}
				res.Updated++
				continue
			case !errors.Is(err, ErrNotFound):
				return Result{}, &BatchError{Index: i, OpportunityNumber: key, Op: "lookup", Err: err}
			}
		}

		stored := &model.StoredRecord{
			ID:            r.newID(),
			CleanedRecord: rec,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Insert(ctx, stored); err != nil {
			return Result{}, &BatchError{Index: i, OpportunityNumber: key, Op: "insert", Err: err}
		}
		res.Inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	committed = true

	r.log.Info("batch applied", "records", len(records), "inserted", res.Inserted, "updated", res.Updated)
	return res, nil
}
