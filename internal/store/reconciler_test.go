package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colby-usm/GrantGuru/internal/db"
	"github.com/colby-usm/GrantGuru/internal/model"
	"github.com/colby-usm/GrantGuru/internal/store"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func newTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	gdb, err := db.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	s, err := store.NewGormStore(gdb)
	require.NoError(t, err)
	return s
}

func strp(s string) *string { return &s }
func i64p(v int64) *int64   { return &v }

func grant(number, title string) model.CleanedRecord {
	rec := model.CleanedRecord{
		Title:         title,
		Description:   "desc " + title,
		ResearchField: "Health",
		Link:          "https://www.grants.gov/",
	}
	if number != "" {
		rec.OpportunityNumber = strp(number)
	}
	return rec
}

func byNumber(t *testing.T, s store.Store) map[string]model.StoredRecord {
	t.Helper()
	all, err := s.List(context.Background())
	require.NoError(t, err)
	out := make(map[string]model.StoredRecord, len(all))
	for _, r := range all {
		out[r.NaturalKey()] = r
	}
	return out
}

var errInjected = errors.New("injected write failure")

// failingStore fails the failAt-th write (insert or update) of a transaction.
type failingStore struct {
	store.Store
	failAt int
}

func (f *failingStore) BeginTx(ctx context.Context) (store.Tx, error) {
	tx, err := f.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, failAt: f.failAt}, nil
}

type failingTx struct {
	store.Tx
	writes int
	failAt int
}

func (t *failingTx) Insert(ctx context.Context, rec *model.StoredRecord) error {
	t.writes++
	if t.writes == t.failAt {
		return errInjected
	}
	return t.Tx.Insert(ctx, rec)
}

func (t *failingTx) Update(ctx context.Context, rec *model.StoredRecord) error {
	t.writes++
	if t.writes == t.failAt {
		return errInjected
	}
	return t.Tx.Update(ctx, rec)
}

// ── Insert / update ──────────────────────────────────────────────────────────

func TestApply_InsertsNewRecords(t *testing.T) {
	s := newTestStore(t)
	r := store.NewReconciler(s)

	res, err := r.Apply(t.Context(), []model.CleanedRecord{grant("A-1", "one"), grant("B-2", "two")})
	require.NoError(t, err)
	assert.Equal(t, store.Result{Inserted: 2}, res)
	assert.Equal(t, 2, res.Applied())

	n, err := s.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, rec := range byNumber(t, s) {
		_, err := uuid.Parse(rec.ID)
		assert.NoError(t, err, "surrogate id is a uuid")
	}
}

func TestApply_UpdatesInPlaceAndKeepsID(t *testing.T) {
	s := newTestStore(t)
	r := store.NewReconciler(s)

	_, err := r.Apply(t.Context(), []model.CleanedRecord{grant("A-1", "original")})
	require.NoError(t, err)
	before := byNumber(t, s)["A-1"]

	changed := grant("A-1", "revised")
	changed.AwardMaxAmount = i64p(500000)
	res, err := r.Apply(t.Context(), []model.CleanedRecord{changed})
	require.NoError(t, err)
	assert.Equal(t, store.Result{Updated: 1}, res)

	after := byNumber(t, s)["A-1"]
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "revised", after.Title)
	require.NotNil(t, after.AwardMaxAmount)
	assert.Equal(t, int64(500000), *after.AwardMaxAmount)
}

func TestApply_Idempotent(t *testing.T) {
	s := newTestStore(t)
	r := store.NewReconciler(s)
	batch := []model.CleanedRecord{grant("A-1", "one"), grant("B-2", "two"), grant("C-3", "three")}

	_, err := r.Apply(t.Context(), batch)
	require.NoError(t, err)
	first := byNumber(t, s)

	res, err := r.Apply(t.Context(), batch)
	require.NoError(t, err)
	assert.Equal(t, store.Result{Updated: 3}, res)

	second := byNumber(t, s)
	require.Len(t, second, 3)
	for key, rec := range first {
		assert.Equal(t, rec.ID, second[key].ID)
		assert.Equal(t, rec.CleanedRecord, second[key].CleanedRecord)
	}
}

func TestApply_LastWriteWinsWithinBatch(t *testing.T) {
	s := newTestStore(t)
	r := store.NewReconciler(s)

	res, err := r.Apply(t.Context(), []model.CleanedRecord{
		grant("A-1", "first"),
		grant("B-2", "other"),
		grant("A-1", "second"),
	})
	require.NoError(t, err)
	assert.Equal(t, store.Result{Inserted: 2, Updated: 1}, res)

	got := byNumber(t, s)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got["A-1"].Title)
}

func TestApply_RecordsWithoutNumberAreInsertOnly(t *testing.T) {
	s := newTestStore(t)
	r := store.NewReconciler(s)
	batch := []model.CleanedRecord{grant("", "anon"), grant("", "anon")}

	_, err := r.Apply(t.Context(), batch)
	require.NoError(t, err)
	res, err := r.Apply(t.Context(), batch)
	require.NoError(t, err)
	assert.Equal(t, store.Result{Inserted: 2}, res)

	n, err := s.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestApply_EmptyBatchIsNoop(t *testing.T) {
	s := newTestStore(t)
	res, err := store.NewReconciler(s).Apply(t.Context(), nil)
	require.NoError(t, err)
	assert.Zero(t, res)
}

// ── Atomicity ────────────────────────────────────────────────────────────────

func TestApply_FailureRollsBackWholeBatch(t *testing.T) {
	s := newTestStore(t)
	r := store.NewReconciler(&failingStore{Store: s, failAt: 4})

	batch := []model.CleanedRecord{
		grant("A-1", "a"), grant("B-2", "b"), grant("C-3", "c"), grant("D-4", "d"), grant("E-5", "e"),
	}
	res, err := r.Apply(t.Context(), batch)
	require.Error(t, err)
	assert.Zero(t, res)

	var batchErr *store.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 3, batchErr.Index)
	assert.Equal(t, "D-4", batchErr.OpportunityNumber)
	assert.Equal(t, "insert", batchErr.Op)
	assert.ErrorIs(t, err, errInjected)

	n, err := s.Count(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n, "no record of the failed batch is visible")
}

func TestApply_FailedUpdateLeavesPriorStateIntact(t *testing.T) {
	s := newTestStore(t)
	_, err := store.NewReconciler(s).Apply(t.Context(), []model.CleanedRecord{grant("A-1", "kept")})
	require.NoError(t, err)

	r := store.NewReconciler(&failingStore{Store: s, failAt: 2})
	_, err = r.Apply(t.Context(), []model.CleanedRecord{grant("B-2", "new"), grant("A-1", "lost")})
	var batchErr *store.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, "update", batchErr.Op)

	got := byNumber(t, s)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got["A-1"].Title)
}

func TestApply_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := store.NewReconciler(s).Apply(ctx, []model.CleanedRecord{grant("A-1", "a")})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// ── Round trip & purge ───────────────────────────────────────────────────────

func TestGormStore_RoundTripsDatesAndContact(t *testing.T) {
	s := newTestStore(t)
	rec := grant("A-1", "dated")
	rec.Provider = strp("NIH")
	rec.ExpectedAwardCount = i64p(3)
	rec.PointOfContact = model.PointOfContact{Name: strp("Jane Doe"), Email: strp("jane@example.gov")}
	rec.Dates = model.Dates{
		PostingDate:     strp("2025-11-17 00:00:00"),
		ArchiveDate:     strp("2026-03-01 12:30:00"),
		LastUpdatedDate: strp("2025-11-18 09:15:00"),
	}

	_, err := store.NewReconciler(s).Apply(t.Context(), []model.CleanedRecord{rec})
	require.NoError(t, err)

	got := byNumber(t, s)["A-1"]
	assert.Equal(t, rec, got.CleanedRecord)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGormStore_PurgeArchived(t *testing.T) {
	s := newTestStore(t)
	old := grant("OLD", "old")
	old.Dates.ArchiveDate = strp("2024-01-01 00:00:00")
	future := grant("NEW", "new")
	future.Dates.ArchiveDate = strp("2030-01-01 00:00:00")
	undated := grant("NONE", "none")

	_, err := store.NewReconciler(s).Apply(t.Context(), []model.CleanedRecord{old, future, undated})
	require.NoError(t, err)

	removed, err := s.PurgeArchived(t.Context(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got := byNumber(t, s)
	assert.NotContains(t, got, "OLD")
	assert.Contains(t, got, "NEW")
	assert.Contains(t, got, "NONE")
}

func TestBatchError_Message(t *testing.T) {
	err := &store.BatchError{Index: 2, Op: "insert", Err: errInjected}
	assert.Equal(t, "record 2 (opportunity <none>): insert: injected write failure", err.Error())
	assert.ErrorIs(t, err, errInjected)
}
