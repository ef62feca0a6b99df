package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colby-usm/GrantGuru/internal/db"
	"github.com/colby-usm/GrantGuru/internal/ingest"
	"github.com/colby-usm/GrantGuru/internal/model"
	"github.com/colby-usm/GrantGuru/internal/normalize"
	"github.com/colby-usm/GrantGuru/internal/scraper"
	"github.com/colby-usm/GrantGuru/internal/store"
)

// ── Mocks ────────────────────────────────────────────────────────────────────

type mockDiscoverer struct {
	DiscoverFunc func(ctx context.Context, f model.Filter) ([]string, error)
	calls        int
}

func (m *mockDiscoverer) Discover(ctx context.Context, f model.Filter) ([]string, error) {
	m.calls++
	return m.DiscoverFunc(ctx, f)
}

type mockFetcher struct {
	FetchFunc func(ctx context.Context, id string) (model.RawRecord, error)

	mu    sync.Mutex
	ids   []string
	times []time.Time
}

func (m *mockFetcher) Fetch(ctx context.Context, id string) (model.RawRecord, error) {
	m.mu.Lock()
	m.ids = append(m.ids, id)
	m.times = append(m.times, time.Now())
	m.mu.Unlock()
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, id)
	}
	return rawGrant(id), nil
}

type mockReconciler struct {
	ApplyFunc func(ctx context.Context, recs []model.CleanedRecord) (store.Result, error)
	batches   [][]model.CleanedRecord
}

func (m *mockReconciler) Apply(ctx context.Context, recs []model.CleanedRecord) (store.Result, error) {
	m.batches = append(m.batches, recs)
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, recs)
	}
	return store.Result{Inserted: len(recs)}, nil
}

type mockRecorder struct {
	reports []ingest.Report
	errs    []error
}

func (m *mockRecorder) ObserveRun(r ingest.Report, err error) {
	m.reports = append(m.reports, r)
	m.errs = append(m.errs, err)
}

// ── Fixtures ─────────────────────────────────────────────────────────────────

var fixedNow = time.Date(2025, 11, 20, 15, 0, 0, 0, time.UTC)

func testCleaner() *normalize.Cleaner {
	return &normalize.Cleaner{Now: func() time.Time { return fixedNow }}
}

func idList(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 100+i)
	}
	return ids
}

func discovering(ids []string) *mockDiscoverer {
	return &mockDiscoverer{DiscoverFunc: func(context.Context, model.Filter) ([]string, error) { return ids, nil }}
}

func rawGrant(id string) model.RawRecord {
	return model.RawRecord{
		"id":                id,
		"opportunityNumber": "OPP-" + id,
		"opportunityTitle":  "Grant " + id,
		"synopsis": map[string]any{
			"agencyName":      "National Institutes of Health",
			"synopsisDesc":    "Research funding",
			"lastUpdatedDate": "Nov 18, 2025 09:00:00 AM EST",
		},
	}
}

// ── Partial failure ──────────────────────────────────────────────────────────

func TestIngest_FetchFailuresAreCountedNotFatal(t *testing.T) {
	ids := idList(10)
	fetcher := &mockFetcher{FetchFunc: func(_ context.Context, id string) (model.RawRecord, error) {
		if id == ids[4] {
			return nil, &scraper.TransportError{Op: "detail", StatusCode: 500, Err: errors.New("boom")}
		}
		return rawGrant(id), nil
	}}
	rec := &mockReconciler{}
	o := ingest.New(discovering(ids), fetcher, testCleaner(), rec, ingest.Options{})

	rep, err := o.Ingest(t.Context(), model.Filter{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 10, rep.Discovered)
	assert.Equal(t, 9, rep.Fetched)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, []string{ids[4]}, rep.FailedIDs)
	assert.Equal(t, 9, rep.Cleaned)
	assert.Equal(t, 9, rep.Applied)
	assert.Equal(t, ingest.StageDone, rep.Stage)
	require.Len(t, rec.batches, 1)
	assert.Len(t, rec.batches[0], 9)
	assert.Equal(t, ids, fetcher.ids, "every identifier attempted once, in order")
}

func TestIngest_NoDataCountsAsFailed(t *testing.T) {
	fetcher := &mockFetcher{FetchFunc: func(context.Context, string) (model.RawRecord, error) {
		return nil, scraper.ErrNoData
	}}
	rec := &mockReconciler{}
	o := ingest.New(discovering(idList(3)), fetcher, testCleaner(), rec, ingest.Options{})

	rep, err := o.Ingest(t.Context(), model.Filter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Fetched)
	assert.Equal(t, 3, rep.Failed)
	assert.Empty(t, rec.batches, "nothing cleaned, reconcile skipped")
	assert.Equal(t, ingest.StageDone, rep.Stage)
}

// ── Short circuits ───────────────────────────────────────────────────────────

func TestIngest_EmptyDiscoveryShortCircuits(t *testing.T) {
	fetcher := &mockFetcher{}
	rec := &mockReconciler{}
	o := ingest.New(discovering(nil), fetcher, testCleaner(), rec, ingest.Options{})

	rep, err := o.Ingest(t.Context(), model.Filter{Categories: []string{"HL"}}, nil)
	require.NoError(t, err)
	assert.Zero(t, rep.Fetched)
	assert.Zero(t, rep.Failed)
	assert.Zero(t, rep.Applied)
	assert.Equal(t, ingest.StageDone, rep.Stage)
	assert.Empty(t, fetcher.ids)
	assert.Empty(t, rec.batches)
}

func TestIngest_DiscoveryErrorAborts(t *testing.T) {
	upstream := &scraper.UpstreamError{Code: 7, Msg: "maintenance"}
	d := &mockDiscoverer{DiscoverFunc: func(context.Context, model.Filter) ([]string, error) { return nil, upstream }}
	fetcher := &mockFetcher{}
	o := ingest.New(d, fetcher, testCleaner(), &mockReconciler{}, ingest.Options{})

	rep, err := o.Ingest(t.Context(), model.Filter{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, ingest.StageFailed, rep.Stage)
	assert.Empty(t, fetcher.ids)
}

func TestIngest_RecencyWindowFiltersEverything(t *testing.T) {
	rec := &mockReconciler{}
	o := ingest.New(discovering(idList(2)), &mockFetcher{}, testCleaner(), rec, ingest.Options{})

	zero := 0
	rep, err := o.Ingest(t.Context(), model.Filter{}, &zero)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Fetched)
	assert.Equal(t, 2, rep.Filtered)
	assert.Zero(t, rep.Cleaned)
	assert.Empty(t, rec.batches)
}

func TestIngest_RecencyWindowKeepsRecent(t *testing.T) {
	rec := &mockReconciler{}
	o := ingest.New(discovering(idList(2)), &mockFetcher{}, testCleaner(), rec, ingest.Options{})

	week := 7
	rep, err := o.Ingest(t.Context(), model.Filter{}, &week)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Cleaned)
	assert.Equal(t, 2, rep.Applied)
}

// ── Reconcile failure ────────────────────────────────────────────────────────

func TestIngest_ReconcileErrorKeepsFetchCounts(t *testing.T) {
	batchErr := &store.BatchError{Index: 1, Op: "insert", Err: errors.New("disk full")}
	rec := &mockReconciler{ApplyFunc: func(context.Context, []model.CleanedRecord) (store.Result, error) {
		return store.Result{}, batchErr
	}}
	recorder := &mockRecorder{}
	o := ingest.New(discovering(idList(3)), &mockFetcher{}, testCleaner(), rec, ingest.Options{}).WithRecorder(recorder)

	rep, err := o.Ingest(t.Context(), model.Filter{}, nil)
	require.Error(t, err)
	var got *store.BatchError
	require.ErrorAs(t, err, &got)

	assert.Equal(t, 3, rep.Fetched)
	assert.Zero(t, rep.Applied)
	assert.Equal(t, ingest.StageFailed, rep.Stage)

	require.Len(t, recorder.reports, 1)
	assert.Equal(t, rep, recorder.reports[0])
	assert.ErrorIs(t, recorder.errs[0], batchErr)
}

// ── Options ──────────────────────────────────────────────────────────────────

func TestIngest_LimitCapsFetches(t *testing.T) {
	fetcher := &mockFetcher{}
	o := ingest.New(discovering(idList(10)), fetcher, testCleaner(), &mockReconciler{}, ingest.Options{Limit: 3})

	rep, err := o.Ingest(t.Context(), model.Filter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Discovered)
	assert.Equal(t, 3, rep.Fetched)
	assert.Equal(t, []string{"100", "101", "102"}, fetcher.ids)
}

func TestIngest_ExcludeTermsFilter(t *testing.T) {
	fetcher := &mockFetcher{FetchFunc: func(_ context.Context, id string) (model.RawRecord, error) {
		raw := rawGrant(id)
		if id == "101" {
			raw["opportunityTitle"] = "Tobacco Control Research"
		}
		return raw, nil
	}}
	rec := &mockReconciler{}
	o := ingest.New(discovering(idList(3)), fetcher, testCleaner(), rec, ingest.Options{ExcludeTerms: []string{"tobacco"}})

	rep, err := o.Ingest(t.Context(), model.Filter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Filtered)
	assert.Equal(t, 2, rep.Cleaned)
	for _, c := range rec.batches[0] {
		assert.NotContains(t, c.Title, "Tobacco")
	}
}

func TestIngest_PacesDetailRequests(t *testing.T) {
	const delay = 40 * time.Millisecond
	fetcher := &mockFetcher{}
	o := ingest.New(discovering(idList(4)), fetcher, testCleaner(), &mockReconciler{}, ingest.Options{Delay: delay})

	_, err := o.Ingest(t.Context(), model.Filter{}, nil)
	require.NoError(t, err)

	require.Len(t, fetcher.times, 4)
	for i := 1; i < len(fetcher.times); i++ {
		gap := fetcher.times[i].Sub(fetcher.times[i-1])
		assert.GreaterOrEqual(t, gap, delay-5*time.Millisecond, "gap %d", i)
	}
}

func TestIngest_CancelledDuringPacingAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	fetcher := &mockFetcher{FetchFunc: func(_ context.Context, id string) (model.RawRecord, error) {
		cancel()
		return rawGrant(id), nil
	}}
	rec := &mockReconciler{}
	o := ingest.New(discovering(idList(5)), fetcher, testCleaner(), rec, ingest.Options{Delay: time.Hour})

	rep, err := o.Ingest(ctx, model.Filter{}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, rep.Fetched)
	assert.Equal(t, ingest.StageFailed, rep.Stage)
	assert.Empty(t, rec.batches)
}

// ── End to end with a real store ─────────────────────────────────────────────

func TestIngest_IdempotentAgainstStore(t *testing.T) {
	gdb, err := db.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	s, err := store.NewGormStore(gdb)
	require.NoError(t, err)

	o := ingest.New(discovering(idList(5)), &mockFetcher{}, testCleaner(), store.NewReconciler(s), ingest.Options{})

	first, err := o.Ingest(t.Context(), model.Filter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Inserted)

	second, err := o.Ingest(t.Context(), model.Filter{}, nil)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 5, second.Updated)

	n, err := s.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
