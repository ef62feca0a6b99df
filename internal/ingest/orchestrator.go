// Package ingest runs one ingestion pass end to end: discover identifiers,
// fetch each detail record at a paced rate, clean, then reconcile the
// cleaned batch into storage.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/colby-usm/GrantGuru/internal/model"
	"github.com/colby-usm/GrantGuru/internal/normalize"
	"github.com/colby-usm/GrantGuru/internal/scraper"
	"github.com/colby-usm/GrantGuru/internal/store"
)

// Discoverer lists the identifiers matching a filter.
type Discoverer interface {
	Discover(ctx context.Context, filter model.Filter) ([]string, error)
}

// Fetcher retrieves one raw detail record.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (model.RawRecord, error)
}

// Reconciler persists a cleaned batch atomically.
type Reconciler interface {
	Apply(ctx context.Context, records []model.CleanedRecord) (store.Result, error)
}

// Recorder observes finished runs.
type Recorder interface {
	ObserveRun(r Report, err error)
}

// Options tune a run.
type Options struct {
	// Delay is the minimum spacing between detail requests. Zero disables pacing.
	Delay time.Duration
	// Limit caps how many discovered identifiers are fetched. Zero means all.
	Limit int
	// ExcludeTerms drop cleaned records mentioning any term.
	ExcludeTerms []string
}

// Report summarises one run. Fetched + Failed equals the number of
// identifiers attempted; Cleaned is what reached reconciliation.
type Report struct {
	Discovered int           `json:"discovered"`
	Fetched    int           `json:"fetched"`
	Failed     int           `json:"failed"`
	FailedIDs  []string      `json:"failed_ids,omitempty"`
	Cleaned    int           `json:"cleaned"`
	Filtered   int           `json:"filtered"`
	Applied    int           `json:"applied"`
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Stage      Stage         `json:"stage"`
	Duration   time.Duration `json:"duration"`
}

// Orchestrator wires the pipeline stages together. It holds no per-run
// state and is safe to reuse sequentially.
type Orchestrator struct {
	discoverer Discoverer
	fetcher    Fetcher
	cleaner    *normalize.Cleaner
	reconciler Reconciler
	opts       Options
	recorder   Recorder
	log        *slog.Logger
}

// New constructs an Orchestrator. A nil cleaner selects the wall-clock default.
func New(d Discoverer, f Fetcher, c *normalize.Cleaner, r Reconciler, opts Options) *Orchestrator {
	if c == nil {
		c = normalize.NewCleaner()
	}
	return &Orchestrator{
		discoverer: d,
		fetcher:    f,
		cleaner:    c,
		reconciler: r,
		opts:       opts,
		log:        slog.Default().With("component", "ingest"),
	}
}

// WithRecorder attaches a run observer, typically the metrics registry.
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	o.recorder = r
	return o
}

// Ingest runs the pipeline once. A nil lookbackDays disables the recency
// window. Individual fetch failures are counted, not fatal; a discovery or
// reconciliation failure aborts the run. The report is always returned,
// populated as far as the run got.
func (o *Orchestrator) Ingest(ctx context.Context, filter model.Filter, lookbackDays *int) (rep Report, err error) {
	start := time.Now()
	rep.Stage = StageDiscovering
	defer func() {
		rep.Duration = time.Since(start)
		if err != nil {
			rep.advance(StageFailed)
		}
		if o.recorder != nil {
			o.recorder.ObserveRun(rep, err)
		}
	}()

	o.log.Info("ingest started", "categories", filter.Categories, "statuses", filter.Statuses, "keywords", filter.Keywords)

	ids, err := o.discoverer.Discover(ctx, filter)
	if err != nil {
		return rep, fmt.Errorf("discover: %w", err)
	}
	rep.Discovered = len(ids)
	if len(ids) == 0 {
		o.log.Info("nothing discovered")
		rep.advance(StageDone)
		return rep, nil
	}
	if o.opts.Limit > 0 && len(ids) > o.opts.Limit {
		ids = ids[:o.opts.Limit]
	}

	rep.advance(StageFetching)
	raws, err := o.fetchAll(ctx, ids, &rep)
	if err != nil {
		return rep, err
	}

	rep.advance(StageCleaning)
	cleaned := o.cleanAll(raws, lookbackDays, &rep)
	if len(cleaned) == 0 {
		o.log.Info("nothing to reconcile", "fetched", rep.Fetched, "filtered", rep.Filtered)
		rep.advance(StageDone)
		return rep, nil
	}

	rep.advance(StageReconciling)
	res, err := o.reconciler.Apply(ctx, cleaned)
	if err != nil {
		return rep, fmt.Errorf("reconcile: %w", err)
	}
	rep.Applied = res.Applied()
	rep.Inserted = res.Inserted
	rep.Updated = res.Updated
	rep.advance(StageDone)

	o.log.Info("ingest finished",
		"discovered", rep.Discovered, "fetched", rep.Fetched, "failed", rep.Failed,
		"filtered", rep.Filtered, "applied", rep.Applied)
	return rep, nil
}

// fetchAll fetches ids sequentially. The limiter holds a single token, so the
// first request goes out immediately and each later one waits Delay.
func (o *Orchestrator) fetchAll(ctx context.Context, ids []string, rep *Report) ([]model.RawRecord, error) {
	var limiter *rate.Limiter
	if o.opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(o.opts.Delay), 1)
	}

	raws := make([]model.RawRecord, 0, len(ids))
	for _, id := range ids {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return raws, fmt.Errorf("fetch pacing: %w", err)
			}
		} else if err := ctx.Err(); err != nil {
			return raws, fmt.Errorf("fetch: %w", err)
		}

		raw, err := o.fetcher.Fetch(ctx, id)
		if err != nil {
			rep.Failed++
			rep.FailedIDs = append(rep.FailedIDs, id)
			if errors.Is(err, scraper.ErrNoData) {
				o.log.Info("no data for opportunity", "id", id)
			} else {
				o.log.Warn("fetch failed", "id", id, "err", err)
			}
			continue
		}
		rep.Fetched++
		raws = append(raws, raw)
	}
	return raws, nil
}

func (o *Orchestrator) cleanAll(raws []model.RawRecord, lookbackDays *int, rep *Report) []model.CleanedRecord {
	cleaned := make([]model.CleanedRecord, 0, len(raws))
	for _, raw := range raws {
		rec, ok := o.cleaner.Clean(raw, lookbackDays)
		if !ok {
			rep.Filtered++
			continue
		}
		if normalize.ContainsExcludedTerm(*rec, o.opts.ExcludeTerms) {
			o.log.Debug("excluded by term", "id", raw.ID())
			rep.Filtered++
			continue
		}
		cleaned = append(cleaned, *rec)
	}
	rep.Cleaned = len(cleaned)
	return cleaned
}
