// Package scheduler wires up the cron jobs that periodically run ingestion
// and the daily archive purge.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/colby-usm/GrantGuru/internal/ingest"
	"github.com/colby-usm/GrantGuru/internal/model"
)

const (
	// EventGrantsIngested is published after every scheduled run.
	EventGrantsIngested = "EVENT_GRANTS_INGESTED"
	lockKey             = "grantguru:ingest:lock"
	purgeSpec           = "@daily"
)

// ErrAlreadyRunning is returned when another run holds the in-process or
// shared lock.
var ErrAlreadyRunning = errors.New("ingestion already running")

// Runner performs one ingestion run.
type Runner interface {
	Ingest(ctx context.Context, filter model.Filter, lookbackDays *int) (ingest.Report, error)
}

// Purger removes expired grants.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Locker takes a lock shared across service instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Publisher emits run events.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Options configure a Scheduler. Locker and Publisher are optional.
type Options struct {
	IntervalHours int
	Filter        model.Filter
	LookbackDays  *int
	RunTimeout    time.Duration
	Purger        Purger
	Locker        Locker
	Publisher     Publisher
}

// Scheduler wraps robfig/cron and manages the ingest loop.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	opts    Options
	spec    string // cron spec, e.g. "@every 24h"
	running sync.Mutex
	log     *slog.Logger
}

// New creates a Scheduler that fires every opts.IntervalHours hours.
func New(runner Runner, opts Options) *Scheduler {
	if opts.IntervalHours < 1 {
		opts.IntervalHours = 24
	}
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		runner: runner,
		opts:   opts,
		spec:   fmt.Sprintf("@every %dh", opts.IntervalHours),
		log:    slog.Default().With("component", "scheduler"),
	}
}

// Start registers the jobs and starts the scheduler. Also runs one ingestion
// immediately so the table is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc(%s): %w", s.spec, err)
	}
	if s.opts.Purger != nil {
		if _, err := s.cron.AddFunc(purgeSpec, func() { s.PurgeOnce(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc(%s): %w", purgeSpec, err)
		}
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started, ingest spec: %s", s.spec)

	go s.RunOnce(ctx)
	return nil
}

// Stop halts the scheduler and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[scheduler] Cron stopped")
}

// RunOnce performs a single scheduled run with the configured filter.
func (s *Scheduler) RunOnce(ctx context.Context) (ingest.Report, error) {
	return s.Trigger(ctx, s.opts.Filter, s.opts.LookbackDays)
}

// Trigger performs a single locked ingestion run bounded by RunTimeout and
// publishes its report. Overlapping runs return ErrAlreadyRunning.
func (s *Scheduler) Trigger(ctx context.Context, filter model.Filter, lookbackDays *int) (ingest.Report, error) {
	if !s.running.TryLock() {
		s.log.Info("run skipped, previous run still active")
		return ingest.Report{}, ErrAlreadyRunning
	}
	defer s.running.Unlock()

	if s.opts.Locker != nil {
		release, ok, err := s.opts.Locker.TryLock(ctx, lockKey, s.lockTTL())
		if err != nil {
			s.log.Warn("run lock unavailable", "err", err)
			return ingest.Report{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			s.log.Info("run skipped, lock held by another instance")
			return ingest.Report{}, ErrAlreadyRunning
		}
		defer release()
	}

	runCtx := ctx
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	log.Println("[scheduler] Ingest cycle started")
	rep, err := s.runner.Ingest(runCtx, filter, lookbackDays)
	if err != nil {
		s.log.Warn("ingest run failed", "stage", rep.Stage, "err", err)
	} else {
		log.Printf("[scheduler] Ingest cycle complete: fetched=%d failed=%d applied=%d", rep.Fetched, rep.Failed, rep.Applied)
	}
	s.publish(ctx, rep, err)
	return rep, err
}

// PurgeOnce runs the archive purge.
func (s *Scheduler) PurgeOnce(ctx context.Context) (int64, error) {
	n, err := s.opts.Purger.Purge(ctx)
	if err != nil {
		s.log.Warn("purge failed", "err", err)
	}
	return n, err
}

func (s *Scheduler) lockTTL() time.Duration {
	if s.opts.RunTimeout > 0 {
		return s.opts.RunTimeout + time.Minute
	}
	return time.Duration(s.opts.IntervalHours) * time.Hour
}

// publish emits the run report (non-fatal).
func (s *Scheduler) publish(ctx context.Context, rep ingest.Report, runErr error) {
	if s.opts.Publisher == nil {
		return
	}
	event := map[string]any{
		"type":       EventGrantsIngested,
		"stage":      rep.Stage,
		"discovered": rep.Discovered,
		"fetched":    rep.Fetched,
		"failed":     rep.Failed,
		"applied":    rep.Applied,
		"inserted":   rep.Inserted,
		"updated":    rep.Updated,
		"durationMs": rep.Duration.Milliseconds(),
		"finishedAt": time.Now().UTC().Format(time.RFC3339),
	}
	if runErr != nil {
		event["error"] = runErr.Error()
	}
	payload, _ := json.Marshal(event)
	if err := s.opts.Publisher.Publish(ctx, EventGrantsIngested, payload); err != nil {
		slog.Warn("publish "+EventGrantsIngested+" failed", "err", err)
	}
}
