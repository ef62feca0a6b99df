package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/colby-usm/GrantGuru/internal/db"
	"github.com/colby-usm/GrantGuru/internal/scheduler"
)

var (
	ingestCategories   []string
	ingestStatuses     []string
	ingestKeywords     string
	ingestLookbackDays int
	ingestLimit        int
	ingestDelay        time.Duration
	ingestExclude      []string
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion and print its report as JSON",
		Long: `Run the discover, fetch, clean, reconcile pipeline once.

Flags override the INGEST_* environment settings.

Examples:
  grantguru ingest --categories HEALTH,ENVIRONMENT --lookback-days 3
  grantguru ingest --keywords cancer --statuses posted -n 50
  grantguru ingest --lookback-days -1 --delay 1s`,
		Args: cobra.NoArgs,
		RunE: runIngest,
	}

	cmd.Flags().StringSliceVarP(&ingestCategories, "categories", "c", nil, "funding categories (names or codes)")
	cmd.Flags().StringSliceVarP(&ingestStatuses, "statuses", "s", nil, "opportunity statuses")
	cmd.Flags().StringVarP(&ingestKeywords, "keywords", "k", "", "free-text keyword search")
	cmd.Flags().IntVarP(&ingestLookbackDays, "lookback-days", "d", 0, "recency window in days; -1 disables")
	cmd.Flags().IntVarP(&ingestLimit, "limit", "n", 0, "fetch at most n discovered grants; 0 means all")
	cmd.Flags().DurationVar(&ingestDelay, "delay", 0, "minimum spacing between detail requests")
	cmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "drop grants mentioning any of these terms")

	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("categories") {
		cfg.Filter.Categories = ingestCategories
	}
	if flags.Changed("statuses") {
		cfg.Filter.Statuses = ingestStatuses
	}
	if flags.Changed("keywords") {
		cfg.Filter.Keywords = ingestKeywords
	}
	if flags.Changed("lookback-days") {
		if ingestLookbackDays < 0 {
			cfg.LookbackDays = nil
		} else {
			days := ingestLookbackDays
			cfg.LookbackDays = &days
		}
	}
	if flags.Changed("limit") {
		if ingestLimit < 0 {
			return fmt.Errorf("--limit must be >= 0, got %d", ingestLimit)
		}
		cfg.FetchLimit = ingestLimit
	}
	if flags.Changed("delay") {
		if ingestDelay < 0 {
			return fmt.Errorf("--delay must be >= 0, got %s", ingestDelay)
		}
		cfg.FetchDelay = ingestDelay
	}
	if flags.Changed("exclude") {
		cfg.ExcludeTerms = ingestExclude
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := scheduler.Options{RunTimeout: cfg.RunTimeout}
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		opts.Locker = scheduler.NewRedisLocker(rdb)
		opts.Publisher = scheduler.NewRedisPublisher(rdb)
	}

	sched := scheduler.New(newOrchestrator(cfg, st), opts)
	rep, runErr := sched.Trigger(ctx, cfg.Filter, cfg.LookbackDays)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return runErr
}
