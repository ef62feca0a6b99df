package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/colby-usm/GrantGuru/internal/db"
	"github.com/colby-usm/GrantGuru/internal/grpcserver"
	"github.com/colby-usm/GrantGuru/internal/maintenance"
	"github.com/colby-usm/GrantGuru/internal/metrics"
	"github.com/colby-usm/GrantGuru/internal/scheduler"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled ingestion with the gRPC trigger API and /metrics",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Storage ─────────────────────────────────────────────────────────────
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── Redis ────────────────────────────────────────────────────────────────
	opts := scheduler.Options{
		IntervalHours: cfg.IntervalHours,
		Filter:        cfg.Filter,
		LookbackDays:  cfg.LookbackDays,
		RunTimeout:    cfg.RunTimeout,
	}
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		opts.Locker = scheduler.NewRedisLocker(rdb)
		opts.Publisher = scheduler.NewRedisPublisher(rdb)
		log.Println("[grantguru] Redis connected ✓")
	} else {
		log.Println("[grantguru] REDIS_URL not set, run lock and events disabled")
	}

	// ── Pipeline ─────────────────────────────────────────────────────────────
	m := metrics.New()
	orch := newOrchestrator(cfg, st).WithRecorder(m)
	purger := maintenance.NewPurger(st, cfg.PurgeRetentionDays).WithRecorder(m)
	opts.Purger = purger

	sched := scheduler.New(orch, opts)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen :%s: %w", cfg.GRPCPort, err)
	}
	gs := grpc.NewServer()
	grpcserver.RegisterIngestServer(gs, grpcserver.NewServer(sched, st, purger, grpcserver.Defaults{
		Filter:       cfg.Filter,
		LookbackDays: cfg.LookbackDays,
	}))
	go func() {
		log.Printf("[grantguru] gRPC listening on :%s", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			log.Printf("[grantguru] gRPC server error: %v", err)
		}
	}()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[grantguru] v%s listening on :%s", version, cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[grantguru] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[grantguru] Shutting down…")
	cancel()
	sched.Stop()
	gs.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[grantguru] Shutdown error: %v", err)
	}
	log.Println("[grantguru] Stopped.")
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "grantguru",
		"version": version,
	})
}
