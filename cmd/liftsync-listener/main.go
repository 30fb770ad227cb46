package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"liftsync/internal/config"
	"liftsync/internal/lifter"
	"liftsync/internal/listener"
	"liftsync/internal/logging"
	"liftsync/internal/metrics"
	"liftsync/internal/pipeline"
	"liftsync/internal/reconcile"
	"liftsync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	m := metrics.NewManager()
	var syncer pipeline.Syncer
	if cfg.ListenerSync {
		must(cfg.Require("LIFTSYNC_API_REFRESH_TOKEN", cfg.APIRefreshToken))
		syncer = reconcile.NewService(lifter.NewClient(cfg, m), db, cfg, m)
	}
	processor := pipeline.NewProcessingService(db, cfg, syncer, m)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	status := listener.NewStatusServer(cfg.StatusAddr, db, m)
	go func() {
		if err := status.Serve(ctx); err != nil {
			logging.FromContext(ctx).Error("status server stopped", "error", err)
		}
	}()

	must(listener.NewService(db, cfg, processor).Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
