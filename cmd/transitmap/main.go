package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"transitmap/internal/config"
	"transitmap/internal/directions"
	"transitmap/internal/filecache"
	"transitmap/internal/ingest"
	"transitmap/internal/realtime"
	"transitmap/internal/routes"
	"transitmap/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// CLI flags
	ingestOnly := flag.Bool("ingest", false, "Ingest configured provider archives, then exit")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the cache database")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := filecache.New(cfg.DBPath, logger)
	defer store.Close()

	var providers []ingest.Provider
	for _, p := range cfg.Providers {
		providers = append(providers, ingest.ParseProvider(p))
	}

	ingester := ingest.New(cfg.ArchiveBaseURL, store, logger)
	scheduler := ingest.NewScheduler(ingester, store, providers, cfg.RefreshInterval, logger)

	if *ingestOnly {
		for _, p := range providers {
			if !ingester.Ingest(ctx, p.Name, p.SubCategory) {
				logger.Error("ingest failed", "provider", p.Name)
				os.Exit(1)
			}
		}
		logger.Info("ingest complete", "providers", len(providers))
		return
	}

	// Fill empty providers on startup, then refresh in the background.
	scheduler.EnsureData(ctx)
	go scheduler.StartBackground(ctx)

	compiler := routes.NewCompiler(store, ingester, logger)
	routing := directions.NewClient(cfg.DirectionsURL, cfg.DirectionsKey, cfg.DirectionsInterval, store, logger)
	if cfg.DirectionsKey == "" {
		logger.Warn("no directions credential configured, paths degrade to straight lines")
	}

	rtStore := realtime.NewStore()
	if cfg.VehiclesURL != "" {
		fetcher := realtime.NewFetcher(cfg.VehiclesURL, cfg.VehiclesInterval, rtStore, logger)
		go fetcher.Start(ctx)
	}

	srv := server.New(cfg.Port, compiler, routing, store, rtStore, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
		os.Exit(0)
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
