package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Provider names one configured archive source, optionally narrowed by a
// sub-category ("provider" or "provider:subCategory" in config).
type Provider struct {
	Name        string
	SubCategory string
}

// ParseProvider splits a "name[:subCategory]" config entry.
func ParseProvider(s string) Provider {
	name, sub, _ := strings.Cut(s, ":")
	return Provider{Name: name, SubCategory: sub}
}

// ScheduleCache is the read side the scheduler uses to detect empty providers.
type ScheduleCache interface {
	Get(ctx context.Context, provider, subCategory, filename string) (string, bool)
}

// Scheduler keeps configured providers' archives ingested: an initial
// fill for providers with no cached tables, then a periodic re-ingest.
type Scheduler struct {
	ingester  *Ingester
	cache     ScheduleCache
	providers []Provider
	interval  time.Duration
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler refreshing the given providers every interval.
func NewScheduler(ingester *Ingester, cache ScheduleCache, providers []Provider, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		ingester:  ingester,
		cache:     cache,
		providers: providers,
		interval:  interval,
		logger:    logger,
	}
}

// EnsureData ingests any configured provider whose stops table is absent
// from the cache. Called on startup; failures are logged and skipped so
// one dead provider does not block the rest.
func (s *Scheduler) EnsureData(ctx context.Context) {
	for _, p := range s.providers {
		if _, ok := s.cache.Get(ctx, p.Name, p.SubCategory, "stops.txt"); ok {
			continue
		}
		s.logger.Info("no cached tables, performing initial ingest",
			"provider", p.Name, "sub_category", p.SubCategory)
		if !s.ingester.Ingest(ctx, p.Name, p.SubCategory) {
			s.logger.Warn("initial ingest failed, will retry on next refresh",
				"provider", p.Name)
		}
	}
}

// StartBackground re-ingests every configured provider on the refresh
// interval. Blocks until the context is cancelled.
func (s *Scheduler) StartBackground(ctx context.Context) {
	if len(s.providers) == 0 || s.interval <= 0 {
		return
	}
	s.logger.Info("archive refresh scheduler started",
		"providers", len(s.providers), "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, p := range s.providers {
				s.ingester.Ingest(ctx, p.Name, p.SubCategory)
			}
		case <-ctx.Done():
			s.logger.Info("archive refresh scheduler stopped")
			return
		}
	}
}
