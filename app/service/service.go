// Package service assembles the harvesting stack from configuration. Both the
// HTTP server and the one-shot CLI start from here.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BRA7534/CARFAST/app/cfg"
	"github.com/BRA7534/CARFAST/app/database"
	"github.com/BRA7534/CARFAST/app/fetcher"
	"github.com/BRA7534/CARFAST/app/harvest"
	"github.com/BRA7534/CARFAST/app/license"
	"github.com/BRA7534/CARFAST/app/metrics"
	"github.com/BRA7534/CARFAST/app/source"
)

type Service struct {
	DB        *database.DB
	Reviews   *database.ReviewRepo
	Catalog   *database.CatalogRepo
	History   *database.RequestHistoryRepo
	Registry  *source.Registry
	Fetcher   *fetcher.Fetcher
	Harvester *harvest.Harvester
}

// Open migrates the database, drops any corrupted review rows and wires the
// harvester. The caller owns the returned service and must Close it.
func Open(ctx context.Context, c *cfg.Cfg) (*Service, error) {
	registry, err := source.Load(c.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load source registry: %w", err)
	}
	slog.Info("Source registry loaded", "sources", registry.Len())

	db, err := database.Open(c.DBPath)
	if err != nil {
		return nil, err
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", c.DBPath, "schema_version", version, "dirty", dirty)

	reviews := database.NewReviewRepository(db)
	purged, err := reviews.VerifyIntegrity(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify review integrity: %w", err)
	}
	metrics.ObservePurged(purged)

	gate, err := newGate(c)
	if err != nil {
		db.Close()
		return nil, err
	}

	history := database.NewRequestHistoryRepository(db)
	clock := fetcher.SystemClock{}

	pageFetcher := fetcher.New(fetcher.Config{
		UserAgent:        c.UserAgent,
		Timeout:          c.RequestTimeout,
		MaxContentLength: c.MaxContentLength,
		MaxRetries:       c.MaxRetries,
		Limiter:          fetcher.NewSlidingWindow(c.RateLimitCalls, c.RateLimitWindow, clock),
		Clock:            clock,
		Observer:         history,
	})

	catalog := database.NewCatalogRepository(db)

	harvester := harvest.New(harvest.Config{
		Registry:    registry,
		Gate:        gate,
		Fetcher:     pageFetcher,
		Reviews:     reviews,
		Catalog:     catalog,
		Clock:       clock,
		Pacing:      c.SourcePacing,
		Concurrency: c.HarvestConcurrency,
	})

	return &Service{
		DB:        db,
		Reviews:   reviews,
		Catalog:   catalog,
		History:   history,
		Registry:  registry,
		Fetcher:   pageFetcher,
		Harvester: harvester,
	}, nil
}

func (s *Service) Close() error {
	return s.DB.Close()
}

func newGate(c *cfg.Cfg) (license.Gate, error) {
	if !c.LicenseEnabled() {
		slog.Info("License checks disabled")
		return license.AllowAll{}, nil
	}

	gate, err := license.NewServerGate(license.ServerGateConfig{
		ServerURL:  c.LicenseServer,
		LicenseKey: c.LicenseKey,
		DeviceID:   c.DeviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure license gate: %w", err)
	}
	slog.Info("License checks enabled", "server", c.LicenseServer)
	return gate, nil
}
