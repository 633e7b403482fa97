package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BRA7534/CARFAST/app/database"
	"github.com/BRA7534/CARFAST/app/fetcher"
	"github.com/BRA7534/CARFAST/app/license"
	"github.com/BRA7534/CARFAST/app/locator"
	"github.com/BRA7534/CARFAST/app/metrics"
	"github.com/BRA7534/CARFAST/app/sentiment"
	"github.com/BRA7534/CARFAST/app/source"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Registry  *source.Registry
	Gate      license.Gate
	Fetcher   PageFetcher
	Extractor *sentiment.Extractor
	Text      TextExtractor
	Reviews   database.ReviewRepository
	Catalog   database.CatalogRepository
	Clock     fetcher.Clock
	// Pacing is the delay between two sources in a sequential run.
	Pacing time.Duration
	// Concurrency above 1 harvests that many sources at once.
	Concurrency int
}

type Harvester struct {
	registry    *source.Registry
	gate        license.Gate
	fetcher     PageFetcher
	locator     *locator.Locator
	extractor   *sentiment.Extractor
	text        TextExtractor
	reviews     database.ReviewRepository
	catalog     database.CatalogRepository
	clock       fetcher.Clock
	pacing      time.Duration
	concurrency int
}

func New(c Config) *Harvester {
	h := &Harvester{
		registry:    c.Registry,
		gate:        c.Gate,
		fetcher:     c.Fetcher,
		locator:     locator.New(c.Fetcher),
		extractor:   c.Extractor,
		text:        c.Text,
		reviews:     c.Reviews,
		catalog:     c.Catalog,
		clock:       c.Clock,
		pacing:      c.Pacing,
		concurrency: c.Concurrency,
	}

	if h.registry == nil {
		h.registry = source.Default()
	}
	if h.gate == nil {
		h.gate = license.AllowAll{}
	}
	if h.extractor == nil {
		h.extractor = sentiment.NewExtractor()
	}
	if h.text == nil {
		h.text = PageText{}
	}
	if h.clock == nil {
		h.clock = fetcher.SystemClock{}
	}
	if h.pacing < 0 {
		h.pacing = 0
	}
	if h.concurrency < 1 {
		h.concurrency = 1
	}

	return h
}

type sourceResult struct {
	outcome SourceOutcome
	reviews []database.Review
}

// Harvest collects, stores and returns the reviews every registered source
// has for one vehicle. Only invalid input, a refused license or an unknown
// model fail the call; source problems are logged and skipped. When ctx ends
// early the reviews gathered so far are returned with Cancelled set.
func (h *Harvester) Harvest(ctx context.Context, req Request) (Result, error) {
	req.Brand = strings.TrimSpace(req.Brand)
	req.Model = strings.TrimSpace(req.Model)

	if err := validate(req); err != nil {
		metrics.ObserveHarvest("invalid")
		return Result{}, err
	}

	if ok, reason := h.gate.Authorize(ctx); !ok {
		metrics.ObserveHarvest("unauthorized")
		return Result{}, fmt.Errorf("%w: %s", ErrUnauthorized, reason)
	}

	modelID, err := h.resolveModel(ctx, req)
	if err != nil {
		metrics.ObserveHarvest("unknown_model")
		return Result{}, err
	}

	slog.Info("Harvest started", "brand", req.Brand, "model", req.Model, "year", req.Year, "model_id", modelID)

	sources := h.registry.Sources()
	results := make([]*sourceResult, len(sources))

	if h.concurrency > 1 {
		h.runConcurrent(ctx, sources, req, modelID, results)
	} else {
		h.runSequential(ctx, sources, req, modelID, results)
	}

	result := Result{
		ModelID:   modelID,
		Reviews:   []database.Review{},
		Sources:   []SourceOutcome{},
		Cancelled: ctx.Err() != nil,
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		result.Sources = append(result.Sources, r.outcome)
		result.Reviews = append(result.Reviews, r.reviews...)
	}

	outcome := "completed"
	if result.Cancelled {
		outcome = "cancelled"
	}
	metrics.ObserveHarvest(outcome)
	slog.Info("Harvest finished", "brand", req.Brand, "model", req.Model, "year", req.Year,
		"reviews", len(result.Reviews), "sources", len(result.Sources), "cancelled", result.Cancelled)

	return result, nil
}

func validate(req Request) error {
	if req.Brand == "" {
		return fmt.Errorf("%w: brand is required", ErrInvalidArgument)
	}
	if req.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidArgument)
	}
	if req.Year < database.MinYear || req.Year > database.MaxYear {
		return fmt.Errorf("%w: year %d outside [%d, %d]", ErrInvalidArgument, req.Year, database.MinYear, database.MaxYear)
	}
	return nil
}

func (h *Harvester) resolveModel(ctx context.Context, req Request) (int64, error) {
	if req.ModelID > 0 {
		exists, err := h.catalog.ModelExists(ctx, req.ModelID)
		if err != nil {
			return 0, fmt.Errorf("failed to check model: %w", err)
		}
		if !exists {
			return 0, fmt.Errorf("%w: model %d does not exist", ErrReferentialIntegrity, req.ModelID)
		}
		return req.ModelID, nil
	}

	id, found, err := h.catalog.FindModelID(ctx, req.Brand, req.Model)
	if err != nil {
		return 0, fmt.Errorf("failed to find model: %w", err)
	}
	if !found {
		return 0, fmt.Errorf("%w: unknown model %s %s", ErrReferentialIntegrity, req.Brand, req.Model)
	}
	return id, nil
}

func (h *Harvester) runSequential(ctx context.Context, sources []*source.Descriptor, req Request, modelID int64, results []*sourceResult) {
	for i, desc := range sources {
		if i > 0 && h.pacing > 0 {
			if err := h.clock.Sleep(ctx, h.pacing); err != nil {
				slog.Info("Harvest interrupted during pacing", "next_source", desc.Name, "error", err)
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		results[i] = h.harvestSource(ctx, desc, req, modelID)
	}
}

// runConcurrent harvests up to h.concurrency sources at once. Results land
// at the source's registry index so ordering does not depend on completion.
func (h *Harvester) runConcurrent(ctx context.Context, sources []*source.Descriptor, req Request, modelID int64, results []*sourceResult) {
	var g errgroup.Group
	g.SetLimit(h.concurrency)

	for i, desc := range sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = h.harvestSource(ctx, desc, req, modelID)
			return nil
		})
	}

	g.Wait()
}

func (h *Harvester) harvestSource(ctx context.Context, desc *source.Descriptor, req Request, modelID int64) (res *sourceResult) {
	res = &sourceResult{outcome: SourceOutcome{Source: desc.Name}}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Source harvest panicked", "source", desc.Name, "panic", r)
			res = &sourceResult{outcome: SourceOutcome{Source: desc.Name, Error: fmt.Sprintf("panic: %v", r)}}
		}
		if res.outcome.Error != "" {
			metrics.ObserveSourceFailure(desc.Name)
		}
	}()

	links := h.locator.Locate(ctx, desc, req.Brand, req.Model)
	res.outcome.Links = len(links)

	var bundles []database.ReviewBundle
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}

		bundle, ok := h.harvestPage(ctx, desc, link, req.Year)
		if !ok {
			continue
		}
		res.outcome.Pages++
		bundles = append(bundles, bundle)
	}

	if len(bundles) == 0 {
		slog.Debug("No reviews found", "source", desc.Name, "links", len(links))
		return res
	}

	rows, err := database.ExpandBundles(bundles, modelID)
	if err != nil {
		res.outcome.Error = err.Error()
		slog.Warn("Failed to prepare reviews", "source", desc.Name, "error", err)
		return res
	}

	// Work already done is kept even when the caller has given up.
	inserted, err := h.reviews.Save(context.WithoutCancel(ctx), bundles, modelID)
	if err != nil {
		res.outcome.Error = err.Error()
		slog.Warn("Failed to save reviews", "source", desc.Name, "error", err)
		return res
	}
	metrics.ObserveSaved(desc.Name, inserted)

	res.reviews = rows
	res.outcome.Reviews = len(rows)
	res.outcome.Inserted = inserted
	slog.Info("Source harvested", "source", desc.Name, "pages", res.outcome.Pages, "reviews", len(rows), "inserted", inserted)

	return res
}

func (h *Harvester) harvestPage(ctx context.Context, desc *source.Descriptor, link string, year int) (database.ReviewBundle, bool) {
	page := h.fetcher.Fetch(ctx, link)
	if !page.OK() {
		slog.Debug("Review page unavailable", "source", desc.Name, "url", link, "status", page.Status.String(), "error", page.Err)
		return database.ReviewBundle{}, false
	}

	text, err := h.text.Text(page.Body, link)
	if err != nil {
		slog.Debug("Failed to extract page text", "source", desc.Name, "url", link, "error", err)
		return database.ReviewBundle{}, false
	}

	points := h.extractor.Extract(text)
	if points.Empty() {
		return database.ReviewBundle{}, false
	}

	return database.ReviewBundle{
		Source:        desc.Name,
		URL:           link,
		Year:          year,
		Positives:     points.Positives,
		Negatives:     points.Negatives,
		DateCollected: h.clock.Now(),
	}, true
}
