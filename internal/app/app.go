package app

import (
	"context"
	"fmt"
	"time"

	"transcript_harvester/internal/article"
	"transcript_harvester/internal/config"
	"transcript_harvester/internal/db"
	"transcript_harvester/internal/fetcher"
	"transcript_harvester/internal/listing"
	"transcript_harvester/internal/logger"
	"transcript_harvester/internal/models"
)

// Harvester runs one incremental harvest: discover new listing records,
// persist them, then fetch, segment and persist their articles.
type Harvester struct {
	cfg       *config.HarvestConfig
	store     db.Store
	walker    *listing.Walker
	collector *article.Collector
	log       logger.Interface
	runID     string
}

func NewHarvester(cfg *config.HarvestConfig, store db.Store, log logger.Interface, runID string) (*Harvester, error) {
	log = log.With("run_id", runID)

	httpFetcher := fetcher.NewHTTPFetcher(cfg.Logic)
	listingFetcher := fetcher.NewRetryingFetcher(httpFetcher, cfg.Logic.MaxRetries, 500*time.Millisecond, log)

	parser, err := listing.NewParser(cfg.Source.Listing, cfg.Source.BaseURL)
	if err != nil {
		return nil, err
	}

	walker, err := listing.NewWalker(listingFetcher, parser, cfg, log)
	if err != nil {
		return nil, err
	}

	segmenter := article.NewSegmenter(cfg.Source.Article, cfg.Source.PublicationYears)

	return &Harvester{
		cfg:       cfg,
		store:     store,
		walker:    walker,
		collector: article.NewCollector(segmenter, cfg.Logic, log),
		log:       log,
		runID:     runID,
	}, nil
}

// Discover walks the listing and appends the new listing records.
func (h *Harvester) Discover(ctx context.Context) (*models.WalkResult, error) {
	ctx, cancel := h.withRunDeadline(ctx)
	defer cancel()

	return h.discover(ctx)
}

func (h *Harvester) discover(ctx context.Context) (*models.WalkResult, error) {
	seen, err := h.store.LoadSeen(ctx)
	if err != nil {
		return nil, fmt.Errorf("load seen urls: %w", err)
	}
	h.log.Info("loaded prior listing records", "seen", seen.Len())

	walk, err := h.walker.Walk(ctx, seen)
	if err != nil {
		return nil, fmt.Errorf("walk listing: %w", err)
	}
	h.log.Info("listing walk finished",
		"pages", walk.Pages,
		"new_records", len(walk.Records),
		"stop_reason", walk.Reason,
		"skipped_anchors", walk.SkippedAnchors,
	)

	// Persist even if the run deadline has passed: the walk itself completed.
	if err := h.store.AppendListings(context.WithoutCancel(ctx), walk.Records); err != nil {
		return nil, fmt.Errorf("append listings: %w", err)
	}
	return walk, nil
}

// Run performs the full harvest. Degraded articles are a normal outcome and
// are counted in the report, not returned as an error.
func (h *Harvester) Run(ctx context.Context) (*models.RunReport, error) {
	start := time.Now()

	ctx, cancel := h.withRunDeadline(ctx)
	defer cancel()

	walk, err := h.discover(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.RunReport{
		RunID:            h.runID,
		Reason:           walk.Reason,
		Pages:            walk.Pages,
		ListingsAppended: len(walk.Records),
		SkippedAnchors:   walk.SkippedAnchors,
	}

	urls := make([]string, 0, len(walk.Records))
	for _, r := range walk.Records {
		urls = append(urls, r.URL)
	}

	results := h.collector.Collect(ctx, urls)

	records := make([]models.ArticleRecord, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			report.ArticlesDegraded++
			h.log.Warn("article degraded to empty record", "url", res.Record.URL, "error", res.Err)
		}
		records = append(records, res.Record)
	}

	if err := h.store.AppendArticles(context.WithoutCancel(ctx), records); err != nil {
		return nil, fmt.Errorf("append articles: %w", err)
	}
	report.ArticlesAppended = len(records)
	report.Duration = time.Since(start)

	h.log.Info("harvest finished",
		"listings", report.ListingsAppended,
		"articles", report.ArticlesAppended,
		"degraded", report.ArticlesDegraded,
		"duration", report.Duration,
	)
	return report, nil
}

func (h *Harvester) withRunDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.cfg.Logic.RunTimeoutSec <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(h.cfg.Logic.RunTimeoutSec)*time.Second)
}
