package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transcript_harvester/internal/config"
	"transcript_harvester/internal/fetcher"
	"transcript_harvester/internal/logger"
	"transcript_harvester/internal/models"
	"transcript_harvester/internal/urlset"
)

// Walker pages through the listing until a boundary is hit. Pages are
// fetched strictly in order: whether page n+1 is needed depends on page n.
type Walker struct {
	fetch      fetcher.Fetcher
	parser     *Parser
	listingURL string
	pageParam  string
	cutoff     time.Time
	maxPages   int
	delay      time.Duration
	log        logger.Interface
}

func NewWalker(f fetcher.Fetcher, p *Parser, cfg *config.HarvestConfig, log logger.Interface) (*Walker, error) {
	cutoff, err := cfg.Cutoff()
	if err != nil {
		return nil, err
	}
	if cfg.Source.PageParam == "" {
		return nil, errors.New("source.page_param is required")
	}
	return &Walker{
		fetch:      f,
		parser:     p,
		listingURL: cfg.Source.ListingURL,
		pageParam:  cfg.Source.PageParam,
		cutoff:     cutoff,
		maxPages:   cfg.Source.MaxPages,
		delay:      time.Duration(cfg.Logic.DelayMS) * time.Millisecond,
		log:        log.With("component", "walker"),
	}, nil
}

// Walk returns the records newer than both the cutoff and the first
// already-seen URL. A listing fetch failure aborts the walk with no records:
// a partial listing cannot tell whether stopping would have been correct.
func (w *Walker) Walk(ctx context.Context, seen *urlset.Set) (*models.WalkResult, error) {
	result := &models.WalkResult{}
	thisRun := urlset.New()

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageURL, err := urlset.PageURL(w.listingURL, w.pageParam, page)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}

		markup, err := w.fetch.Fetch(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}

		parsed, err := w.parser.Parse(markup)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}
		result.Pages = page

		for _, skipped := range parsed.Skipped {
			w.log.Warn("failed to parse listing anchor",
				"page", page, "index", skipped.Index, "reason", skipped.Reason, "anchor", skipped.Raw)
		}
		result.SkippedAnchors += len(parsed.Skipped)

		if parsed.Anchors == 0 {
			result.Reason = models.StopListingExhausted
			break
		}

		if reason, stop := w.consume(parsed.Records, seen, thisRun, result); stop {
			result.Reason = reason
			w.log.Debug("boundary hit", "page", page, "reason", reason)
			break
		}

		w.log.Info("listing page walked", "page", page, "records", len(result.Records))

		if w.maxPages > 0 && page >= w.maxPages {
			result.Reason = models.StopPageLimit
			break
		}

		if err := w.sleep(ctx); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// consume appends candidates in order until one of them hits a boundary.
func (w *Walker) consume(candidates []models.ListingRecord, seen, thisRun *urlset.Set, result *models.WalkResult) (models.StopReason, bool) {
	for _, rec := range candidates {
		date, err := ParseDate(rec.TranscribedDate)
		switch {
		case err != nil:
			result.UndatedRecords++
			w.log.Warn("keeping record with unparseable date", "url", rec.URL, "date", rec.TranscribedDate)
		case date.Before(w.cutoff):
			return models.StopCutoffReached, true
		}

		if seen.Has(rec.URL) {
			return models.StopCaughtUp, true
		}

		// The listing can shift while we page through it.
		if !thisRun.Add(rec.URL) {
			w.log.Debug("duplicate listing entry within run", "url", rec.URL)
			continue
		}

		result.Records = append(result.Records, rec)
	}
	return "", false
}

func (w *Walker) sleep(ctx context.Context) error {
	if w.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.delay):
		return nil
	}
}
