// Package db persists listing and article records append-only.
package db

import (
	"context"
	"errors"
	"fmt"

	"transcript_harvester/internal/config"
	"transcript_harvester/internal/models"
	"transcript_harvester/internal/urlset"
)

// ErrSchemaMismatch is returned when an existing store has different columns.
var ErrSchemaMismatch = errors.New("stored columns do not match")

type Stats struct {
	Listings int64
	Articles int64
}

// Store is append-only. It does not deduplicate: the walker's AlreadySeen
// check is the only guard, so each record batch must be appended once.
type Store interface {
	LoadSeen(ctx context.Context) (*urlset.Set, error)
	AppendListings(ctx context.Context, records []models.ListingRecord) error
	AppendArticles(ctx context.Context, records []models.ArticleRecord) error
	Stats(ctx context.Context) (Stats, error)
	Close(ctx context.Context) error
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg config.StoreConfig, runID string) (Store, error) {
	switch cfg.Backend {
	case config.BackendCSV, "":
		return NewCSVStore(cfg.ListingsPath, cfg.ArticlesPath), nil
	case config.BackendMongo:
		return NewMongoStore(ctx, cfg.DB, runID)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}
