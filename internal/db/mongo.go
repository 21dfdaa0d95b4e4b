package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"transcript_harvester/internal/config"
	"transcript_harvester/internal/models"
	"transcript_harvester/internal/urlset"
)

type listingDocument struct {
	models.ListingRecord `bson:",inline"`
	RunID                string `bson:"run_id"`
	HarvestedAt          int64  `bson:"harvested_at"`
}

type articleDocument struct {
	models.ArticleRecord `bson:",inline"`
	RunID                string `bson:"run_id"`
	HarvestedAt          int64  `bson:"harvested_at"`
}

// MongoStore keeps each record as its own document. Inserts only; the url
// index is not unique because dedup happens upstream.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
	listings *mongo.Collection
	articles *mongo.Collection
	runID    string
}

func NewMongoStore(ctx context.Context, cfg config.DBConfig, runID string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)
	s := &MongoStore{
		client:   client,
		database: database,
		listings: database.Collection(cfg.Collections.Listings),
		articles: database.Collection(cfg.Collections.Articles),
		runID:    runID,
	}

	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't create indices: %w", err)
	}

	return s, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{s.listings, s.articles} {
		_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "url", Value: 1}}},
			{Keys: bson.D{{Key: "harvested_at", Value: 1}}},
		})
		if err != nil {
			return fmt.Errorf("%s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *MongoStore) LoadSeen(ctx context.Context) (*urlset.Set, error) {
	values, err := s.listings.Distinct(ctx, "url", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("load seen urls: %w", err)
	}

	seen := urlset.New()
	for _, v := range values {
		if u, ok := v.(string); ok {
			seen.Add(u)
		}
	}
	return seen, nil
}

func (s *MongoStore) AppendListings(ctx context.Context, records []models.ListingRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().Unix()
	docs := make([]interface{}, 0, len(records))
	for _, r := range records {
		docs = append(docs, listingDocument{ListingRecord: r, RunID: s.runID, HarvestedAt: now})
	}
	if _, err := s.listings.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert listings: %w", err)
	}
	return nil
}

func (s *MongoStore) AppendArticles(ctx context.Context, records []models.ArticleRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().Unix()
	docs := make([]interface{}, 0, len(records))
	for _, r := range records {
		docs = append(docs, articleDocument{ArticleRecord: r, RunID: s.runID, HarvestedAt: now})
	}
	if _, err := s.articles.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert articles: %w", err)
	}
	return nil
}

func (s *MongoStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error
	if stats.Listings, err = s.listings.CountDocuments(ctx, bson.D{}); err != nil {
		return stats, err
	}
	if stats.Articles, err = s.articles.CountDocuments(ctx, bson.D{}); err != nil {
		return stats, err
	}
	return stats, nil
}

// RunStats groups article documents by run, newest first.
func (s *MongoStore) RunStats(ctx context.Context) ([]bson.M, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$run_id"},
			{Key: "articles", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "with_ticker", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$ne", Value: bson.A{"$ticker", ""}}}, 1, 0,
			}}}}}},
			{Key: "harvested_at", Value: bson.D{{Key: "$max", Value: "$harvested_at"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "harvested_at", Value: -1}}}},
	}

	cursor, err := s.articles.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
