package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"gopkg.in/yaml.v2"
)

const (
	BackendCSV   = "csv"
	BackendMongo = "mongo"
)

var (
	ErrMissingListingURL = errors.New("source.listing_url is required")
	ErrMissingBaseURL    = errors.New("source.base_url is required")
	ErrInvalidCutoff     = errors.New("source.cutoff_date is not a date")
	ErrUnknownBackend    = errors.New("store.backend must be csv or mongo")
	ErrInvalidWorkers    = errors.New("logic.max_concurrent_workers must be positive")
	ErrMissingStorePaths = errors.New("store.listings_path and store.articles_path are required")
)

type ListingSelectors struct {
	Container   string `yaml:"container"`
	Anchor      string `yaml:"anchor"`
	TextBlock   string `yaml:"text_block"`
	Title       string `yaml:"title"`
	Byline      string `yaml:"byline"`
	Description string `yaml:"description"`
}

type ArticleSelectors struct {
	Content  string `yaml:"content"`
	Name     string `yaml:"name"`
	Ticker   string `yaml:"ticker"`
	Blocks   string `yaml:"blocks"`
	Headings string `yaml:"headings"`
}

type SourceConfig struct {
	Name             string           `yaml:"name"`
	ListingURL       string           `yaml:"listing_url"`
	BaseURL          string           `yaml:"base_url"`
	PageParam        string           `yaml:"page_param"`
	CutoffDate       string           `yaml:"cutoff_date"`
	PublicationYears []int            `yaml:"publication_years"`
	MaxPages         int              `yaml:"max_pages"`
	Listing          ListingSelectors `yaml:"listing_selectors"`
	Article          ArticleSelectors `yaml:"article_selectors"`
}

type DBConfig struct {
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Listings string `yaml:"listings"`
		Articles string `yaml:"articles"`
	} `yaml:"collections"`
}

type StoreConfig struct {
	Backend      string   `yaml:"backend"`
	ListingsPath string   `yaml:"listings_path"`
	ArticlesPath string   `yaml:"articles_path"`
	DB           DBConfig `yaml:"db"`
}

type LogicConfig struct {
	DelayMS              int    `yaml:"delay_ms"`
	TimeoutSec           int    `yaml:"timeout_sec"`
	MaxRetries           int    `yaml:"max_retries"`
	MaxConcurrentWorkers int    `yaml:"max_concurrent_workers"`
	UserAgent            string `yaml:"user_agent"`
	RandomUserAgent      bool   `yaml:"random_user_agent"`
	RespectRobots        bool   `yaml:"respect_robots"`
	MaxBodyKB            int    `yaml:"max_body_kb"`
	RunTimeoutSec        int    `yaml:"run_timeout_sec"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Encoding    string `yaml:"encoding"`
	Development bool   `yaml:"development"`
}

type HarvestConfig struct {
	Source SourceConfig `yaml:"source"`
	Logic  LogicConfig  `yaml:"logic"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *HarvestConfig {
	cfg := &HarvestConfig{
		Source: SourceConfig{
			Name:             "fool",
			ListingURL:       "https://www.fool.com/earnings-call-transcripts/",
			BaseURL:          "https://www.fool.com/",
			PageParam:        "page",
			CutoffDate:       "Jan 1, 2020",
			PublicationYears: []int{2019, 2020},
			Listing: ListingSelectors{
				Container:   "div.list-content",
				Anchor:      "a",
				TextBlock:   "div.text",
				Title:       "h4",
				Byline:      "div",
				Description: "p",
			},
			Article: ArticleSelectors{
				Content:  "span.article-content",
				Name:     "strong",
				Ticker:   "span.ticker",
				Blocks:   "p, h2",
				Headings: "h2",
			},
		},
		Logic: LogicConfig{
			DelayMS:              0,
			TimeoutSec:           30,
			MaxRetries:           3,
			MaxConcurrentWorkers: 4,
			UserAgent:            "Mozilla/5.0 (TranscriptHarvester/1.0)",
			RespectRobots:        false,
			MaxBodyKB:            10 * 1024,
		},
		Store: StoreConfig{
			Backend:      BackendCSV,
			ListingsPath: "data/urls.csv",
			ArticlesPath: "data/earnings_calls.csv",
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
	cfg.Store.DB.Database = "harvester"
	cfg.Store.DB.Collections.Listings = "listings"
	cfg.Store.DB.Collections.Articles = "articles"
	return cfg
}

// LoadConfig reads a YAML file over the defaults, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*HarvestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *HarvestConfig) ApplyEnv() {
	if v := os.Getenv("HARVEST_MONGO_URI"); v != "" {
		c.Store.DB.Connection = v
	}
	if v := os.Getenv("HARVEST_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("HARVEST_STORE_BACKEND"); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
}

func (c *HarvestConfig) Validate() error {
	if c.Source.ListingURL == "" {
		return ErrMissingListingURL
	}
	if c.Source.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if _, err := c.Cutoff(); err != nil {
		return err
	}
	if c.Logic.MaxConcurrentWorkers <= 0 {
		return ErrInvalidWorkers
	}
	switch c.Store.Backend {
	case BackendCSV:
		if c.Store.ListingsPath == "" || c.Store.ArticlesPath == "" {
			return ErrMissingStorePaths
		}
	case BackendMongo:
		if c.Store.DB.Connection == "" {
			return errors.New("store.db.connection is required for the mongo backend")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Store.Backend)
	}
	return nil
}

// Cutoff parses the configured boundary date.
func (c *HarvestConfig) Cutoff() (time.Time, error) {
	t, err := dateparse.ParseIn(c.Source.CutoffDate, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCutoff, c.Source.CutoffDate)
	}
	return t, nil
}
