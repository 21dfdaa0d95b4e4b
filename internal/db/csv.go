package db

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"transcript_harvester/internal/models"
	"transcript_harvester/internal/urlset"
)

var (
	ListingColumns = []string{"url", "title", "author", "transcribed_date", "description"}
	ArticleColumns = []string{
		"url",
		models.SectionTop,
		models.SectionPreparedRemarks,
		models.SectionQuestionsAndAnswers,
		models.SectionCallParticipants,
		"name",
		"ticker",
		"date",
		"extra_sections",
	}
)

// CSVStore keeps listings and articles in two CSV files. The header is written
// once, when a file is created.
type CSVStore struct {
	listingsPath string
	articlesPath string
	mu           sync.Mutex
}

func NewCSVStore(listingsPath, articlesPath string) *CSVStore {
	return &CSVStore{listingsPath: listingsPath, articlesPath: articlesPath}
}

func (s *CSVStore) LoadSeen(ctx context.Context) (*urlset.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := urlset.New()
	err := readRows(s.listingsPath, ListingColumns, func(row []string) {
		seen.Add(row[0])
	})
	if err != nil {
		return nil, err
	}
	return seen, nil
}

func (s *CSVStore) AppendListings(ctx context.Context, records []models.ListingRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.URL, r.Title, r.Author, r.TranscribedDate, r.Description})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRows(s.listingsPath, ListingColumns, rows)
}

func (s *CSVStore) AppendArticles(ctx context.Context, records []models.ArticleRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row, err := articleRow(r)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRows(s.articlesPath, ArticleColumns, rows)
}

func (s *CSVStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	if err := readRows(s.listingsPath, ListingColumns, func([]string) { stats.Listings++ }); err != nil {
		return stats, err
	}
	if err := readRows(s.articlesPath, ArticleColumns, func([]string) { stats.Articles++ }); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *CSVStore) Close(ctx context.Context) error { return nil }

func articleRow(r models.ArticleRecord) ([]string, error) {
	date := ""
	if r.Date != nil {
		date = *r.Date
	}

	extra := ""
	if sections := r.ExtraSections(); len(sections) > 0 {
		data, err := json.Marshal(sections)
		if err != nil {
			return nil, fmt.Errorf("encode extra sections for %s: %w", r.URL, err)
		}
		extra = string(data)
	}

	return []string{
		r.URL,
		r.Sections[models.SectionTop],
		r.Sections[models.SectionPreparedRemarks],
		r.Sections[models.SectionQuestionsAndAnswers],
		r.Sections[models.SectionCallParticipants],
		r.Name,
		r.Ticker,
		date,
		extra,
	}, nil
}

// readRows calls fn for every data row. A missing file has no rows.
func readRows(path string, header []string, fn func(row []string)) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	got, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if !slices.Equal(got, header) {
		return fmt.Errorf("%w: %s has %v", ErrSchemaMismatch, path, got)
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		fn(row)
	}
}

func appendRows(path string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	needHeader := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		needHeader = false
		if err := checkHeader(path, header); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(header); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Close()
}

func checkHeader(path string, header []string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	got, err := csv.NewReader(f).Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	if !slices.Equal(got, header) {
		return fmt.Errorf("%w: %s has %v", ErrSchemaMismatch, path, got)
	}
	return nil
}
