// Package article turns transcript pages into sectioned records.
package article

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"transcript_harvester/internal/config"
	"transcript_harvester/internal/models"
)

// ErrContentNotFound marks an article whose markup lacks a required element.
var ErrContentNotFound = errors.New("article content not found")

// ParseError names the element that was missing. The record returned with it
// is already degraded and safe to persist.
type ParseError struct {
	URL     string
	Missing string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v: no %s", e.URL, ErrContentNotFound, e.Missing)
}

func (e *ParseError) Unwrap() error { return ErrContentNotFound }

type Segmenter struct {
	sel   config.ArticleSelectors
	dates *DateExtractor
}

func NewSegmenter(sel config.ArticleSelectors, years []int) *Segmenter {
	return &Segmenter{sel: sel, dates: NewDateExtractor(years)}
}

// Segment never fails hard: on a missing content region, name or ticker it
// returns the degraded record alongside a *ParseError.
func (s *Segmenter) Segment(url, markup string) (models.ArticleRecord, error) {
	empty := models.EmptyArticle(url)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return empty, &ParseError{URL: url, Missing: "readable markup"}
	}

	content := doc.Find(s.sel.Content).First()
	if content.Length() == 0 {
		return empty, &ParseError{URL: url, Missing: "content region"}
	}

	name := content.Find(s.sel.Name).First()
	if name.Length() == 0 {
		return empty, &ParseError{URL: url, Missing: "name"}
	}
	empty.Name = strings.TrimSpace(name.Text())

	ticker := content.Find(s.sel.Ticker).First()
	if ticker.Length() == 0 {
		return empty, &ParseError{URL: url, Missing: "ticker"}
	}

	var blocks []block
	content.Find(s.sel.Blocks).Each(func(_ int, el *goquery.Selection) {
		blocks = append(blocks, block{
			heading: el.Is(s.sel.Headings),
			text:    el.Text(),
		})
	})

	sections := joinSections(foldSections(blocks))
	for _, k := range models.ExpectedSections {
		if _, ok := sections[k]; !ok {
			sections[k] = ""
		}
	}

	return models.ArticleRecord{
		URL:      url,
		Name:     empty.Name,
		Ticker:   strings.Trim(strings.TrimSpace(ticker.Text()), "()"),
		Date:     s.dates.Extract(sections[models.SectionTop]),
		Sections: sections,
	}, nil
}

type block struct {
	heading bool
	text    string
}

// foldSections walks the blocks with the current section key as its only
// state: headings switch the key, paragraphs are emitted under it.
func foldSections(blocks []block) map[string][]string {
	current := models.SectionTop
	paragraphs := make(map[string][]string)
	for _, b := range blocks {
		if b.heading {
			current = SectionKey(b.text)
			continue
		}
		paragraphs[current] = append(paragraphs[current], strings.TrimSpace(b.text))
	}
	return paragraphs
}

func joinSections(paragraphs map[string][]string) map[string]string {
	sections := make(map[string]string, len(paragraphs))
	for k, ps := range paragraphs {
		sections[k] = strings.Join(ps, "\n\n")
	}
	return sections
}

// SectionKey normalizes heading text: "Questions & Answers:" becomes
// "questions_and_answers".
func SectionKey(heading string) string {
	key := strings.TrimSpace(heading)
	key = strings.TrimSpace(strings.Trim(key, ":"))
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "&", "and")
	return strings.ReplaceAll(key, " ", "_")
}
