// Package listing discovers article records from a paginated listing.
package listing

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"transcript_harvester/internal/config"
	"transcript_harvester/internal/models"
	"transcript_harvester/internal/urlset"
)

// BylineSeparator splits the "author | date" text of a listing entry.
const BylineSeparator = " | "

// AnchorParseError describes one listing entry that could not be read. It
// never fails the page.
type AnchorParseError struct {
	Index  int
	Reason string
	Raw    string
}

func (e *AnchorParseError) Error() string {
	return fmt.Sprintf("anchor %d: %s", e.Index, e.Reason)
}

type ParsedPage struct {
	Records []models.ListingRecord
	Skipped []*AnchorParseError
	// Anchors counts every anchor found, parsed or not.
	Anchors int
}

type Parser struct {
	sel  config.ListingSelectors
	base *url.URL
}

func NewParser(sel config.ListingSelectors, baseURL string) (*Parser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", baseURL)
	}
	return &Parser{sel: sel, base: base}, nil
}

// Parse extracts listing records from one page in document order.
func (p *Parser) Parse(markup string) (*ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("read listing markup: %w", err)
	}

	page := &ParsedPage{}
	anchors := doc.Find(p.sel.Container).First().Find(p.sel.Anchor)
	page.Anchors = anchors.Length()

	anchors.Each(func(i int, a *goquery.Selection) {
		rec, reason := p.parseAnchor(a)
		if reason != "" {
			raw, _ := goquery.OuterHtml(a)
			page.Skipped = append(page.Skipped, &AnchorParseError{Index: i, Reason: reason, Raw: raw})
			return
		}
		page.Records = append(page.Records, rec)
	})

	return page, nil
}

func (p *Parser) parseAnchor(a *goquery.Selection) (models.ListingRecord, string) {
	var rec models.ListingRecord

	href, ok := a.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return rec, "missing href"
	}
	resolved, err := urlset.Resolve(p.base, href)
	if err != nil {
		return rec, fmt.Sprintf("bad href %q: %v", href, err)
	}

	text := a.Find(p.sel.TextBlock).First()
	if text.Length() == 0 {
		return rec, "missing text block"
	}

	title := text.Find(p.sel.Title).First()
	if title.Length() == 0 {
		return rec, "missing title"
	}

	byline := text.Find(p.sel.Byline).First()
	if byline.Length() == 0 {
		return rec, "missing byline"
	}
	parts := strings.Split(byline.Text(), BylineSeparator)
	if len(parts) != 2 {
		return rec, fmt.Sprintf("byline %q is not \"author | date\"", strings.TrimSpace(byline.Text()))
	}

	description := text.Find(p.sel.Description).First()
	if description.Length() == 0 {
		return rec, "missing description"
	}

	rec.URL = resolved
	rec.Title = strings.TrimSpace(title.Text())
	rec.Author = strings.TrimSpace(parts[0])
	rec.TranscribedDate = strings.TrimSpace(parts[1])
	rec.Description = strings.TrimSpace(description.Text())
	return rec, ""
}
