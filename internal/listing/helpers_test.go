package listing_test

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"transcript_harvester/internal/config"
	"transcript_harvester/internal/fetcher"
)

const testBase = "https://listing.test/"

type entry struct {
	href      string
	title     string
	author    string
	date      string
	desc      string
	omitTitle bool
}

func rec(n int, date string) entry {
	return entry{
		href:   fmt.Sprintf("/earnings/call-transcripts/r%d.aspx", n),
		title:  fmt.Sprintf("Company %d Q4 2019 Earnings Call Transcript", n),
		author: "Motley Fool Transcribers",
		date:   date,
		desc:   fmt.Sprintf("Transcript %d", n),
	}
}

func recURL(n int) string {
	return fmt.Sprintf("https://listing.test/earnings/call-transcripts/r%d.aspx", n)
}

func listingHTML(entries ...entry) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="list-content">`)
	for _, e := range entries {
		fmt.Fprintf(&b, `<a href="%s"><div class="text">`, e.href)
		if !e.omitTitle {
			fmt.Fprintf(&b, `<h4>%s</h4>`, e.title)
		}
		fmt.Fprintf(&b, `<div>%s | %s</div><p>%s</p></div></a>`, e.author, e.date, e.desc)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// pagedFetcher serves pages[i-1] for ?page=i and an empty listing past the end.
type pagedFetcher struct {
	mu      sync.Mutex
	pages   [][]entry
	fail    map[int]error
	fetched []int
	endless bool
}

func (f *pagedFetcher) Fetch(ctx context.Context, raw string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &fetcher.FetchError{URL: raw, Err: err}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	page, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, page)
	f.mu.Unlock()

	if err, ok := f.fail[page]; ok {
		return "", err
	}
	if f.endless {
		return listingHTML(rec(page*100, "Mar 1, 2020"), rec(page*100+1, "Mar 1, 2020")), nil
	}
	if page > len(f.pages) {
		return listingHTML(), nil
	}
	return listingHTML(f.pages[page-1]...), nil
}

func testConfig(cutoff string) *config.HarvestConfig {
	cfg := config.Default()
	cfg.Source.ListingURL = testBase + "earnings-call-transcripts/"
	cfg.Source.BaseURL = testBase
	cfg.Source.CutoffDate = cutoff
	return cfg
}
