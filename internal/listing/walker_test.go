package listing_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript_harvester/internal/config"
	"transcript_harvester/internal/fetcher"
	"transcript_harvester/internal/listing"
	"transcript_harvester/internal/logger"
	"transcript_harvester/internal/models"
	"transcript_harvester/internal/urlset"
)

func newWalker(t *testing.T, f fetcher.Fetcher, cfg *config.HarvestConfig) *listing.Walker {
	t.Helper()

	p, err := listing.NewParser(cfg.Source.Listing, cfg.Source.BaseURL)
	require.NoError(t, err)

	w, err := listing.NewWalker(f, p, cfg, logger.NewNoOp())
	require.NoError(t, err)
	return w
}

// tenRecords builds R1..R10, newest first, five per page.
func tenRecords() [][]entry {
	var all []entry
	for i := 1; i <= 10; i++ {
		all = append(all, rec(i, fmt.Sprintf("Feb %d, 2020", 20-i)))
	}
	return [][]entry{all[:5], all[5:]}
}

func TestWalker_IncrementalDiscovery(t *testing.T) {
	seen := urlset.New()
	for i := 5; i <= 10; i++ {
		seen.Add(recURL(i))
	}

	f := &pagedFetcher{pages: tenRecords()}
	res, err := newWalker(t, f, testConfig("Jan 1, 2020")).Walk(context.Background(), seen)
	require.NoError(t, err)

	assert.Equal(t, []string{recURL(1), recURL(2), recURL(3), recURL(4)}, urls(res.Records))
	assert.Equal(t, models.StopCaughtUp, res.Reason)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, []int{1}, f.fetched)
}

func TestWalker_IdempotentDiscovery(t *testing.T) {
	f := &pagedFetcher{pages: tenRecords()}
	w := newWalker(t, f, testConfig("Jan 1, 2020"))

	first, err := w.Walk(context.Background(), urlset.New())
	require.NoError(t, err)
	require.Len(t, first.Records, 10)
	assert.Equal(t, models.StopListingExhausted, first.Reason)

	seen := urlset.New()
	for _, r := range first.Records {
		seen.Add(r.URL)
	}

	second, err := w.Walk(context.Background(), seen)
	require.NoError(t, err)
	assert.Empty(t, second.Records)
	assert.Equal(t, models.StopCaughtUp, second.Reason)
}

func TestWalker_CutoffBoundary(t *testing.T) {
	page := []entry{
		rec(1, "Jan 10, 2020"),
		rec(2, "Jan 9, 2020"),
		rec(3, "Jan 8, 2020"),
		rec(4, "Jan 2, 2020"),
		rec(5, "Jan 1, 2020"),
		rec(6, "Dec 31, 2019"),
		rec(7, "Dec 30, 2019"),
	}
	f := &pagedFetcher{pages: [][]entry{page, {rec(8, "Dec 1, 2019")}}}

	res, err := newWalker(t, f, testConfig("Jan 1, 2020")).Walk(context.Background(), urlset.New())
	require.NoError(t, err)

	assert.Equal(t, []string{recURL(1), recURL(2), recURL(3), recURL(4), recURL(5)}, urls(res.Records))
	assert.Equal(t, models.StopCutoffReached, res.Reason)
	assert.Equal(t, []int{1}, f.fetched, "no page after the boundary is fetched")
}

func TestWalker_CutoffOnLaterPage(t *testing.T) {
	f := &pagedFetcher{pages: [][]entry{
		{rec(1, "Jan 10, 2020"), rec(2, "Jan 9, 2020")},
		{rec(3, "Jan 3, 2020"), rec(4, "Dec. 31, 2019"), rec(5, "Jan 5, 2020")},
	}}

	res, err := newWalker(t, f, testConfig("Jan 1, 2020")).Walk(context.Background(), urlset.New())
	require.NoError(t, err)

	assert.Equal(t, []string{recURL(1), recURL(2), recURL(3)}, urls(res.Records))
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, models.StopCutoffReached, res.Reason)
}

func TestWalker_CutoffOnAbbreviatedSeptember(t *testing.T) {
	f := &pagedFetcher{pages: [][]entry{{
		rec(1, "Oct. 5, 2019"),
		rec(2, "Sept. 30, 2019"),
		rec(3, "Sept. 29, 2019"),
	}}}

	res, err := newWalker(t, f, testConfig("Oct 1, 2019")).Walk(context.Background(), urlset.New())
	require.NoError(t, err)

	assert.Equal(t, []string{recURL(1)}, urls(res.Records))
	assert.Equal(t, models.StopCutoffReached, res.Reason)
	assert.Zero(t, res.UndatedRecords)
	assert.Equal(t, 1, res.Pages)
}

func TestWalker_MalformedDateIsPermissive(t *testing.T) {
	f := &pagedFetcher{pages: [][]entry{{
		rec(1, "Jan 10, 2020"),
		rec(2, "sometime last week"),
		rec(3, "Jan 8, 2020"),
		rec(4, "Dec 1, 2019"),
	}}}

	res, err := newWalker(t, f, testConfig("Jan 1, 2020")).Walk(context.Background(), urlset.New())
	require.NoError(t, err)

	assert.Equal(t, []string{recURL(1), recURL(2), recURL(3)}, urls(res.Records))
	assert.Equal(t, 1, res.UndatedRecords)
	assert.Equal(t, models.StopCutoffReached, res.Reason)
}

func TestWalker_UndatedSeenRecordStillStops(t *testing.T) {
	seen := urlset.New(recURL(2))
	f := &pagedFetcher{pages: [][]entry{{rec(1, "Jan 10, 2020"), rec(2, "n/a"), rec(3, "Jan 8, 2020")}}}

	res, err := newWalker(t, f, testConfig("Jan 1, 2020")).Walk(context.Background(), seen)
	require.NoError(t, err)

	assert.Equal(t, []string{recURL(1)}, urls(res.Records))
	assert.Equal(t, models.StopCaughtUp, res.Reason)
}

func TestWalker_SkipsMalformedAnchorAndContinues(t *testing.T) {
	broken := rec(2, "Jan 9, 2020")
	broken.omitTitle = true
	f := &pagedFetcher{pages: [][]entry{
		{rec(1, "Jan 10, 2020"), broken, rec(3, "Jan 8, 2020")},
		{rec(4, "Jan 7, 2020")},
	}}

	res, err := newWalker(t, f, testConfig("Jan 1, 2020")).Walk(context.Background(), urlset.New())
	require.NoError(t, err)

	assert.Equal(t, []string{recURL(1), recURL(3), recURL(4)}, urls(res.Records))
	assert.Equal(t, 1, res.SkippedAnchors)
	assert.Equal(t, models.StopListingExhausted, res.Reason)
	assert.Equal(t, 3, res.Pages)
}

func TestWalker_DuplicateAcrossPagesKeptOnce(t *testing.T) {
	f := &pagedFetcher{pages: [][]entry{
		{rec(1, "Jan 10, 2020"), rec(2, "Jan 9, 2020")},
		{rec(2, "Jan 9, 2020"), rec(3, "Jan 8, 2020")},
	}}

	res, err := newWalker(t, f, testConfig("Jan 1, 2020")).Walk(context.Background(), urlset.New())
	require.NoError(t, err)
	assert.Equal(t, []string{recURL(1), recURL(2), recURL(3)}, urls(res.Records))
}

func TestWalker_ListingFetchFailureIsFatal(t *testing.T) {
	f := &pagedFetcher{
		pages: tenRecords(),
		fail: map[int]error{2: &fetcher.FetchError{
			URL: "page2", StatusCode: http.StatusBadGateway, Err: fetcher.ErrUnexpectedStatus,
		}},
	}

	res, err := newWalker(t, f, testConfig("Jan 1, 2020")).Walk(context.Background(), urlset.New())
	require.Error(t, err)
	assert.Nil(t, res)

	var fetchErr *fetcher.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusBadGateway, fetchErr.StatusCode)
}

// An old cutoff on an endless listing never hits a boundary; only the page
// cap or the context ends the walk.
func TestWalker_UnreachableCutoff(t *testing.T) {
	t.Run("page limit", func(t *testing.T) {
		cfg := testConfig("Jan 1, 1990")
		cfg.Source.MaxPages = 3
		f := &pagedFetcher{endless: true}

		res, err := newWalker(t, f, cfg).Walk(context.Background(), urlset.New())
		require.NoError(t, err)
		assert.Equal(t, models.StopPageLimit, res.Reason)
		assert.Equal(t, 3, res.Pages)
		assert.Len(t, res.Records, 6)
	})

	t.Run("context deadline", func(t *testing.T) {
		cfg := testConfig("Jan 1, 1990")
		cfg.Logic.DelayMS = 5
		f := &pagedFetcher{endless: true}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
		defer cancel()

		res, err := newWalker(t, f, cfg).Walk(ctx, urlset.New())
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, res)
		assert.Greater(t, len(f.fetched), 1)
	})
}

func TestWalker_OverHTTP(t *testing.T) {
	pages := tenRecords()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var page int
		_, _ = fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		if page < 1 || page > len(pages) {
			_, _ = w.Write([]byte(listingHTML()))
			return
		}
		_, _ = w.Write([]byte(listingHTML(pages[page-1]...)))
	}))
	defer srv.Close()

	cfg := testConfig("Feb 15, 2020")
	cfg.Source.ListingURL = srv.URL + "/earnings-call-transcripts/"
	f := fetcher.NewHTTPFetcher(cfg.Logic)

	res, err := newWalker(t, f, cfg).Walk(context.Background(), urlset.New())
	require.NoError(t, err)

	// Feb 19 .. Feb 15 are kept; Feb 14 (R6) is the boundary.
	assert.Equal(t, []string{recURL(1), recURL(2), recURL(3), recURL(4), recURL(5)}, urls(res.Records))
	assert.Equal(t, models.StopCutoffReached, res.Reason)
	assert.Equal(t, 2, res.Pages)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"Jan 1, 2020", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"Dec. 31, 2019", time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"Sept. 30, 2019", time.Date(2019, 9, 30, 0, 0, 0, 0, time.UTC), true},
		{"Sept 3, 2020", time.Date(2020, 9, 3, 0, 0, 0, 0, time.UTC), true},
		{"Sep. 3, 2020", time.Date(2020, 9, 3, 0, 0, 0, 0, time.UTC), true},
		{" Feb 3, 2020 ", time.Date(2020, 2, 3, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := listing.ParseDate(tt.in)
			if !tt.ok {
				require.ErrorIs(t, err, listing.ErrDateUnparseable)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}
