package article

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"

	"transcript_harvester/internal/config"
	"transcript_harvester/internal/fetcher"
	"transcript_harvester/internal/logger"
	"transcript_harvester/internal/models"
)

var errNotFetched = errors.New("article was not fetched")

// Result pairs a record with the reason it was degraded, if any. Record is
// always usable.
type Result struct {
	Record models.ArticleRecord
	Err    error
}

// Collector fetches and segments articles in parallel. Results come back in
// input order regardless of completion order.
type Collector struct {
	segmenter *Segmenter
	logic     config.LogicConfig
	log       logger.Interface
}

func NewCollector(segmenter *Segmenter, logic config.LogicConfig, log logger.Interface) *Collector {
	return &Collector{
		segmenter: segmenter,
		logic:     logic,
		log:       log.With("component", "collector"),
	}
}

// requestTimeout bounds a whole request, body included, by the configured
// timeout and by the context deadline, whichever comes first.
func (c *Collector) requestTimeout(ctx context.Context) time.Duration {
	timeout := time.Duration(c.logic.TimeoutSec) * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

func (c *Collector) newCollector(ctx context.Context) *colly.Collector {
	col := colly.NewCollector(
		colly.Async(true),
		colly.AllowURLRevisit(),
	)
	if c.logic.UserAgent != "" {
		col.UserAgent = c.logic.UserAgent
	}
	col.IgnoreRobotsTxt = !c.logic.RespectRobots
	if c.logic.MaxBodyKB > 0 {
		// One byte over the limit tells a truncated body from one that fits.
		col.MaxBodySize = c.logic.MaxBodyKB*1024 + 1
	}
	if timeout := c.requestTimeout(ctx); timeout > 0 {
		col.SetRequestTimeout(timeout)
		col.WithTransport(&http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		})
	}
	if c.logic.RandomUserAgent {
		extensions.RandomUserAgent(col)
	}

	if err := col.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.logic.MaxConcurrentWorkers,
		Delay:       time.Duration(c.logic.DelayMS) * time.Millisecond,
	}); err != nil {
		c.log.Error("invalid limit rule", "error", err)
	}
	return col
}

// Collect never fails: a URL that cannot be fetched or parsed yields the
// empty record plus the error explaining why. It returns once every request
// has finished or ctx is done, whichever comes first.
func (c *Collector) Collect(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	done := make([]bool, len(urls))
	for i, u := range urls {
		results[i] = Result{Record: models.EmptyArticle(u), Err: &fetcher.FetchError{URL: u, Err: errNotFetched}}
	}
	if len(urls) == 0 {
		return results
	}

	var (
		mu     sync.Mutex
		closed bool
	)
	set := func(idx int, res Result) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		results[idx] = res
		done[idx] = true
	}
	indexOf := func(r *colly.Request) (int, bool) {
		idx, err := strconv.Atoi(r.Ctx.Get("index"))
		if err != nil || idx < 0 || idx >= len(urls) {
			return 0, false
		}
		return idx, true
	}

	col := c.newCollector(ctx)

	col.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	col.OnResponse(func(r *colly.Response) {
		idx, ok := indexOf(r.Request)
		if !ok {
			return
		}
		if limit := c.logic.MaxBodyKB * 1024; limit > 0 && len(r.Body) > limit {
			c.log.Warn("article body exceeds max_body_kb", "url", urls[idx], "max_body_kb", c.logic.MaxBodyKB)
			set(idx, Result{
				Record: models.EmptyArticle(urls[idx]),
				Err:    &fetcher.FetchError{URL: urls[idx], StatusCode: r.StatusCode, Err: fetcher.ErrBodyTooLarge},
			})
			return
		}
		record, err := c.segmenter.Segment(urls[idx], string(r.Body))
		set(idx, Result{Record: record, Err: err})
	})

	col.OnError(func(r *colly.Response, err error) {
		idx, ok := indexOf(r.Request)
		if !ok {
			return
		}
		set(idx, Result{
			Record: models.EmptyArticle(urls[idx]),
			Err:    &fetcher.FetchError{URL: urls[idx], StatusCode: r.StatusCode, Err: err},
		})
	})

	for i, u := range urls {
		if ctx.Err() != nil {
			break
		}
		reqCtx := colly.NewContext()
		reqCtx.Put("index", strconv.Itoa(i))
		if err := col.Request("GET", u, nil, reqCtx, nil); err != nil {
			set(i, Result{Record: models.EmptyArticle(u), Err: &fetcher.FetchError{URL: u, Err: err}})
		}
	}

	waited := make(chan struct{})
	go func() {
		col.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-ctx.Done():
		c.log.Warn("collect stopped before all articles finished", "error", ctx.Err())
	}

	mu.Lock()
	defer mu.Unlock()
	closed = true

	out := make([]Result, len(results))
	copy(out, results)
	if err := ctx.Err(); err != nil {
		for i, u := range urls {
			if !done[i] {
				out[i].Err = &fetcher.FetchError{URL: u, Err: err}
			}
		}
	}
	return out
}
