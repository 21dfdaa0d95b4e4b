// Package fetcher retrieves listing and article markup over HTTP.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"transcript_harvester/internal/config"

	"golang.org/x/net/html/charset"
)

// MaxHops caps redirect chains.
const MaxHops = 15

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrBodyTooLarge     = errors.New("response body exceeds max_body_kb")
)

// FetchError is returned for every failed fetch: transport failure, timeout,
// non-2xx status or robots denial.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could plausibly succeed.
func (e *FetchError) Retryable() bool {
	if errors.Is(e.Err, ErrRobotsDisallowed) || errors.Is(e.Err, context.Canceled) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	}
	return false
}

// Fetcher returns the markup found at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	robots    *RobotsGate
}

func NewHTTPFetcher(logic config.LogicConfig) *HTTPFetcher {
	maxBody := int64(logic.MaxBodyKB) * 1024
	if maxBody <= 0 {
		maxBody = 10 * 1024 * 1024
	}

	client := &http.Client{
		Timeout: time.Duration(logic.TimeoutSec) * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxHops {
				return fmt.Errorf("stopped after %d redirects (MaxHops exceeded)", MaxHops)
			}
			return nil
		},
	}

	f := &HTTPFetcher{
		client:    client,
		userAgent: logic.UserAgent,
		maxBody:   maxBody,
	}
	if logic.RespectRobots {
		f.robots = NewRobotsGate(client, logic.UserAgent)
	}
	return f
}

// Fetch performs a single GET. Any failure is a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, urlStr string) (string, error) {
	if f.robots != nil && !f.robots.Allowed(ctx, urlStr) {
		return "", &FetchError{URL: urlStr, Err: ErrRobotsDisallowed}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return "", &FetchError{URL: urlStr, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: urlStr, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: urlStr, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return "", &FetchError{URL: urlStr, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(raw)) > f.maxBody {
		return "", &FetchError{URL: urlStr, StatusCode: resp.StatusCode, Err: ErrBodyTooLarge}
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return string(raw), nil
	}

	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", &FetchError{URL: urlStr, StatusCode: resp.StatusCode, Err: err}
	}

	return string(body), nil
}
