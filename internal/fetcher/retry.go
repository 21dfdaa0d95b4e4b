package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"transcript_harvester/internal/logger"
)

// RetryingFetcher retries transient failures with exponential backoff. It is
// meant for listing pages, where a failure would abort the whole run.
type RetryingFetcher struct {
	inner           Fetcher
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	log             logger.Interface
}

func NewRetryingFetcher(inner Fetcher, maxRetries int, initialInterval time.Duration, log logger.Interface) *RetryingFetcher {
	if initialInterval <= 0 {
		initialInterval = 500 * time.Millisecond
	}
	return &RetryingFetcher{
		inner:           inner,
		maxRetries:      maxRetries,
		initialInterval: initialInterval,
		maxInterval:     30 * time.Second,
		log:             log,
	}
}

func (r *RetryingFetcher) Fetch(ctx context.Context, urlStr string) (string, error) {
	if r.maxRetries <= 0 {
		return r.inner.Fetch(ctx, urlStr)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.initialInterval
	exp.MaxInterval = r.maxInterval
	exp.MaxElapsedTime = 0

	var body string
	op := func() error {
		var err error
		body, err = r.inner.Fetch(ctx, urlStr)
		if err == nil {
			return nil
		}
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) && !fetchErr.Retryable() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.log.Warn("retrying fetch", "url", urlStr, "wait", wait, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.maxRetries)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", err
	}
	return body, nil
}
