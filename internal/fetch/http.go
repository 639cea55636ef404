// Package fetch retrieves listing images over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/imagematch"
)

// Options configures an HTTPFetcher.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	MaxBytes          int64
	RequestsPerSecond float64
	Retry             common.RetryOptions
}

// DefaultOptions returns the default fetcher options.
func DefaultOptions() Options {
	return Options{
		Timeout:           15 * time.Second,
		MaxBytes:          imagematch.DefaultMaxImageBytes,
		RequestsPerSecond: 5,
		UserAgent:         "relisted/1.0",
		Retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
		},
	}
}

// HTTPFetcher implements imagematch.Fetcher over net/http.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
}

// NewHTTPFetcher creates a fetcher. A nil client gets one with opts.Timeout.
// A non-positive RequestsPerSecond disables throttling.
func NewHTTPFetcher(client *http.Client, opts Options) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = imagematch.DefaultMaxImageBytes
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &HTTPFetcher{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
	}
}

// Fetch retrieves one image, retrying transient failures.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) imagematch.FetchOutcome {
	var outcome imagematch.FetchOutcome

	err := common.WithRetry(ctx, func() error {
		outcome = f.fetchOnce(ctx, url)
		switch outcome.Status {
		case imagematch.FetchTransientError:
			return &common.RetryableError{Err: fmt.Errorf("%w: %s", common.ErrImageFetch, outcome.Reason), Retryable: true}
		case imagematch.FetchRateLimited:
			return &common.RetryableError{Err: common.ErrFetchRateLimit, Retryable: true}
		default:
			return nil
		}
	}, f.opts.Retry)
	if err != nil {
		slog.Debug("Image fetch gave up", "url", url, "status", outcome.Status.String(), "error", err)
	}
	return outcome
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) imagematch.FetchOutcome {
	if err := f.limiter.Wait(ctx); err != nil {
		return imagematch.TransientError(fmt.Sprintf("rate limiter: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return imagematch.PermanentError(fmt.Sprintf("invalid request: %v", err))
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return imagematch.TransientError(err.Error())
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("Failed to close image response body", "url", url, "error", closeErr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return imagematch.NotFound()
	case resp.StatusCode == http.StatusTooManyRequests:
		return imagematch.RateLimited()
	case resp.StatusCode >= http.StatusInternalServerError:
		return imagematch.TransientError(fmt.Sprintf("server returned %d", resp.StatusCode))
	default:
		return imagematch.PermanentError(fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	if !isImageContentType(resp.Header.Get("Content-Type")) {
		return imagematch.PermanentError(fmt.Sprintf("%v: content type %q", common.ErrNotAnImage, resp.Header.Get("Content-Type")))
	}
	if resp.ContentLength > f.opts.MaxBytes {
		return imagematch.PermanentError(fmt.Sprintf("%v: %d bytes", common.ErrImageTooLarge, resp.ContentLength))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return imagematch.TransientError(fmt.Sprintf("read body: %v", err))
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return imagematch.PermanentError(fmt.Sprintf("%v: more than %d bytes", common.ErrImageTooLarge, f.opts.MaxBytes))
	}
	return imagematch.Success(body)
}

func isImageContentType(header string) bool {
	if header == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
