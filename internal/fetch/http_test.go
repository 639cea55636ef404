package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/imagematch"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.RequestsPerSecond = 0
	opts.Retry = common.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
	return opts
}

func TestHTTPFetcher_StatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		want        imagematch.FetchStatus
		wantCalls   int32
	}{
		{name: "ok image", status: http.StatusOK, contentType: "image/png", body: "pngbytes", want: imagematch.FetchSuccess, wantCalls: 1},
		{name: "ok with params", status: http.StatusOK, contentType: "image/jpeg; charset=binary", body: "jpg", want: imagematch.FetchSuccess, wantCalls: 1},
		{name: "not an image", status: http.StatusOK, contentType: "text/html", body: "<html>", want: imagematch.FetchPermanentError, wantCalls: 1},
		{name: "not found", status: http.StatusNotFound, want: imagematch.FetchNotFound, wantCalls: 1},
		{name: "gone", status: http.StatusGone, want: imagematch.FetchNotFound, wantCalls: 1},
		{name: "forbidden", status: http.StatusForbidden, want: imagematch.FetchPermanentError, wantCalls: 1},
		{name: "rate limited", status: http.StatusTooManyRequests, want: imagematch.FetchRateLimited, wantCalls: 3},
		{name: "server error", status: http.StatusBadGateway, want: imagematch.FetchTransientError, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			fetcher := NewHTTPFetcher(server.Client(), testOptions())
			outcome := fetcher.Fetch(context.Background(), server.URL+"/photo")

			assert.Equal(t, tt.want, outcome.Status)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.want == imagematch.FetchSuccess {
				assert.Equal(t, tt.body, string(outcome.Body))
			} else {
				assert.Nil(t, outcome.Body)
				assert.NotEmpty(t, outcome.Reason)
			}
		})
	}
}

func TestHTTPFetcher_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "image/*", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("webp"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client(), testOptions())
	outcome := fetcher.Fetch(context.Background(), server.URL)

	require.Equal(t, imagematch.FetchSuccess, outcome.Status)
	assert.Equal(t, "webp", string(outcome.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetcher_RejectsOversizedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(make([]byte, 100))
	}))
	defer server.Close()

	opts := testOptions()
	opts.MaxBytes = 10
	fetcher := NewHTTPFetcher(server.Client(), opts)
	outcome := fetcher.Fetch(context.Background(), server.URL)

	assert.Equal(t, imagematch.FetchPermanentError, outcome.Status)
	assert.Contains(t, outcome.Reason, "too large")
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	fetcher := NewHTTPFetcher(nil, testOptions())
	outcome := fetcher.Fetch(context.Background(), "://not a url")
	assert.Equal(t, imagematch.FetchPermanentError, outcome.Status)
}

func TestHTTPFetcher_ImplementsFetcher(t *testing.T) {
	var _ imagematch.Fetcher = NewHTTPFetcher(nil, DefaultOptions())
}
