// Package imagematch fetches and fingerprints listing images and compares
// fingerprint sets with a majority-vote rule.
package imagematch

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/relisted/internal/imagehash"
)

// Defaults for Options.
const (
	DefaultMaxImages     = 3
	DefaultMaxImageBytes = 10 << 20
)

// Options bounds the work done per listing.
type Options struct {
	MaxImages        int
	HammingThreshold int
	MaxImageBytes    int
	Concurrency      int
}

// DefaultOptions returns the default aggregation options.
func DefaultOptions() Options {
	return Options{
		MaxImages:        DefaultMaxImages,
		HammingThreshold: imagehash.DefaultThreshold,
		MaxImageBytes:    DefaultMaxImageBytes,
		Concurrency:      DefaultMaxImages,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxImages <= 0 {
		o.MaxImages = d.MaxImages
	}
	if o.HammingThreshold < 0 {
		o.HammingThreshold = d.HammingThreshold
	}
	if o.MaxImageBytes <= 0 {
		o.MaxImageBytes = d.MaxImageBytes
	}
	if o.Concurrency <= 0 {
		o.Concurrency = o.MaxImages
	}
	return o
}

// HashResult reports the fingerprints computed for a listing and the per-URL failures.
type HashResult struct {
	Failures  map[string]string
	Hashes    []uint64
	Attempted int
	Succeeded int
	Failed    int
}

// Aggregator hashes listing images through a Fetcher.
type Aggregator struct {
	fetcher Fetcher
	opts    Options
}

// NewAggregator creates an aggregator. Zero option fields take their defaults.
func NewAggregator(fetcher Fetcher, opts Options) *Aggregator {
	return &Aggregator{fetcher: fetcher, opts: opts.withDefaults()}
}

// Options returns the effective options.
func (a *Aggregator) Options() Options {
	return a.opts
}

type slot struct {
	err  string
	hash uint64
	ok   bool
}

// HashListing fetches and hashes up to MaxImages distinct URLs concurrently.
// A failed image is recorded in Failures and never aborts the others.
// Hashes follow URL order. Only cancellation returns an error.
func (a *Aggregator) HashListing(ctx context.Context, urls []string) (HashResult, error) {
	selected := firstDistinct(urls, a.opts.MaxImages)
	result := HashResult{Attempted: len(selected), Failures: make(map[string]string)}
	if len(selected) == 0 {
		return result, nil
	}

	slots := make([]slot, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)

	for i, url := range selected {
		i, url := i, url
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = a.hashOne(gctx, url)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("image hashing cancelled: %w", err)
	}

	for i, s := range slots {
		if s.ok {
			result.Hashes = append(result.Hashes, s.hash)
			result.Succeeded++
			continue
		}
		result.Failed++
		result.Failures[selected[i]] = s.err
	}

	if result.Failed > 0 {
		slog.Debug("Some listing images could not be hashed",
			"attempted", result.Attempted,
			"failed", result.Failed)
	}
	return result, nil
}

func (a *Aggregator) hashOne(ctx context.Context, url string) slot {
	outcome := a.fetcher.Fetch(ctx, url)

	switch outcome.Status {
	case FetchSuccess:
		if len(outcome.Body) > a.opts.MaxImageBytes {
			return slot{err: fmt.Sprintf("image exceeds %d bytes", a.opts.MaxImageBytes)}
		}
		hash, err := imagehash.Hash(outcome.Body)
		if err != nil {
			return slot{err: err.Error()}
		}
		return slot{hash: hash, ok: true}
	case FetchNotFound, FetchRateLimited, FetchTransientError, FetchPermanentError:
		reason := outcome.Reason
		if reason == "" {
			reason = outcome.Status.String()
		}
		return slot{err: fmt.Sprintf("%s: %s", outcome.Status, reason)}
	default:
		return slot{err: fmt.Sprintf("unknown fetch status %d", outcome.Status)}
	}
}

func firstDistinct(urls []string, limit int) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, limit)
	for _, u := range urls {
		if len(out) == limit {
			break
		}
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
