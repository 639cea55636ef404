// Package matching scores pairs of vehicle listings and finds likely duplicates.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/relisted/internal/imagematch"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/similarity"
)

// Engine computes weighted multi-signal similarity between listings.
// It holds no per-tenant state; configuration is passed into every call.
type Engine struct {
	concurrency int
}

// NewEngine creates an engine that scores candidates on up to GOMAXPROCS goroutines.
func NewEngine() *Engine {
	return NewEngineWithConcurrency(runtime.GOMAXPROCS(0))
}

// NewEngineWithConcurrency creates an engine with an explicit worker limit.
func NewEngineWithConcurrency(concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{concurrency: concurrency}
}

// Breakdown computes the six component scores for a pair.
func (e *Engine) Breakdown(source, target model.ListingData, cfg model.DeduplicationConfig) model.MatchScoreBreakdown {
	return model.MatchScoreBreakdown{
		VINScore:      VINScore(source.VIN, target.VIN),
		TitleScore:    TitleScore(source, target, cfg),
		PriceScore:    similarity.Proximity(source.Price, target.Price, cfg.PriceTolerance),
		MileageScore:  similarity.IntProximity(source.Mileage, target.Mileage, cfg.MileageTolerance),
		LocationScore: similarity.Location(place(source), place(target), cfg.LocationToleranceKm),
		ImageScore:    imagematch.Score(source.ImageHashes, target.ImageHashes, cfg.HammingThreshold),
	}
}

// Score compares two listings and classifies the pair against cfg.
func (e *Engine) Score(source, target model.ListingData, cfg model.DeduplicationConfig) model.MatchResult {
	b := e.Breakdown(source, target, cfg)

	overall := blend(
		weighted{cfg.VINWeight, b.VINScore},
		weighted{cfg.TitleWeight, b.TitleScore},
		weighted{cfg.PriceWeight, b.PriceScore},
		weighted{cfg.MileageWeight, b.MileageScore},
		weighted{cfg.LocationWeight, b.LocationScore},
		weighted{cfg.ImageWeight, b.ImageScore},
	)
	if cfg.WeightSum() <= 0 {
		overall = 0
	}
	// An exact VIN outweighs a mediocre blend of the other signals.
	if b.VINScore == 1 && overall < cfg.VINOverrideFloor {
		overall = cfg.VINOverrideFloor
	}

	return model.MatchResult{
		SourceID:         source.ID,
		TargetID:         target.ID,
		Breakdown:        b,
		OverallScore:     overall,
		IsAboveThreshold: overall >= cfg.OverallMatchThreshold,
		RequiresReview:   overall >= cfg.ReviewThreshold && overall < cfg.OverallMatchThreshold,
	}
}

// PassesPrefilter rejects candidates whose year differs by more than YearTolerance
// or whose make differs, when both sides are known. An exact VIN always passes.
func (e *Engine) PassesPrefilter(source, target model.ListingData, cfg model.DeduplicationConfig) bool {
	if VINScore(source.VIN, target.VIN) == 1 {
		return true
	}

	if source.Year != nil && target.Year != nil {
		diff := *source.Year - *target.Year
		if diff < 0 {
			diff = -diff
		}
		if diff > cfg.YearTolerance {
			return false
		}
	}

	makeA, makeB := strings.TrimSpace(source.Make), strings.TrimSpace(target.Make)
	if makeA != "" && makeB != "" && !strings.EqualFold(makeA, makeB) {
		return false
	}
	return true
}

// FindPotentialMatches scores every candidate against listing and returns the pairs
// that are above the match threshold or inside the review band, best first.
// Ties are ordered by target id. Cancellation aborts the scan with ctx's error.
func (e *Engine) FindPotentialMatches(
	ctx context.Context,
	listing model.ListingData,
	candidates []model.ListingData,
	cfg model.DeduplicationConfig,
) ([]model.MatchResult, error) {
	results := make([]*model.MatchResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range candidates {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			candidate := candidates[i]
			if candidate.ID == listing.ID {
				return nil
			}
			if !e.PassesPrefilter(listing, candidate, cfg) {
				return nil
			}
			result := e.Score(listing, candidate, cfg)
			if result.IsAboveThreshold || result.RequiresReview {
				results[i] = &result
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("candidate scan aborted: %w", err)
	}

	matches := make([]model.MatchResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			matches = append(matches, *r)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].OverallScore != matches[j].OverallScore {
			return matches[i].OverallScore > matches[j].OverallScore
		}
		return matches[i].TargetID < matches[j].TargetID
	})

	slog.Debug("Scored candidates",
		"listing_id", listing.ID,
		"candidates", len(candidates),
		"matches", len(matches))
	return matches, nil
}

func place(l model.ListingData) similarity.Place {
	return similarity.Place{
		Latitude:   l.Latitude,
		Longitude:  l.Longitude,
		City:       l.City,
		Province:   l.Province,
		PostalCode: l.PostalCode,
	}
}
