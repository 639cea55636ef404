// Package dedup runs duplicate detection for incoming listings and persists its outcome.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/relisted/internal/audit"
	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/events"
	"github.com/Veraticus/relisted/internal/imagematch"
	"github.com/Veraticus/relisted/internal/matching"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/service"
)

// Store is the persistence the detector writes to.
type Store interface {
	service.MatchStore
	service.ReviewStore
	service.AuditStore
}

// Result is the outcome of one detection run. Failures are reported here and
// never returned as errors; the caller retries the whole listing.
type Result struct {
	Err                error
	ImageFailures      map[string]string
	ListingID          string
	AuditEntryID       string
	Decision           model.AuditDecision
	Matches            []model.DuplicateMatch
	ReviewItems        []model.ReviewItem
	ImageHashes        []uint64
	ImageSelection     imagematch.Selection
	Duration           time.Duration
	ReviewItemsCreated int
	Success            bool
}

// Message returns the failure message, or "" for a successful run.
func (r *Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// DuplicatesFound returns the number of matches above the auto threshold.
func (r *Result) DuplicatesFound() int {
	return len(r.Matches)
}

// Detector scores a listing against its candidates and records the matches,
// review items, audit entry and events that follow.
type Detector struct {
	engine  *matching.Engine
	store   Store
	auditor *audit.Service
	sink    events.Sink
	images  *imagematch.Aggregator
	logger  *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithSink publishes events to sink.
func WithSink(sink events.Sink) Option {
	return func(d *Detector) { d.sink = sink }
}

// WithImages hashes listing images through agg when a listing has URLs but no stored hashes.
func WithImages(agg *imagematch.Aggregator) Option {
	return func(d *Detector) { d.images = agg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

// NewDetector creates a detector.
func NewDetector(engine *matching.Engine, store Store, opts ...Option) *Detector {
	d := &Detector{
		engine:  engine,
		store:   store,
		auditor: audit.NewService(store),
		sink:    events.Discard,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sink == nil {
		d.sink = events.Discard
	}
	return d
}

// Detect finds the duplicates of listing among candidates using cfg.
func (d *Detector) Detect(
	ctx context.Context,
	tenantID string,
	listing model.ListingData,
	candidates []model.ListingData,
	cfg model.DeduplicationConfig,
) *Result {
	start := time.Now()
	res := &Result{ListingID: listing.ID}

	err := d.run(ctx, tenantID, listing, candidates, cfg, res)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("%w: listing %s: %w", common.ErrDetectionFailed, listing.ID, err)
		d.logger.Error("Duplicate detection failed",
			"listing_id", listing.ID,
			"tenant_id", tenantID,
			"duration_ms", res.Duration.Milliseconds(),
			"error", err)
		return res
	}

	res.Success = true
	d.publish(ctx, events.DeduplicationCompleted{
		ListingID:          listing.ID,
		DuplicatesFound:    res.DuplicatesFound(),
		ReviewItemsCreated: res.ReviewItemsCreated,
		DurationMs:         res.Duration.Milliseconds(),
	})
	d.logger.Info("Duplicate detection completed",
		"listing_id", listing.ID,
		"duplicates", res.DuplicatesFound(),
		"review_items", len(res.ReviewItems),
		"decision", res.Decision)
	return res
}

func (d *Detector) run(
	ctx context.Context,
	tenantID string,
	listing model.ListingData,
	candidates []model.ListingData,
	cfg model.DeduplicationConfig,
	res *Result,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during detection: %v", r)
		}
	}()

	if strings.TrimSpace(tenantID) == "" {
		return errors.New("tenant id is required")
	}
	if strings.TrimSpace(listing.ID) == "" {
		return errors.New("listing id is required")
	}
	if _, err := cfg.Validate(); err != nil {
		return err
	}

	if len(listing.ImageHashes) == 0 && len(listing.ImageURLs) > 0 && d.images != nil {
		hashed, err := d.images.HashListing(ctx, listing.ImageURLs)
		if err != nil {
			return err
		}
		listing.ImageHashes = hashed.Hashes
		res.ImageHashes = hashed.Hashes
		if hashed.Failed > 0 {
			res.ImageFailures = hashed.Failures
		}
	}

	res.ImageSelection = selectImageMatch(listing.ImageHashes, candidates, cfg.HammingThreshold)

	results, err := d.engine.FindPotentialMatches(ctx, listing, candidates, cfg)
	if err != nil {
		return err
	}

	var best, bestReview *model.MatchResult
	for i := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := &results[i]
		switch {
		case r.IsAboveThreshold:
			if best == nil {
				best = r
			}
			if err := d.recordDuplicate(ctx, tenantID, *r, res); err != nil {
				return err
			}
		case r.RequiresReview:
			if bestReview == nil {
				bestReview = r
			}
			if err := d.recordReview(ctx, tenantID, *r, res); err != nil {
				return err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return d.recordAudit(ctx, tenantID, listing.ID, best, bestReview, res)
}

func (d *Detector) recordDuplicate(ctx context.Context, tenantID string, r model.MatchResult, res *Result) error {
	match := model.NewDuplicateMatch(tenantID, r)
	created, err := d.store.UpsertDuplicateMatch(ctx, &match)
	if err != nil {
		return fmt.Errorf("failed to store duplicate match: %w", err)
	}
	res.Matches = append(res.Matches, match)

	if created {
		d.logger.Debug("Stored duplicate match",
			"match_id", match.ID,
			"source_id", match.SourceListingID,
			"target_id", match.TargetListingID,
			"score", match.OverallScore)
	}
	d.publish(ctx, events.DuplicateFound{
		MatchID:    match.ID,
		SourceID:   match.SourceListingID,
		TargetID:   match.TargetListingID,
		Score:      match.OverallScore,
		Confidence: match.Confidence,
	})
	return nil
}

func (d *Detector) recordReview(ctx context.Context, tenantID string, r model.MatchResult, res *Result) error {
	match := model.NewDuplicateMatch(tenantID, r)
	if _, err := d.store.UpsertDuplicateMatch(ctx, &match); err != nil {
		return fmt.Errorf("failed to store review match: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	item := model.NewReviewItem(match)
	created, err := d.store.EnsureReviewItem(ctx, &item)
	if err != nil {
		return fmt.Errorf("failed to store review item: %w", err)
	}
	res.ReviewItems = append(res.ReviewItems, item)
	if created {
		res.ReviewItemsCreated++
	}

	if item.Status == model.ReviewPending {
		d.publish(ctx, events.ReviewRequired{
			ReviewID: item.ID,
			SourceID: item.SourceListingID,
			TargetID: item.TargetListingID,
			Score:    item.MatchScore,
			Priority: item.Priority,
		})
	}
	return nil
}

func (d *Detector) recordAudit(
	ctx context.Context,
	tenantID, listingID string,
	best, bestReview *model.MatchResult,
	res *Result,
) error {
	decision := audit.AutomaticDecision{
		TenantID:  tenantID,
		ListingID: listingID,
		Decision:  model.DecisionNewListing,
		Reason:    model.ReasonNoMatch,
	}

	chosen := best
	switch {
	case best != nil:
		decision.Decision = model.DecisionDuplicate
		decision.Reason = reasonFor(*best, res.ImageSelection)
	case bestReview != nil:
		chosen = bestReview
		decision.Decision = model.DecisionNearMatch
		decision.Reason = model.ReasonFuzzyMatch
	}
	if chosen != nil {
		confidence := chosen.OverallScore * 100
		decision.Confidence = &confidence
		decision.OtherID = chosen.TargetID
		decision.Details = &model.FuzzyMatchDetails{
			MatchScoreBreakdown: chosen.Breakdown,
			OverallScore:        chosen.OverallScore,
		}
	}

	entry, err := d.auditor.RecordAutomaticDecision(ctx, decision)
	if err != nil {
		return err
	}
	res.AuditEntryID = entry.ID
	res.Decision = entry.Decision
	return nil
}

// selectImageMatch finds the candidate whose images match a majority of the listing's.
func selectImageMatch(hashes []uint64, candidates []model.ListingData, threshold int) imagematch.Selection {
	pool := make([]imagematch.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.ImageHashes) > 0 {
			pool = append(pool, imagematch.Candidate{ID: c.ID, Hashes: c.ImageHashes})
		}
	}
	return imagematch.BestCandidate(hashes, pool, threshold)
}

// reasonFor explains a duplicate: a VIN match wins, then an image majority on
// the same target, otherwise the weighted fuzzy score.
func reasonFor(best model.MatchResult, images imagematch.Selection) model.AuditReason {
	switch {
	case best.Breakdown.VINScore == 1:
		return model.ReasonVINMatch
	case images.Found && images.CandidateID == best.TargetID:
		return model.ReasonImageMatch
	default:
		return model.ReasonFuzzyMatch
	}
}

// publish delivers an event. Sink failures are logged and never fail detection.
func (d *Detector) publish(ctx context.Context, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Event sink panicked", "event", event.Type(), "panic", r)
		}
	}()
	if err := d.sink.Publish(ctx, event); err != nil {
		d.logger.Warn("Failed to publish event", "event", event.Type(), "error", err)
	}
}
