// Package events defines the domain events emitted by duplicate detection and the
// sinks that receive them.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Veraticus/relisted/internal/model"
)

// Event types.
const (
	TypeDuplicateFound         = "duplicate_found"
	TypeReviewRequired         = "review_required"
	TypeDeduplicationCompleted = "deduplication_completed"
)

// Event is a domain event published to a Sink.
type Event interface {
	Type() string
}

// DuplicateFound is emitted for every match at or above the auto threshold.
type DuplicateFound struct {
	MatchID    string           `json:"matchId"`
	SourceID   string           `json:"sourceId"`
	TargetID   string           `json:"targetId"`
	Confidence model.Confidence `json:"confidence"`
	Score      float64          `json:"score"`
}

// Type implements Event.
func (DuplicateFound) Type() string { return TypeDuplicateFound }

// ReviewRequired is emitted for every review-band match whose item is still pending.
type ReviewRequired struct {
	ReviewID string  `json:"reviewId"`
	SourceID string  `json:"sourceId"`
	TargetID string  `json:"targetId"`
	Score    float64 `json:"score"`
	Priority int     `json:"priority"`
}

// Type implements Event.
func (ReviewRequired) Type() string { return TypeReviewRequired }

// DeduplicationCompleted summarizes one successful detection run.
type DeduplicationCompleted struct {
	ListingID          string `json:"listingId"`
	DuplicatesFound    int    `json:"duplicatesFound"`
	ReviewItemsCreated int    `json:"reviewItemsCreated"`
	DurationMs         int64  `json:"durationMs"`
}

// Type implements Event.
func (DeduplicationCompleted) Type() string { return TypeDeduplicationCompleted }

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a sink logging at level. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: level}
}

// Publish implements Sink.
func (s *LogSink) Publish(ctx context.Context, event Event) error {
	attrs := []any{"event", event.Type()}
	switch e := event.(type) {
	case DuplicateFound:
		attrs = append(attrs,
			"match_id", e.MatchID,
			"source_id", e.SourceID,
			"target_id", e.TargetID,
			"score", e.Score,
			"confidence", e.Confidence)
	case ReviewRequired:
		attrs = append(attrs,
			"review_id", e.ReviewID,
			"source_id", e.SourceID,
			"target_id", e.TargetID,
			"score", e.Score,
			"priority", e.Priority)
	case DeduplicationCompleted:
		attrs = append(attrs,
			"listing_id", e.ListingID,
			"duplicates_found", e.DuplicatesFound,
			"review_items_created", e.ReviewItemsCreated,
			"duration_ms", e.DurationMs)
	}
	s.logger.Log(ctx, s.level, "dedup event", attrs...)
	return nil
}

// Recorder keeps every published event in memory.
type Recorder struct {
	events []Event
	mu     sync.Mutex
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish implements Sink.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of recorded events per type.
func (r *Recorder) Count() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range r.events {
		counts[e.Type()]++
	}
	return counts
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Multi fans an event out to every sink. All sinks are attempted; their errors are joined.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, event Event) error {
		var errs []error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Publish(ctx, event); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
