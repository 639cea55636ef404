package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/relisted/internal/model"
)

func TestEventTypes(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{DuplicateFound{}, TypeDuplicateFound},
		{ReviewRequired{}, TypeReviewRequired},
		{DeduplicationCompleted{}, TypeDeduplicationCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Type())
		})
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = r.Publish(ctx, DuplicateFound{MatchID: "m"})
			} else {
				_ = r.Publish(ctx, ReviewRequired{ReviewID: "r"})
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Events(), 20)
	assert.Len(t, r.OfType(TypeDuplicateFound), 10)
	assert.Equal(t, map[string]int{TypeDuplicateFound: 10, TypeReviewRequired: 10}, r.Count())

	r.Reset()
	assert.Empty(t, r.Events())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewLogSink(logger, slog.LevelInfo)

	err := sink.Publish(context.Background(), DuplicateFound{
		MatchID:    "match-1",
		SourceID:   "A",
		TargetID:   "B",
		Score:      0.93,
		Confidence: model.ConfidenceHigh,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "event=duplicate_found")
	assert.Contains(t, out, "match_id=match-1")
	assert.Contains(t, out, "confidence=HIGH")
}

func TestMulti(t *testing.T) {
	first, second := NewRecorder(), NewRecorder()
	failing := SinkFunc(func(context.Context, Event) error { return errors.New("broker down") })

	sink := Multi(first, failing, nil, second)
	err := sink.Publish(context.Background(), DeduplicationCompleted{ListingID: "A"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, first.Events(), 1)
	assert.Len(t, second.Events(), 1)

	assert.NoError(t, Multi(first).Publish(context.Background(), DeduplicationCompleted{}))
}
