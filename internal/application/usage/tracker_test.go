package usage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-search-api/internal/application/search"
)

type setWindow struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (w *setWindow) MarkFirst(_ context.Context, key string) (bool, error) {
	if w.err != nil {
		return false, w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen == nil {
		w.seen = map[string]bool{}
	}
	if w.seen[key] {
		return false, nil
	}
	w.seen[key] = true
	return true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (p *recordingPublisher) PublishUsage(_ context.Context, ev *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func TestTracker_DedupsWithinWindow(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(&setWindow{}, pub)
	ctx := context.Background()

	ok, err := tr.Record(ctx, Event{SessionID: "s1", Query: "Water Policy", ResultCount: 3})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.Record(ctx, Event{SessionID: "s1", Query: "  water   policy"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = tr.Record(ctx, Event{SessionID: "s2", Query: "water policy"})
	assert.True(t, ok)

	ok, _ = tr.Record(ctx, Event{SessionID: "s1", Query: "water policy", Filters: search.Filters{Country: "Kenya"}})
	assert.True(t, ok)

	require.Len(t, pub.events, 3)
	assert.Equal(t, "water policy", pub.events[0].Query)
	assert.NotEmpty(t, pub.events[0].ID)
	assert.False(t, pub.events[0].OccurredAt.IsZero())
}

func TestTracker_IgnoresAnonymousOrEmpty(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(&setWindow{}, pub)

	ok, err := tr.Record(context.Background(), Event{Query: "water"})
	assert.NoError(t, err)
	assert.False(t, ok)
	ok, _ = tr.Record(context.Background(), Event{SessionID: "s", Query: "  "})
	assert.False(t, ok)
	assert.Empty(t, pub.events)
}

func TestTracker_WindowFailureStillPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(&setWindow{err: errors.New("redis down")}, pub)

	ok, err := tr.Record(context.Background(), Event{SessionID: "s", Query: "water"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTracker_PublishFailure(t *testing.T) {
	tr := NewTracker(&setWindow{}, &recordingPublisher{err: errors.New("xadd failed")})
	_, err := tr.Record(context.Background(), Event{SessionID: "s", Query: "water"})
	assert.Error(t, err)
}

func TestTracker_Disabled(t *testing.T) {
	var tr *Tracker
	ok, err := tr.Record(context.Background(), Event{SessionID: "s", Query: "q"})
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, NewTracker(nil, &recordingPublisher{}).Enabled())
}

func TestDedupKey_Stable(t *testing.T) {
	a := DedupKey(Event{SessionID: "s", Query: "Water", Filters: search.Filters{Topic: "Energy"}})
	b := DedupKey(Event{SessionID: "s", Query: "water ", Filters: search.Filters{Topic: "energy"}})
	c := DedupKey(Event{SessionID: "s", Query: "water", Filters: search.Filters{Year: 2020}})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "usage:dedup:")
}
