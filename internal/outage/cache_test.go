package outage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	resp  *StreetOutage
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, _, _, _ string) (*StreetOutage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.resp, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func offResponse() *StreetOutage {
	return &StreetOutage{
		Houses: map[string]HouseRecord{
			"12": {SubType: "planned", StartDate: "10:00 01.01.2025", EndDate: "14:00 01.01.2025"},
		},
	}
}

func newTestCache(f Fetcher, window time.Duration) (*Cache, *time.Time) {
	c := NewCache(f, window)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.entries.SetClock(func() time.Time { return now })
	return c, &now
}

func TestCacheWindowPreventsRefetch(t *testing.T) {
	f := &fakeFetcher{resp: offResponse()}
	c, _ := newTestCache(f, 10*time.Minute)
	ctx := context.Background()

	s1 := c.GetOrFetch(ctx, "Київ", "Хрещатик", "12")
	s2 := c.GetOrFetch(ctx, "Київ", "Хрещатик", "12")

	require.True(t, s1.InferredOff)
	assert.Equal(t, s1.Message, s2.Message)
	assert.Equal(t, 1, f.callCount(), "second call within window must not fetch")
}

func TestCacheDistinctKeys(t *testing.T) {
	f := &fakeFetcher{resp: offResponse()}
	c, _ := newTestCache(f, 10*time.Minute)
	ctx := context.Background()

	c.GetOrFetch(ctx, "Київ", "Хрещатик", "12")
	// Empty house is "whole street" — a distinct key.
	c.GetOrFetch(ctx, "Київ", "Хрещатик", "")

	assert.Equal(t, 2, f.callCount())
}

func TestCacheFetchFailureIsNeutral(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	c, _ := newTestCache(f, 10*time.Minute)

	s := c.GetOrFetch(context.Background(), "Київ", "Хрещатик", "12")
	assert.False(t, s.InferredOff, "failure is never evidence of an outage")
	assert.True(t, s.Failed)

	// The failure itself is cached — no hammering a broken source.
	c.GetOrFetch(context.Background(), "Київ", "Хрещатик", "12")
	assert.Equal(t, 1, f.callCount())
}

func TestCacheReusesStaleOnFailure(t *testing.T) {
	f := &fakeFetcher{resp: offResponse()}
	c, now := newTestCache(f, 10*time.Minute)
	ctx := context.Background()

	s1 := c.GetOrFetch(ctx, "Київ", "Хрещатик", "12")
	require.True(t, s1.InferredOff)

	// Window expires, then the source starts failing.
	*now = now.Add(11 * time.Minute)
	f.mu.Lock()
	f.resp, f.err = nil, errors.New("timeout")
	f.mu.Unlock()

	s2 := c.GetOrFetch(ctx, "Київ", "Хрещатик", "12")
	assert.True(t, s2.InferredOff, "last known verdict survives a source hiccup")
	assert.False(t, s2.Failed)
	assert.Equal(t, 2, f.callCount())
}
