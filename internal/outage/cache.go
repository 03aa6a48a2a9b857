package outage

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"lights-watch/internal/ttlmap"
)

// Fetcher is the external outage-data contract. It may fail or time out;
// callers must never treat a failure as evidence of either state.
type Fetcher interface {
	Fetch(ctx context.Context, city, street, house string) (*StreetOutage, error)
}

// Cache wraps the fetcher with a time-boxed summary cache keyed by the
// literal (city, street, house) triple. An empty house ("whole street") is a
// distinct key from any specific house. Concurrent callers for the same key
// are collapsed into one in-flight fetch.
type Cache struct {
	fetcher Fetcher
	entries *ttlmap.Map[string, Summary]
	group   singleflight.Group
	now     func() time.Time
}

func NewCache(f Fetcher, window time.Duration) *Cache {
	return &Cache{
		fetcher: f,
		entries: ttlmap.New[string, Summary](window),
		now:     time.Now,
	}
}

// GetOrFetch returns the cached summary for the address if still within the
// refresh window, otherwise fetches, interprets and caches. On fetch failure
// a stale entry is reused if present; with nothing to reuse, a neutral
// "no outage known" summary is cached so repeated evaluations don't hammer a
// failing source.
func (c *Cache) GetOrFetch(ctx context.Context, city, street, house string) Summary {
	key := city + "|" + street + "|" + house

	if s, ok := c.entries.Get(key); ok {
		return s
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we queued.
		if s, ok := c.entries.Get(key); ok {
			return s, nil
		}

		resp, err := c.fetcher.Fetch(ctx, city, street, house)
		if err != nil {
			log.Printf("[outage] fetch failed for %s: %v", key, err)
			if stale, present, _ := c.entries.GetStale(key); present && !stale.Failed {
				// Keep the last known verdict alive through source hiccups.
				c.entries.Set(key, stale)
				return stale, nil
			}
			s := FailedSummary()
			s.FetchedAt = c.now()
			c.entries.Set(key, s)
			return s, nil
		}

		s := Interpret(resp, city, street, house)
		s.FetchedAt = c.now()
		c.entries.Set(key, s)
		return s, nil
	})
	return v.(Summary)
}
