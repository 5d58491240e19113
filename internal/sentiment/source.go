// Package sentiment supplies the per-page 5-rank sentiment distribution the
// insights pipeline folds into its payload.
package sentiment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"chatpulse-insights/internal/insights"
)

// StaticSource serves distributions from an in-memory table, seeded from the
// environment or mutated at runtime. A page with no records yields the five
// ranks with zero counts, which is valid data, not an error.
type StaticSource struct {
	mu     sync.RWMutex
	byPage map[string][5]int
}

func NewStaticSource(seed map[string][5]int) *StaticSource {
	byPage := make(map[string][5]int, len(seed))
	for pageID, counts := range seed {
		byPage[pageID] = counts
	}
	return &StaticSource{byPage: byPage}
}

// SetCounts replaces the distribution for a page. Counts index 0 holds
// rank 1.
func (s *StaticSource) SetCounts(pageID string, counts [5]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPage[pageID] = counts
}

func (s *StaticSource) Distribution(_ context.Context, pageID string, _ int) ([]insights.SentimentBucket, error) {
	s.mu.RLock()
	counts := s.byPage[pageID]
	s.mu.RUnlock()

	buckets := make([]insights.SentimentBucket, 0, 5)
	for i, count := range counts {
		buckets = append(buckets, insights.SentimentBucket{Rank: i + 1, Count: count})
	}
	return buckets, nil
}

// ParseSeed parses the SENTIMENT_SEED env format: semicolon-separated
// "page:c1,c2,c3,c4,c5" groups, counts ordered rank 1..5.
func ParseSeed(raw string) (map[string][5]int, error) {
	seed := make(map[string][5]int)
	for _, group := range strings.Split(raw, ";") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		pageID, countsRaw, found := strings.Cut(group, ":")
		if !found {
			return nil, fmt.Errorf("invalid sentiment seed group %q", group)
		}
		parts := strings.Split(countsRaw, ",")
		if len(parts) != 5 {
			return nil, fmt.Errorf("sentiment seed for page %s needs 5 counts, got %d", pageID, len(parts))
		}
		var counts [5]int
		for i, part := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid sentiment count %q for page %s", part, pageID)
			}
			counts[i] = n
		}
		seed[strings.TrimSpace(pageID)] = counts
	}
	return seed, nil
}

// CachedSource wraps any source with a TTL cache keyed by page and window,
// so dashboard polling doesn't recompute the distribution on every request.
type CachedSource struct {
	inner insights.SentimentSource
	cache *gocache.Cache
}

// NewCachedSource caches distributions for ttl (default: 15m).
func NewCachedSource(inner insights.SentimentSource, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedSource{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedSource) Distribution(ctx context.Context, pageID string, days int) ([]insights.SentimentBucket, error) {
	key := pageID + ":" + strconv.Itoa(days)
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]insights.SentimentBucket), nil
	}

	buckets, err := c.inner.Distribution(ctx, pageID, days)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, buckets)
	return buckets, nil
}
