package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quizhub-service/internal/domain"
)

// RankingCache keeps ranking snapshots per limit with a TTL.
type RankingCache struct {
	ttl   time.Duration
	clock func() time.Time
	rnd   *rand.Rand

	mu      sync.Mutex
	entries map[int]cachedRanking
}

type cachedRanking struct {
	entries   []domain.RankingEntry
	expiresAt time.Time
}

func NewRankingCache(ttl time.Duration) *RankingCache {
	return &RankingCache{
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[int]cachedRanking),
	}
}

func (c *RankingCache) Get(_ context.Context, limit int) ([]domain.RankingEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[limit]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	out := make([]domain.RankingEntry, len(entry.entries))
	copy(out, entry.entries)
	return out, true
}

func (c *RankingCache) Put(_ context.Context, limit int, entries []domain.RankingEntry) {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return
	}
	stored := make([]domain.RankingEntry, len(entries))
	copy(stored, entries)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[limit] = cachedRanking{entries: stored, expiresAt: c.clock().Add(ttl)}
}

// Invalidate drops every cached snapshot.
func (c *RankingCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]cachedRanking)
}

// ttlWithJitter adds up to 10% jitter to spread expirations.
func (c *RankingCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
