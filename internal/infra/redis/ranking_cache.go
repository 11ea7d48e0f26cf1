package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizhub-service/internal/domain"
)

const rankingKeysKey = "ranking:keys"

// RankingCache stores ranking snapshots as JSON strings:
//
//	SET ranking:top:{limit} <json> EX ttl
//	SADD ranking:keys ranking:top:{limit}
type RankingCache struct {
	client *redis.Client
	ttl    time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRankingCache(client *redis.Client, ttl time.Duration) *RankingCache {
	return &RankingCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *RankingCache) Get(ctx context.Context, limit int) ([]domain.RankingEntry, bool) {
	raw, err := c.client.Get(ctx, rankingKey(limit)).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []domain.RankingEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *RankingCache) Put(ctx context.Context, limit int, entries []domain.RankingEntry) {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	key := rankingKey(limit)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, raw, ttl)
	pipe.SAdd(ctx, rankingKeysKey, key)
	_, _ = pipe.Exec(ctx)
}

// Invalidate drops every cached snapshot.
func (c *RankingCache) Invalidate(ctx context.Context) {
	keys, err := c.client.SMembers(ctx, rankingKeysKey).Result()
	if err != nil {
		return
	}
	keys = append(keys, rankingKeysKey)
	_ = c.client.Del(ctx, keys...).Err()
}

func rankingKey(limit int) string {
	return "ranking:top:" + strconv.Itoa(limit)
}

func (c *RankingCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
