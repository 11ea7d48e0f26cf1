package app

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"quizhub-service/internal/domain"
)

// RankingCache holds recent ranking snapshots keyed by limit.
type RankingCache interface {
	Get(ctx context.Context, limit int) ([]domain.RankingEntry, bool)
	Put(ctx context.Context, limit int, entries []domain.RankingEntry)
	Invalidate(ctx context.Context)
}

// RankingService serves the global ranking through a short-lived cache.
type RankingService struct {
	store *QuizStore
	cache RankingCache
	limit int
	sf    singleflight.Group

	mu  sync.Mutex
	gen uint64 // bumped by Invalidate
}

func NewRankingService(store *QuizStore, cache RankingCache, limit int) *RankingService {
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	return &RankingService{store: store, cache: cache, limit: limit}
}

// MaxLimit is the largest ranking Top will serve.
func (s *RankingService) MaxLimit() int {
	return s.limit
}

// Top returns up to limit users by score. A non-positive limit uses the
// configured one and larger limits are capped at it. Empty results are not
// cached, nor are results fetched across an Invalidate.
func (s *RankingService) Top(ctx context.Context, limit int) []domain.RankingEntry {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	if entries, ok := s.cache.Get(ctx, limit); ok {
		return entries
	}

	gen := s.generation()
	key := strconv.FormatUint(gen, 10) + ":" + strconv.Itoa(limit)
	result, _, _ := s.sf.Do(key, func() (interface{}, error) {
		if entries, ok := s.cache.Get(ctx, limit); ok {
			return entries, nil
		}
		entries := s.store.GetRanking(ctx, limit)
		if len(entries) > 0 {
			s.putIfCurrent(ctx, gen, limit, entries)
		}
		return entries, nil
	})
	return result.([]domain.RankingEntry)
}

// Invalidate forces the next read to hit the store. Fetches already in
// flight still return their result but do not cache it.
func (s *RankingService) Invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Invalidate(ctx)
}

func (s *RankingService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *RankingService) putIfCurrent(ctx context.Context, gen uint64, limit int, entries []domain.RankingEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.cache.Put(ctx, limit, entries)
}
