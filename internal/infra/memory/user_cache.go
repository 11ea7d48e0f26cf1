package memory

import (
	"context"
	"sync"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/pubsub"
)

// UserCache is an in-memory local user-stats cache.
type UserCache struct {
	mu    sync.RWMutex
	users map[string]domain.UserRecord
	hub   *pubsub.Hub[string, domain.UserRecord]
}

func NewUserCache() *UserCache {
	return &UserCache{
		users: make(map[string]domain.UserRecord),
		hub:   pubsub.NewHub[string, domain.UserRecord](),
	}
}

func (c *UserCache) Upsert(_ context.Context, rec domain.UserRecord) error {
	if rec.Avatar == "" {
		rec.Avatar = domain.DefaultAvatar
	}
	c.mu.Lock()
	c.users[rec.UID] = rec
	c.mu.Unlock()
	c.hub.Publish(rec.UID, rec)
	return nil
}

func (c *UserCache) Get(_ context.Context, uid string) (domain.UserRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.users[uid]
	if !ok {
		return domain.UserRecord{}, domain.ErrUserNotFound
	}
	return rec, nil
}

func (c *UserCache) Subscribe(_ context.Context, uid string) (<-chan domain.UserRecord, func(), error) {
	ch, cancel := c.hub.Subscribe(uid, func() (domain.UserRecord, bool) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		rec, ok := c.users[uid]
		return rec, ok
	})
	return ch, cancel, nil
}

func (c *UserCache) AddScore(_ context.Context, uid string, points int) error {
	return c.modify(uid, func(rec *domain.UserRecord) {
		rec.TotalScore += points
		rec.QuizzesDone++
	})
}

func (c *UserCache) SetAvatar(_ context.Context, uid, avatar string) error {
	return c.modify(uid, func(rec *domain.UserRecord) {
		rec.Avatar = avatar
	})
}

func (c *UserCache) SetName(_ context.Context, uid, name string) error {
	return c.modify(uid, func(rec *domain.UserRecord) {
		rec.Name = name
	})
}

func (c *UserCache) modify(uid string, fn func(rec *domain.UserRecord)) error {
	c.mu.Lock()
	rec, ok := c.users[uid]
	if !ok {
		c.mu.Unlock()
		return domain.ErrUserNotFound
	}
	fn(&rec)
	c.users[uid] = rec
	c.mu.Unlock()
	c.hub.Publish(uid, rec)
	return nil
}
