// Package sqlite holds the on-device user-stats cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/pubsub"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_stats (
    uid TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    total_score INTEGER NOT NULL DEFAULT 0,
    quizzes_done INTEGER NOT NULL DEFAULT 0,
    avatar TEXT NOT NULL DEFAULT '👤'
);`

// UserCache stores one user_stats row per user and streams row changes to subscribers.
type UserCache struct {
	db  *sql.DB
	hub *pubsub.Hub[string, domain.UserRecord]
}

func NewUserCache(path string) (*UserCache, error) {
	if strings.TrimSpace(path) == "" {
		path = "quizhub.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init user_stats: %w", err)
	}

	return &UserCache{
		db:  db,
		hub: pubsub.NewHub[string, domain.UserRecord](),
	}, nil
}

func (c *UserCache) Close() error {
	return c.db.Close()
}

func (c *UserCache) Upsert(ctx context.Context, rec domain.UserRecord) error {
	if rec.Avatar == "" {
		rec.Avatar = domain.DefaultAvatar
	}
	_, err := c.db.ExecContext(ctx, `
INSERT INTO user_stats (uid, name, email, total_score, quizzes_done, avatar)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(uid) DO UPDATE SET
    name = excluded.name,
    email = excluded.email,
    total_score = excluded.total_score,
    quizzes_done = excluded.quizzes_done,
    avatar = excluded.avatar`,
		rec.UID, rec.Name, rec.Email, rec.TotalScore, rec.QuizzesDone, rec.Avatar,
	)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", rec.UID, err)
	}
	c.hub.Publish(rec.UID, rec)
	return nil
}

func (c *UserCache) Get(ctx context.Context, uid string) (domain.UserRecord, error) {
	var rec domain.UserRecord
	err := c.db.QueryRowContext(ctx, `
SELECT uid, name, email, total_score, quizzes_done, avatar
FROM user_stats WHERE uid = ?`, uid,
	).Scan(&rec.UID, &rec.Name, &rec.Email, &rec.TotalScore, &rec.QuizzesDone, &rec.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserRecord{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserRecord{}, fmt.Errorf("get user %s: %w", uid, err)
	}
	return rec, nil
}

// Subscribe is the live query on a user's row: the current row (if any) first,
// then every change made through this cache.
func (c *UserCache) Subscribe(ctx context.Context, uid string) (<-chan domain.UserRecord, func(), error) {
	if _, err := c.Get(ctx, uid); err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil, err
	}
	ch, cancel := c.hub.Subscribe(uid, func() (domain.UserRecord, bool) {
		rec, err := c.Get(ctx, uid)
		return rec, err == nil
	})
	return ch, cancel, nil
}

func (c *UserCache) AddScore(ctx context.Context, uid string, points int) error {
	return c.modify(ctx, uid,
		`UPDATE user_stats SET total_score = total_score + ?, quizzes_done = quizzes_done + 1 WHERE uid = ?`,
		points, uid,
	)
}

func (c *UserCache) SetAvatar(ctx context.Context, uid, avatar string) error {
	return c.modify(ctx, uid, `UPDATE user_stats SET avatar = ? WHERE uid = ?`, avatar, uid)
}

func (c *UserCache) SetName(ctx context.Context, uid, name string) error {
	return c.modify(ctx, uid, `UPDATE user_stats SET name = ? WHERE uid = ?`, name, uid)
}

func (c *UserCache) modify(ctx context.Context, uid, stmt string, args ...any) error {
	res, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update user %s: %w", uid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user %s: %w", uid, err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}

	rec, err := c.Get(ctx, uid)
	if err != nil {
		return err
	}
	c.hub.Publish(uid, rec)
	return nil
}
