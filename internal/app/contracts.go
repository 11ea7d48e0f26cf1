package app

import (
	"context"

	"quizhub-service/internal/domain"
)

// UserCache is the on-device user-stats store. Any caller may write to it;
// concurrent writes to the same row are last-write-wins.
type UserCache interface {
	Upsert(ctx context.Context, rec domain.UserRecord) error
	Get(ctx context.Context, uid string) (domain.UserRecord, error)
	// Subscribe streams the user's row: the current row first, then every change.
	// The caller must invoke the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, uid string) (<-chan domain.UserRecord, func(), error)
	// AddScore adds points to the total and counts one more finished quiz.
	AddScore(ctx context.Context, uid string, points int) error
	SetAvatar(ctx context.Context, uid, avatar string) error
	SetName(ctx context.Context, uid, name string) error
}

// QuizData is the part of the data-access layer the stats service depends on.
type QuizData interface {
	GetActiveQuizzes(ctx context.Context) []domain.Quiz
	GetUserCompletedQuizzes(ctx context.Context, uid string) []domain.QuizAttempt
	SaveQuizAttempt(ctx context.Context, uid, quizID string, score int) domain.WriteResult
	CreateUserProfile(ctx context.Context, uid, email, name string) domain.WriteResult
	GetUserProfile(ctx context.Context, uid string) (domain.UserProfile, error)
	UpdateUserName(ctx context.Context, uid, name string) domain.WriteResult
	UpdateUserAvatar(ctx context.Context, uid, avatar string) domain.WriteResult
	IncrementUserCounters(ctx context.Context, uid string, points int) domain.WriteResult
}
