package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"quizhub-service/internal/docstore"
	"quizhub-service/internal/domain"
)

// DefaultRankingLimit is how many users the ranking shows.
const DefaultRankingLimit = 50

// CreateUserProfile writes a fresh users/{uid} document with zeroed counters.
func (s *QuizStore) CreateUserProfile(ctx context.Context, uid, email, name string) domain.WriteResult {
	err := s.set(ctx, userRef(uid), docstore.Doc{
		"name":        name,
		"email":       email,
		"score":       0,
		"quizzesDone": 0,
		"avatar":      domain.DefaultAvatar,
		"createdAt":   s.now(),
	}, false)
	if err != nil {
		s.log.Warn("create user profile failed", zap.String("uid", uid), zap.Error(err))
		return domain.Failed(uid, err)
	}
	return domain.Succeeded(uid)
}

// GetUserProfile reads users/{uid}, network first.
func (s *QuizStore) GetUserProfile(ctx context.Context, uid string) (domain.UserProfile, error) {
	snap, err := s.get(ctx, "getUserProfile", userRef(uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserProfile{}, err
	}

	var profile domain.UserProfile
	if err := snap.DataTo(&profile); err != nil {
		return domain.UserProfile{}, err
	}
	profile.ID = uid
	if profile.Name == "" {
		profile.Name = domain.DefaultPlayerName
	}
	if profile.Avatar == "" {
		profile.Avatar = domain.DefaultAvatar
	}
	return profile, nil
}

func (s *QuizStore) UpdateUserName(ctx context.Context, uid, name string) domain.WriteResult {
	return s.updateUser(ctx, "updateUserName", uid, docstore.Doc{"name": name})
}

func (s *QuizStore) UpdateUserAvatar(ctx context.Context, uid, avatar string) domain.WriteResult {
	return s.updateUser(ctx, "updateUserAvatar", uid, docstore.Doc{"avatar": avatar})
}

// IncrementUserCounters adds points to the remote score and counts one more finished quiz.
func (s *QuizStore) IncrementUserCounters(ctx context.Context, uid string, points int) domain.WriteResult {
	return s.updateUser(ctx, "incrementUserCounters", uid, docstore.Doc{
		"score":       docstore.Increment(points),
		"quizzesDone": docstore.Increment(1),
	})
}

// GetRanking returns the top users by remote score, highest first.
func (s *QuizStore) GetRanking(ctx context.Context, limit int) []domain.RankingEntry {
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	snaps, err := s.query(ctx, "getRanking", docstore.From(usersCollection).OrderByDesc("score").WithLimit(limit))
	if err != nil {
		s.log.Warn("ranking unavailable", zap.Error(err))
		return []domain.RankingEntry{}
	}

	entries := make([]domain.RankingEntry, 0, len(snaps))
	for _, snap := range snaps {
		var profile domain.UserProfile
		if err := snap.DataTo(&profile); err != nil {
			s.log.Warn("skipping malformed user", zap.String("id", snap.ID), zap.Error(err))
			continue
		}
		entry := domain.RankingEntry{
			UserID: snap.ID,
			Name:   profile.Name,
			Score:  profile.Score,
			Avatar: profile.Avatar,
		}
		if entry.Name == "" {
			entry.Name = domain.DefaultPlayerName
		}
		if entry.Avatar == "" {
			entry.Avatar = domain.DefaultAvatar
		}
		entries = append(entries, entry)
	}
	return entries
}

func (s *QuizStore) updateUser(ctx context.Context, op, uid string, fields docstore.Doc) domain.WriteResult {
	err := s.update(ctx, userRef(uid), fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Failed(uid, domain.ErrUserNotFound)
	}
	if err != nil {
		s.log.Warn("user update failed", zap.String("op", op), zap.String("uid", uid), zap.Error(err))
		return domain.Failed(uid, err)
	}
	return domain.Succeeded(uid)
}

func userRef(uid string) docstore.Ref {
	return docstore.Ref{Collection: usersCollection, ID: uid}
}
