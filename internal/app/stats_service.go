package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quizhub-service/internal/domain"
)

// StatsService derives display figures for a user from the local cache and the
// remote attempt log, and runs the flows that touch both.
type StatsService struct {
	data  QuizData
	cache UserCache
	log   *zap.Logger
}

func NewStatsService(data QuizData, cache UserCache, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{data: data, cache: cache, log: logger}
}

// Reconcile combines locally cached totals with freshly fetched attempts.
// Displayed score and quiz count take the larger of the two sources, which only
// holds because scores never decrease. Attempts on quizzes missing from active
// contribute no questions.
func Reconcile(local domain.UserRecord, active []domain.Quiz, attempts []domain.QuizAttempt) domain.ProfileStats {
	questionCounts := make(map[string]int, len(active))
	for _, q := range active {
		questionCounts[q.ID] = q.QuestionCount
	}

	calculatedScore := 0
	faced := 0
	for _, a := range attempts {
		calculatedScore += a.Score
		faced += questionCounts[a.QuizID]
	}
	correct := calculatedScore / domain.PointsPerCorrectAnswer

	stats := domain.ProfileStats{
		Score:          max(local.TotalScore, calculatedScore),
		QuizzesDone:    max(local.QuizzesDone, len(attempts)),
		Correct:        correct,
		Wrong:          max(faced-correct, 0),
		QuestionsFaced: faced,
	}
	stats.TotalQuizzes = max(len(active), stats.QuizzesDone)
	return stats
}

// Profile computes the user's profile figures.
func (s *StatsService) Profile(ctx context.Context, uid string) domain.ProfileStats {
	active, attempts := s.history(ctx, uid)

	local, err := s.cache.Get(ctx, uid)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		s.log.Warn("local stats unavailable", zap.String("uid", uid), zap.Error(err))
	}
	return Reconcile(local, active, attempts)
}

// CompletedQuizzes lists the active quizzes the user has played with their
// per-quiz correct/wrong split.
func (s *StatsService) CompletedQuizzes(ctx context.Context, uid string) []domain.CompletedQuiz {
	active, attempts := s.history(ctx, uid)

	scores := make(map[string]int, len(attempts))
	for _, a := range attempts {
		scores[a.QuizID] = a.Score
	}

	completed := make([]domain.CompletedQuiz, 0, len(attempts))
	for _, quiz := range active {
		score, ok := scores[quiz.ID]
		if !ok {
			continue
		}
		correct := score / domain.PointsPerCorrectAnswer
		completed = append(completed, domain.CompletedQuiz{
			Quiz:    quiz,
			Score:   score,
			Correct: correct,
			Wrong:   max(quiz.QuestionCount-correct, 0),
		})
	}
	return completed
}

// RecordPlay saves the attempt and then, independently and concurrently, bumps
// the local row and the remote counters. Either follow-up failing only makes
// the result partial.
func (s *StatsService) RecordPlay(ctx context.Context, uid, quizID string, score int) domain.WriteResult {
	saved := s.data.SaveQuizAttempt(ctx, uid, quizID, score)
	if !saved.Succeeded() {
		return saved
	}

	var localErr, remoteErr error
	var g errgroup.Group
	g.Go(func() error {
		if err := s.cache.AddScore(ctx, uid, score); err != nil {
			localErr = fmt.Errorf("local score: %w", err)
			s.log.Warn("local score update failed", zap.String("uid", uid), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		if res := s.data.IncrementUserCounters(ctx, uid, score); !res.Succeeded() {
			remoteErr = fmt.Errorf("remote counters: %w", res.Err)
		}
		return nil
	})
	_ = g.Wait()

	return domain.Settle(quizID, []error{localErr, remoteErr})
}

// Register creates the remote profile and then seeds the local row.
func (s *StatsService) Register(ctx context.Context, uid, email, name string) domain.WriteResult {
	if name == "" {
		name = domain.DefaultPlayerName
	}
	created := s.data.CreateUserProfile(ctx, uid, email, name)
	if !created.Succeeded() {
		return created
	}

	err := s.cache.Upsert(ctx, domain.UserRecord{
		UID:    uid,
		Name:   name,
		Email:  email,
		Avatar: domain.DefaultAvatar,
	})
	if err != nil {
		s.log.Warn("local profile seed failed", zap.String("uid", uid), zap.Error(err))
		return domain.Settle(uid, []error{fmt.Errorf("local profile: %w", err)})
	}
	return domain.Succeeded(uid)
}

// SyncLocal refreshes the local row from the remote profile, never letting the
// local counters go down. Without a remote profile an existing row is kept and
// a missing one is seeded with defaults.
func (s *StatsService) SyncLocal(ctx context.Context, uid, email string) (domain.UserRecord, error) {
	local, lerr := s.cache.Get(ctx, uid)
	if lerr != nil && !errors.Is(lerr, domain.ErrUserNotFound) {
		return domain.UserRecord{}, lerr
	}
	hasLocal := lerr == nil

	profile, perr := s.data.GetUserProfile(ctx, uid)
	if perr != nil {
		if hasLocal {
			return local, nil
		}
		s.log.Info("no remote profile, seeding local row", zap.String("uid", uid), zap.Error(perr))
		profile = domain.UserProfile{Name: domain.DefaultPlayerName, Email: email, Avatar: domain.DefaultAvatar}
	}

	rec := domain.UserRecord{
		UID:         uid,
		Name:        profile.Name,
		Email:       profile.Email,
		TotalScore:  max(local.TotalScore, profile.Score),
		QuizzesDone: max(local.QuizzesDone, profile.QuizzesDone),
		Avatar:      profile.Avatar,
	}
	if rec.Email == "" {
		rec.Email = email
	}
	if hasLocal && local.Avatar != "" && local.Avatar != domain.DefaultAvatar {
		rec.Avatar = local.Avatar
	}

	if err := s.cache.Upsert(ctx, rec); err != nil {
		return domain.UserRecord{}, err
	}
	return rec, nil
}

// Rename updates the display name remotely, then locally.
func (s *StatsService) Rename(ctx context.Context, uid, name string) domain.WriteResult {
	remote := s.data.UpdateUserName(ctx, uid, name)
	localErr := s.cache.SetName(ctx, uid, name)
	if localErr != nil {
		s.log.Warn("local rename failed", zap.String("uid", uid), zap.Error(localErr))
	}
	return bothBestEffort(uid, remote, localErr)
}

// ChangeAvatar swaps the avatar locally, then remotely.
func (s *StatsService) ChangeAvatar(ctx context.Context, uid, avatar string) domain.WriteResult {
	localErr := s.cache.SetAvatar(ctx, uid, avatar)
	if localErr != nil {
		s.log.Warn("local avatar update failed", zap.String("uid", uid), zap.Error(localErr))
	}
	remote := s.data.UpdateUserAvatar(ctx, uid, avatar)
	return bothBestEffort(uid, remote, localErr)
}

// Watch streams the user's local row.
func (s *StatsService) Watch(ctx context.Context, uid string) (<-chan domain.UserRecord, func(), error) {
	return s.cache.Subscribe(ctx, uid)
}

// history fetches the active quizzes and the user's attempts concurrently.
func (s *StatsService) history(ctx context.Context, uid string) ([]domain.Quiz, []domain.QuizAttempt) {
	var (
		active   []domain.Quiz
		attempts []domain.QuizAttempt
	)
	var g errgroup.Group
	g.Go(func() error {
		active = s.data.GetActiveQuizzes(ctx)
		return nil
	})
	g.Go(func() error {
		attempts = s.data.GetUserCompletedQuizzes(ctx, uid)
		return nil
	})
	_ = g.Wait()
	return active, attempts
}

func bothBestEffort(id string, remote domain.WriteResult, localErr error) domain.WriteResult {
	switch {
	case !remote.Succeeded() && localErr != nil:
		return domain.Failed(id, remote.Err, localErr)
	case !remote.Succeeded():
		return domain.Settle(id, []error{fmt.Errorf("remote: %w", remote.Err)})
	case localErr != nil:
		return domain.Settle(id, []error{fmt.Errorf("local: %w", localErr)})
	default:
		return domain.Succeeded(id)
	}
}
