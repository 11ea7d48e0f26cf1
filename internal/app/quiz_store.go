package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quizhub-service/internal/docstore"
	"quizhub-service/internal/domain"
)

// Remote collection names.
const (
	quizzesCollection   = "quizzes"
	questionsCollection = "questions"
	usersCollection     = "users"
	attemptsCollection  = "completed_quizzes"
)

// QuizStore is the single point of contact with the remote document store.
// Every read goes network-first and falls back to the offline tier; reads that
// fail on both tiers return an empty result instead of an error.
type QuizStore struct {
	remote  docstore.Store
	offline docstore.Store
	log     *zap.Logger
	now     func() int64
	sf      singleflight.Group

	mirrorMu sync.Mutex
	gens     map[string]uint64
}

// NewQuizStore wires the data-access layer. offline may be nil, in which case a
// failed remote read goes straight to the empty result.
func NewQuizStore(remote, offline docstore.Store, logger *zap.Logger) *QuizStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizStore{
		remote:  remote,
		offline: offline,
		log:     logger,
		now:     domain.Now,
		gens:    make(map[string]uint64),
	}
}

// NewQuizStoreWithClock is test-only for deterministic timestamps.
func NewQuizStoreWithClock(remote, offline docstore.Store, logger *zap.Logger, now func() int64) *QuizStore {
	s := NewQuizStore(remote, offline, logger)
	s.now = now
	return s
}

// PublishRequest carries an authored quiz. An empty QuizID publishes a new quiz;
// otherwise the quiz is republished and its question set replaced.
type PublishRequest struct {
	QuizID     string
	Title      string `validate:"required"`
	AuthorID   string
	AuthorName string
	Questions  []domain.QuestionDraft `validate:"dive"`
	Status     string                 `validate:"oneof=ativo rascunho"`
}

// validate maps the first failing rule onto the domain error for it. Title is
// checked before status, and status before the questions.
func (r PublishRequest) validate() error {
	var fields validator.ValidationErrors
	if err := domain.ValidateStruct(r); !errors.As(err, &fields) {
		return err
	}
	for _, rule := range []struct {
		field string
		err   error
	}{
		{"Title", domain.ErrEmptyTitle},
		{"Status", domain.ErrInvalidStatus},
	} {
		for _, fe := range fields {
			if fe.StructField() == rule.field {
				return rule.err
			}
		}
	}
	return fmt.Errorf("%s: %w", fields[0].Namespace(), domain.ErrInvalidQuestion)
}

// PublishQuiz writes the quiz envelope and its questions. Old questions of a
// republished quiz are deleted before the new ones are written; failing to
// delete one of them downgrades the result to partial. There is no rollback:
// a failed question write leaves the questions written before it in place.
func (s *QuizStore) PublishQuiz(ctx context.Context, req PublishRequest) domain.WriteResult {
	if req.Status == "" {
		req.Status = domain.StatusActive
	}
	if err := req.validate(); err != nil {
		return domain.Failed(req.QuizID, err)
	}

	quizID := req.QuizID
	updating := quizID != ""
	if !updating {
		quizID = s.remote.NewID()
	}

	envelope := docstore.Doc{
		"id":            quizID,
		"title":         req.Title,
		"authorId":      req.AuthorID,
		"authorName":    req.AuthorName,
		"questionCount": len(req.Questions),
		"isActive":      req.Status == domain.StatusActive,
		"status":        req.Status,
	}
	if !updating {
		envelope["createdAt"] = s.now()
	}
	if err := s.set(ctx, docstore.Ref{Collection: quizzesCollection, ID: quizID}, envelope, true); err != nil {
		s.log.Warn("publish quiz failed", zap.String("quizId", quizID), zap.Error(err))
		return domain.Failed(quizID, fmt.Errorf("write quiz: %w", err))
	}

	var stepErrs []error
	if updating {
		stepErrs = s.deleteQuestions(ctx, "publishQuiz", quizID)
	}

	for i, draft := range req.Questions {
		question := domain.Question{
			ID:                 s.remote.NewID(),
			QuizID:             quizID,
			Text:               draft.Text,
			Options:            draft.Options,
			CorrectAnswerIndex: draft.CorrectAnswerIndex,
			OrderIndex:         i,
		}
		doc, err := docstore.Encode(question)
		if err == nil {
			err = s.set(ctx, docstore.Ref{Collection: questionsCollection, ID: question.ID}, doc, false)
		}
		if err != nil {
			s.log.Warn("publish question failed",
				zap.String("quizId", quizID), zap.Int("orderIndex", i), zap.Error(err))
			stepErrs = append(stepErrs, fmt.Errorf("write question %d: %w", i, err))
			return domain.Failed(quizID, stepErrs...)
		}
	}

	return domain.Settle(quizID, stepErrs)
}

// GetActiveQuizzes lists published quizzes, including legacy records that only
// carry isActive.
func (s *QuizStore) GetActiveQuizzes(ctx context.Context) []domain.Quiz {
	quizzes := s.listQuizzes(ctx, "getActiveQuizzes", docstore.From(quizzesCollection))
	active := make([]domain.Quiz, 0, len(quizzes))
	for _, q := range quizzes {
		if q.Playable() {
			active = append(active, q)
		}
	}
	return active
}

// GetMyDrafts lists the unpublished quizzes authored by userID.
func (s *QuizStore) GetMyDrafts(ctx context.Context, userID string) []domain.Quiz {
	q := docstore.From(quizzesCollection).
		Where("authorId", userID).
		Where("status", domain.StatusDraft)
	quizzes := s.listQuizzes(ctx, "getMyDrafts", q)
	drafts := make([]domain.Quiz, 0, len(quizzes))
	for _, quiz := range quizzes {
		if quiz.Status == domain.StatusDraft && quiz.AuthorID == userID {
			drafts = append(drafts, quiz)
		}
	}
	return drafts
}

// ReleaseQuiz makes a draft publicly playable.
func (s *QuizStore) ReleaseQuiz(ctx context.Context, quizID string) domain.WriteResult {
	err := s.update(ctx, docstore.Ref{Collection: quizzesCollection, ID: quizID}, docstore.Doc{
		"status":   domain.StatusActive,
		"isActive": true,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Failed(quizID, domain.ErrQuizNotFound)
	}
	if err != nil {
		s.log.Warn("release quiz failed", zap.String("quizId", quizID), zap.Error(err))
		return domain.Failed(quizID, err)
	}
	return domain.Succeeded(quizID)
}

// GetQuestionsByQuizID returns the quiz's questions in authoring order. Storage
// order is never trusted; the result is always re-sorted by orderIndex.
func (s *QuizStore) GetQuestionsByQuizID(ctx context.Context, quizID string) []domain.Question {
	snaps, err := s.query(ctx, "getQuestionsByQuizId", questionsQuery(quizID))
	if err != nil {
		s.log.Warn("questions unavailable", zap.String("quizId", quizID), zap.Error(err))
		return []domain.Question{}
	}

	questions := make([]domain.Question, 0, len(snaps))
	for _, snap := range snaps {
		var q domain.Question
		if err := snap.DataTo(&q); err != nil {
			s.log.Warn("skipping malformed question", zap.String("id", snap.ID), zap.Error(err))
			continue
		}
		if q.ID == "" {
			q.ID = snap.ID
		}
		questions = append(questions, q)
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderIndex < questions[j].OrderIndex
	})
	return questions
}

// SaveQuizAttempt records the user's play of a quiz. The attempt is keyed by
// quiz id, so playing again overwrites the previous score.
func (s *QuizStore) SaveQuizAttempt(ctx context.Context, uid, quizID string, score int) domain.WriteResult {
	doc, err := docstore.Encode(domain.QuizAttempt{
		QuizID:      quizID,
		Score:       score,
		CompletedAt: s.now(),
	})
	if err == nil {
		err = s.set(ctx, docstore.Ref{Collection: attemptsPath(uid), ID: quizID}, doc, false)
	}
	if err != nil {
		s.log.Warn("save attempt failed", zap.String("uid", uid), zap.String("quizId", quizID), zap.Error(err))
		return domain.Failed(quizID, err)
	}
	return domain.Succeeded(quizID)
}

// GetUserCompletedQuizzes lists the user's attempts.
func (s *QuizStore) GetUserCompletedQuizzes(ctx context.Context, uid string) []domain.QuizAttempt {
	snaps, err := s.query(ctx, "getUserCompletedQuizzes", docstore.From(attemptsPath(uid)))
	if err != nil {
		s.log.Warn("attempts unavailable", zap.String("uid", uid), zap.Error(err))
		return []domain.QuizAttempt{}
	}

	attempts := make([]domain.QuizAttempt, 0, len(snaps))
	for _, snap := range snaps {
		var a domain.QuizAttempt
		if err := snap.DataTo(&a); err != nil {
			s.log.Warn("skipping malformed attempt", zap.String("id", snap.ID), zap.Error(err))
			continue
		}
		if a.QuizID == "" {
			a.QuizID = snap.ID
		}
		attempts = append(attempts, a)
	}
	return attempts
}

// DeleteQuiz removes the quiz and then its questions. Question cleanup is best
// effort and only downgrades the result to partial.
func (s *QuizStore) DeleteQuiz(ctx context.Context, quizID string) domain.WriteResult {
	if err := s.delete(ctx, docstore.Ref{Collection: quizzesCollection, ID: quizID}); err != nil {
		s.log.Warn("delete quiz failed", zap.String("quizId", quizID), zap.Error(err))
		return domain.Failed(quizID, err)
	}
	return domain.Settle(quizID, s.deleteQuestions(ctx, "deleteQuiz", quizID))
}

func (s *QuizStore) deleteQuestions(ctx context.Context, op, quizID string) []error {
	snaps, err := s.query(ctx, op, questionsQuery(quizID))
	if err != nil {
		s.log.Warn("old questions unavailable", zap.String("op", op), zap.String("quizId", quizID), zap.Error(err))
		return []error{fmt.Errorf("list questions: %w", err)}
	}

	var errs []error
	for _, snap := range snaps {
		if err := s.delete(ctx, docstore.Ref{Collection: questionsCollection, ID: snap.ID}); err != nil {
			s.log.Warn("delete question failed",
				zap.String("op", op), zap.String("quizId", quizID), zap.String("questionId", snap.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("delete question %s: %w", snap.ID, err))
		}
	}
	return errs
}

func (s *QuizStore) listQuizzes(ctx context.Context, op string, q docstore.Query) []domain.Quiz {
	snaps, err := s.query(ctx, op, q)
	if err != nil {
		s.log.Warn("quizzes unavailable", zap.String("op", op), zap.Error(err))
		return []domain.Quiz{}
	}

	quizzes := make([]domain.Quiz, 0, len(snaps))
	for _, snap := range snaps {
		var quiz domain.Quiz
		if err := snap.DataTo(&quiz); err != nil {
			s.log.Warn("skipping malformed quiz", zap.String("id", snap.ID), zap.Error(err))
			continue
		}
		if quiz.ID == "" {
			quiz.ID = snap.ID
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes
}

func questionsQuery(quizID string) docstore.Query {
	return docstore.From(questionsCollection).Where("quizId", quizID)
}

func attemptsPath(uid string) string {
	return docstore.Collection(usersCollection, uid, attemptsCollection)
}
