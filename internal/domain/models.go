package domain

import (
	"fmt"
	"time"
)

// Quiz status values as stored in the remote "status" field.
const (
	StatusActive = "ativo"
	StatusDraft  = "rascunho"
)

// PointsPerCorrectAnswer is what a play awards for each correctly answered question.
const PointsPerCorrectAnswer = 10

// Defaults applied when a remote user document lacks the field.
const (
	DefaultPlayerName = "Jogador"
	DefaultAvatar     = "👤"
)

// Quiz is the envelope stored under quizzes/{id}.
type Quiz struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	AuthorID      string `json:"authorId"`
	AuthorName    string `json:"authorName"`
	QuestionCount int    `json:"questionCount"`
	IsActive      bool   `json:"isActive"`
	CreatedAt     int64  `json:"createdAt"` // unix millis
	Status        string `json:"status"`
}

// Playable reports whether the quiz is publicly listed. Legacy records without a
// status fall back to the isActive flag.
func (q Quiz) Playable() bool {
	if q.Status == "" {
		return q.IsActive
	}
	return q.Status == StatusActive
}

// Question is stored flat under questions/{id} and linked to its quiz by QuizID.
type Question struct {
	ID                 string   `json:"id"`
	QuizID             string   `json:"quizId"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	OrderIndex         int      `json:"orderIndex"`
}

// QuestionDraft is one authored question before it is published.
type QuestionDraft struct {
	Text               string   `json:"text" validate:"required"`
	Options            []string `json:"options" validate:"min=2,dive,required"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex" validate:"min=0"`
}

// Validate checks the draft is publishable.
func (d QuestionDraft) Validate() error {
	if err := ValidateStruct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	return nil
}

// QuizAttempt is the single recorded play of a quiz by a user,
// stored under users/{uid}/completed_quizzes/{quizId}.
type QuizAttempt struct {
	QuizID      string `json:"quizId"`
	Score       int    `json:"score"`
	CompletedAt int64  `json:"completedAt"` // unix millis
}

// CorrectAnswers derives the number of correct answers from the score.
func (a QuizAttempt) CorrectAnswers() int {
	return a.Score / PointsPerCorrectAnswer
}

// UserProfile is the remote users/{uid} document.
type UserProfile struct {
	ID          string `json:"-"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Score       int    `json:"score"`
	QuizzesDone int    `json:"quizzesDone"`
	Avatar      string `json:"avatar"`
}

// UserRecord is the on-device row of user stats.
type UserRecord struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	TotalScore  int    `json:"totalScore"`
	QuizzesDone int    `json:"quizzesDone"`
	Avatar      string `json:"avatar"`
}

// RankingEntry is one row of the global ranking.
type RankingEntry struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Avatar string `json:"avatar"`
}

// ProfileStats holds the display-ready aggregates for a user's profile.
type ProfileStats struct {
	Score          int `json:"score"`
	QuizzesDone    int `json:"quizzesDone"`
	Correct        int `json:"correct"`
	Wrong          int `json:"wrong"`
	QuestionsFaced int `json:"questionsFaced"`
	TotalQuizzes   int `json:"totalQuizzes"`
}

// CompletedQuiz is a home-feed row for a quiz the user already played.
type CompletedQuiz struct {
	Quiz    Quiz `json:"quiz"`
	Score   int  `json:"score"`
	Correct int  `json:"correct"`
	Wrong   int  `json:"wrong"`
}

// Now returns the current time in unix millis, the timestamp format of the remote store.
func Now() int64 {
	return time.Now().UnixMilli()
}
