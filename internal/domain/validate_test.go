package domain_test

import (
	"errors"
	"testing"

	"quizhub-service/internal/domain"
)

func TestQuestionDraftValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   domain.QuestionDraft
		wantErr bool
	}{
		{
			name:  "valid",
			draft: domain.QuestionDraft{Text: "2+2?", Options: []string{"3", "4"}, CorrectAnswerIndex: 1},
		},
		{
			name:    "missing text",
			draft:   domain.QuestionDraft{Options: []string{"3", "4"}},
			wantErr: true,
		},
		{
			name:    "single option",
			draft:   domain.QuestionDraft{Text: "2+2?", Options: []string{"4"}},
			wantErr: true,
		},
		{
			name:    "blank option",
			draft:   domain.QuestionDraft{Text: "2+2?", Options: []string{"4", ""}},
			wantErr: true,
		},
		{
			name:    "negative index",
			draft:   domain.QuestionDraft{Text: "2+2?", Options: []string{"3", "4"}, CorrectAnswerIndex: -1},
			wantErr: true,
		},
		{
			name:    "index past options",
			draft:   domain.QuestionDraft{Text: "2+2?", Options: []string{"3", "4"}, CorrectAnswerIndex: 2},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrInvalidQuestion) {
				t.Fatalf("expected ErrInvalidQuestion, got %v", err)
			}
		})
	}
}

func TestScoreStep(t *testing.T) {
	type play struct {
		Score int `validate:"min=0,scorestep"`
	}
	for score, ok := range map[int]bool{0: true, 30: true, 25: false, -10: false} {
		err := domain.ValidateStruct(play{Score: score})
		if (err == nil) != ok {
			t.Fatalf("score %d: got err=%v, want ok=%v", score, err, ok)
		}
	}
}
