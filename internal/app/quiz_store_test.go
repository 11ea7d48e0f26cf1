package app_test

import (
	"context"
	"errors"
	"testing"

	"quizhub-service/internal/app"
	"quizhub-service/internal/docstore"
	"quizhub-service/internal/domain"
)

func TestPublishQuizStampsOrderIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	drafts := numberedDrafts(5, "Q")
	res := f.store.PublishQuiz(ctx, app.PublishRequest{
		Title: "Letters", AuthorID: "u1", AuthorName: "Ana", Questions: drafts, Status: domain.StatusActive,
	})
	if res.Status != domain.WriteSucceeded || res.ID == "" {
		t.Fatalf("publish failed: %+v", res)
	}

	snaps, err := f.remote.Store.Query(ctx, docstore.From("questions").Where("quizId", res.ID))
	if err != nil {
		t.Fatalf("query questions: %v", err)
	}
	if len(snaps) != len(drafts) {
		t.Fatalf("expected %d question records, got %d", len(drafts), len(snaps))
	}
	seen := make(map[int]string)
	for _, snap := range snaps {
		var q domain.Question
		if err := snap.DataTo(&q); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if q.ID != snap.ID {
			t.Fatalf("question id %q does not match document id %q", q.ID, snap.ID)
		}
		seen[q.OrderIndex] = q.Text
	}
	for i, d := range drafts {
		if seen[i] != d.Text {
			t.Fatalf("orderIndex %d: got %q, want %q", i, seen[i], d.Text)
		}
	}
}

func TestCapitalsEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res := f.store.PublishQuiz(ctx, app.PublishRequest{
		Title: "Capitals", AuthorID: "u1", AuthorName: "Ana", Questions: capitalsDrafts(), Status: domain.StatusActive,
	})
	if !res.Succeeded() {
		t.Fatalf("publish failed: %v", res.Err)
	}

	quiz, ok := findQuiz(f.store.GetActiveQuizzes(ctx), res.ID)
	if !ok {
		t.Fatalf("expected quiz %s among active quizzes", res.ID)
	}
	if quiz.Title != "Capitals" || quiz.QuestionCount != 2 || !quiz.IsActive || quiz.CreatedAt == 0 {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}

	questions := f.store.GetQuestionsByQuizID(ctx, res.ID)
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].Text != "Capital of France?" || questions[0].CorrectAnswerIndex != 1 || len(questions[0].Options) != 3 {
		t.Fatalf("unexpected first question: %+v", questions[0])
	}
	if questions[1].Text != "Capital of Japan?" || questions[1].CorrectAnswerIndex != 0 {
		t.Fatalf("unexpected second question: %+v", questions[1])
	}
}

func TestRepublishReplacesQuestionSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first := f.store.PublishQuiz(ctx, app.PublishRequest{
		Title: "Draft", AuthorID: "u1", Questions: numberedDrafts(3, "old "), Status: domain.StatusDraft,
	})
	if !first.Succeeded() {
		t.Fatalf("publish: %v", first.Err)
	}
	oldIDs := make(map[string]bool)
	for _, q := range f.store.GetQuestionsByQuizID(ctx, first.ID) {
		oldIDs[q.ID] = true
	}
	before, _ := f.remote.Store.Get(ctx, docstore.Ref{Collection: "quizzes", ID: first.ID})

	second := f.store.PublishQuiz(ctx, app.PublishRequest{
		QuizID: first.ID, Title: "Final", AuthorID: "u1", Questions: numberedDrafts(2, "new "), Status: domain.StatusActive,
	})
	if second.Status != domain.WriteSucceeded || second.ID != first.ID {
		t.Fatalf("republish: %+v", second)
	}

	questions := f.store.GetQuestionsByQuizID(ctx, first.ID)
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions after edit, got %d", len(questions))
	}
	for i, q := range questions {
		if oldIDs[q.ID] {
			t.Fatalf("old question %s survived the edit", q.ID)
		}
		if q.OrderIndex != i || q.Text != "new "+string(rune('A'+i)) {
			t.Fatalf("unexpected question %d: %+v", i, q)
		}
	}

	after, _ := f.remote.Store.Get(ctx, docstore.Ref{Collection: "quizzes", ID: first.ID})
	if after.Data["createdAt"] != before.Data["createdAt"] {
		t.Fatalf("republish re-stamped createdAt: %v -> %v", before.Data["createdAt"], after.Data["createdAt"])
	}
	if after.Data["title"] != "Final" || after.Data["questionCount"] != float64(2) {
		t.Fatalf("envelope not updated: %+v", after.Data)
	}
}

func TestGetQuestionsSortsByOrderIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// document ids sort opposite to authoring order
	for id, order := range map[string]int{"a": 3, "b": 2, "c": 1, "d": 0} {
		doc := docstore.Doc{"id": id, "quizId": "quiz-1", "text": id, "options": []string{"x", "y"}, "orderIndex": order}
		if err := f.remote.Store.Set(ctx, docstore.Ref{Collection: "questions", ID: id}, doc, false); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	questions := f.store.GetQuestionsByQuizID(ctx, "quiz-1")
	want := []string{"d", "c", "b", "a"}
	if len(questions) != len(want) {
		t.Fatalf("expected %d questions, got %d", len(want), len(questions))
	}
	for i, q := range questions {
		if q.ID != want[i] || q.OrderIndex != i {
			t.Fatalf("position %d: got %s (order %d), want %s", i, q.ID, q.OrderIndex, want[i])
		}
	}
}

func TestSaveQuizAttemptOverwrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	if res := f.store.SaveQuizAttempt(ctx, "u1", "quiz-1", 20); !res.Succeeded() {
		t.Fatalf("first save: %v", res.Err)
	}
	if res := f.store.SaveQuizAttempt(ctx, "u1", "quiz-1", 40); !res.Succeeded() {
		t.Fatalf("second save: %v", res.Err)
	}

	attempts := f.store.GetUserCompletedQuizzes(ctx, "u1")
	if len(attempts) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(attempts))
	}
	if attempts[0].QuizID != "quiz-1" || attempts[0].Score != 40 || attempts[0].CompletedAt == 0 {
		t.Fatalf("unexpected attempt: %+v", attempts[0])
	}
}

func TestReleaseDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res := f.store.PublishQuiz(ctx, app.PublishRequest{
		Title: "Rivers", AuthorID: "u1", Questions: numberedDrafts(1, "R"), Status: domain.StatusDraft,
	})
	if !res.Succeeded() {
		t.Fatalf("publish draft: %v", res.Err)
	}
	if _, ok := findQuiz(f.store.GetActiveQuizzes(ctx), res.ID); ok {
		t.Fatalf("draft must not be listed as active")
	}
	if _, ok := findQuiz(f.store.GetMyDrafts(ctx, "u1"), res.ID); !ok {
		t.Fatalf("expected draft among author's drafts")
	}
	if drafts := f.store.GetMyDrafts(ctx, "u2"); len(drafts) != 0 {
		t.Fatalf("other users must not see the draft, got %+v", drafts)
	}

	if rel := f.store.ReleaseQuiz(ctx, res.ID); rel.Status != domain.WriteSucceeded {
		t.Fatalf("release: %+v", rel)
	}

	quiz, ok := findQuiz(f.store.GetActiveQuizzes(ctx), res.ID)
	if !ok || !quiz.IsActive || quiz.Status != domain.StatusActive {
		t.Fatalf("expected released quiz to be active, got %+v (found=%v)", quiz, ok)
	}
	if _, ok := findQuiz(f.store.GetMyDrafts(ctx, "u1"), res.ID); ok {
		t.Fatalf("released quiz still listed as draft")
	}
}

func TestReleaseMissingQuiz(t *testing.T) {
	f := newFixture()
	res := f.store.ReleaseQuiz(context.Background(), "nope")
	if res.Status != domain.WriteFailed || !errors.Is(res.Err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not-found failure, got %+v", res)
	}
}

func TestLegacyQuizWithoutStatusUsesIsActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_ = f.remote.Store.Set(ctx, docstore.Ref{Collection: "quizzes", ID: "legacy-on"}, docstore.Doc{"id": "legacy-on", "isActive": true}, false)
	_ = f.remote.Store.Set(ctx, docstore.Ref{Collection: "quizzes", ID: "legacy-off"}, docstore.Doc{"id": "legacy-off", "isActive": false}, false)

	active := f.store.GetActiveQuizzes(ctx)
	if _, ok := findQuiz(active, "legacy-on"); !ok {
		t.Fatalf("expected legacy active quiz listed")
	}
	if _, ok := findQuiz(active, "legacy-off"); ok {
		t.Fatalf("legacy inactive quiz must not be listed")
	}
}

func TestReadsFallBackToOfflineCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res := f.store.PublishQuiz(ctx, app.PublishRequest{
		Title: "Capitals", AuthorID: "u1", Questions: capitalsDrafts(), Status: domain.StatusActive,
	})
	_ = f.store.SaveQuizAttempt(ctx, "u1", res.ID, 10)
	// prime the offline tier
	_ = f.store.GetActiveQuizzes(ctx)
	_ = f.store.GetQuestionsByQuizID(ctx, res.ID)
	_ = f.store.GetUserCompletedQuizzes(ctx, "u1")

	f.remote.setFailures(true, true, true)

	if _, ok := findQuiz(f.store.GetActiveQuizzes(ctx), res.ID); !ok {
		t.Fatalf("expected cached quiz while offline")
	}
	if qs := f.store.GetQuestionsByQuizID(ctx, res.ID); len(qs) != 2 || qs[0].OrderIndex != 0 {
		t.Fatalf("expected cached questions in order, got %+v", qs)
	}
	if attempts := f.store.GetUserCompletedQuizzes(ctx, "u1"); len(attempts) != 1 {
		t.Fatalf("expected cached attempt, got %+v", attempts)
	}
}

func TestOfflineCacheDropsRemotelyDeletedDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res := f.store.PublishQuiz(ctx, app.PublishRequest{
		Title: "Gone", AuthorID: "u1", Questions: numberedDrafts(1, "G"), Status: domain.StatusActive,
	})
	_ = f.store.GetActiveQuizzes(ctx)

	// removed behind this client's back
	_ = f.remote.Store.Delete(ctx, docstore.Ref{Collection: "quizzes", ID: res.ID})
	_ = f.store.GetActiveQuizzes(ctx)

	f.remote.setFailures(true, false, false)
	if _, ok := findQuiz(f.store.GetActiveQuizzes(ctx), res.ID); ok {
		t.Fatalf("offline tier kept a quiz the remote no longer has")
	}
}

func TestReadsReturnEmptyWhenBothTiersFail(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.remote.setFailures(true, false, false)
	f.offline.setFailures(true, false, false)

	if quizzes := f.store.GetActiveQuizzes(ctx); quizzes == nil || len(quizzes) != 0 {
		t.Fatalf("expected empty active list, got %#v", quizzes)
	}
	if drafts := f.store.GetMyDrafts(ctx, "u1"); drafts == nil || len(drafts) != 0 {
		t.Fatalf("expected empty drafts, got %#v", drafts)
	}
	if qs := f.store.GetQuestionsByQuizID(ctx, "quiz-1"); qs == nil || len(qs) != 0 {
		t.Fatalf("expected empty questions, got %#v", qs)
	}
	if attempts := f.store.GetUserCompletedQuizzes(ctx, "u1"); attempts == nil || len(attempts) != 0 {
		t.Fatalf("expected empty attempts, got %#v", attempts)
	}
	if ranking := f.store.GetRanking(ctx, 0); ranking == nil || len(ranking) != 0 {
		t.Fatalf("expected empty ranking, got %#v", ranking)
	}
}

func TestPublishValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	tests := []struct {
		name string
		req  app.PublishRequest
		want error
	}{
		{
			name: "empty title",
			req:  app.PublishRequest{Questions: capitalsDrafts()},
			want: domain.ErrEmptyTitle,
		},
		{
			name: "correct index out of range",
			req: app.PublishRequest{Title: "Bad", Questions: []domain.QuestionDraft{
				{Text: "?", Options: []string{"a", "b"}, CorrectAnswerIndex: 2},
			}},
			want: domain.ErrInvalidQuestion,
		},
		{
			name: "unknown status",
			req:  app.PublishRequest{Title: "Bad", Questions: capitalsDrafts(), Status: "archived"},
			want: domain.ErrInvalidStatus,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.store.PublishQuiz(ctx, tt.req)
			if res.Status != domain.WriteFailed || !errors.Is(res.Err, tt.want) {
				t.Fatalf("expected failure with %v, got %+v", tt.want, res)
			}
		})
	}

	snaps, _ := f.remote.Store.Query(ctx, docstore.From("quizzes"))
	if len(snaps) != 0 {
		t.Fatalf("invalid publishes must not write, found %d quizzes", len(snaps))
	}
}

func TestPublishReportsRemoteFailure(t *testing.T) {
	f := newFixture()
	f.remote.setFailures(false, true, false)

	res := f.store.PublishQuiz(context.Background(), app.PublishRequest{
		Title: "Capitals", Questions: capitalsDrafts(),
	})
	if res.Succeeded() || !errors.Is(res.Err, errUnreachable) {
		t.Fatalf("expected failed publish, got %+v", res)
	}
}

func TestRepublishWithUndeletableQuestionsIsPartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first := f.store.PublishQuiz(ctx, app.PublishRequest{
		Title: "Quiz", Questions: numberedDrafts(2, "old "), Status: domain.StatusActive,
	})
	f.remote.setFailures(false, false, true)

	second := f.store.PublishQuiz(ctx, app.PublishRequest{
		QuizID: first.ID, Title: "Quiz", Questions: numberedDrafts(1, "new "), Status: domain.StatusActive,
	})
	if second.Status != domain.WritePartial || !second.Succeeded() {
		t.Fatalf("expected partial result, got %+v", second)
	}
	if !errors.Is(second.Err, errUnreachable) {
		t.Fatalf("expected delete error to be reported, got %v", second.Err)
	}

	f.remote.setFailures(false, false, false)
	questions := f.store.GetQuestionsByQuizID(ctx, first.ID)
	var fresh int
	for _, q := range questions {
		if q.Text == "new A" {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("new question not written: %+v", questions)
	}
}

func TestDeleteQuizCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res := f.store.PublishQuiz(ctx, app.PublishRequest{
		Title: "Capitals", Questions: capitalsDrafts(), Status: domain.StatusDraft, AuthorID: "u1",
	})
	if del := f.store.DeleteQuiz(ctx, res.ID); del.Status != domain.WriteSucceeded {
		t.Fatalf("delete: %+v", del)
	}

	if drafts := f.store.GetMyDrafts(ctx, "u1"); len(drafts) != 0 {
		t.Fatalf("deleted quiz still listed: %+v", drafts)
	}
	snaps, _ := f.remote.Store.Query(ctx, docstore.From("questions").Where("quizId", res.ID))
	if len(snaps) != 0 {
		t.Fatalf("expected questions removed, found %d", len(snaps))
	}
}

func TestDeleteQuizReportsQuizDeleteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res := f.store.PublishQuiz(ctx, app.PublishRequest{Title: "Capitals", Questions: capitalsDrafts()})
	f.remote.setFailures(false, false, true)

	del := f.store.DeleteQuiz(ctx, res.ID)
	if del.Status != domain.WriteFailed || !errors.Is(del.Err, errUnreachable) {
		t.Fatalf("expected failure when the quiz delete fails, got %+v", del)
	}
}

func TestDeleteQuizQuestionCleanupFailureStillSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res := f.store.PublishQuiz(ctx, app.PublishRequest{Title: "Capitals", Questions: capitalsDrafts()})
	f.remote.setFailures(true, false, false)
	f.offline.setFailures(true, false, false)

	del := f.store.DeleteQuiz(ctx, res.ID)
	if del.Status != domain.WritePartial || !del.Succeeded() {
		t.Fatalf("expected partial success when question lookup fails, got %+v", del)
	}
	if _, err := f.remote.Store.Get(ctx, docstore.Ref{Collection: "quizzes", ID: res.ID}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected quiz document removed, got %v", err)
	}
}

func TestUserProfileAndRanking(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	for _, u := range []struct{ uid, name string }{{"u1", "Ana"}, {"u2", "Bia"}, {"u3", ""}} {
		if res := f.store.CreateUserProfile(ctx, u.uid, u.uid+"@example.com", u.name); !res.Succeeded() {
			t.Fatalf("create profile: %v", res.Err)
		}
	}
	_ = f.store.IncrementUserCounters(ctx, "u2", 50)
	_ = f.store.IncrementUserCounters(ctx, "u3", 30)
	_ = f.store.IncrementUserCounters(ctx, "u3", 40)

	profile, err := f.store.GetUserProfile(ctx, "u3")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Score != 70 || profile.QuizzesDone != 2 || profile.Name != domain.DefaultPlayerName {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	ranking := f.store.GetRanking(ctx, 2)
	if len(ranking) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(ranking))
	}
	if ranking[0].UserID != "u3" || ranking[1].UserID != "u2" || ranking[0].Avatar != domain.DefaultAvatar {
		t.Fatalf("unexpected ranking: %+v", ranking)
	}

	if _, err := f.store.GetUserProfile(ctx, "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if res := f.store.IncrementUserCounters(ctx, "ghost", 10); !errors.Is(res.Err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on counters, got %+v", res)
	}
}

func TestGetUserProfileOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_ = f.store.CreateUserProfile(ctx, "u1", "ana@example.com", "Ana")
	_ = f.store.UpdateUserAvatar(ctx, "u1", "🦊")

	f.remote.setFailures(true, true, true)
	profile, err := f.store.GetUserProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("expected offline profile, got %v", err)
	}
	if profile.Name != "Ana" || profile.Avatar != "🦊" {
		t.Fatalf("unexpected offline profile: %+v", profile)
	}
}

func TestPublishDuringListKeepsOfflineCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	gate := newGatedStore(f.remote)
	store := app.NewQuizStore(gate, f.offline, nil)

	gate.arm()
	stale := make(chan []domain.Quiz, 1)
	go func() { stale <- store.GetActiveQuizzes(ctx) }()
	<-gate.entered

	res := store.PublishQuiz(ctx, app.PublishRequest{Title: "Capitals", Questions: capitalsDrafts()})
	if res.Status != domain.WriteSucceeded {
		t.Fatalf("publish: %+v", res)
	}
	// a list started after the publish must not join the one in flight
	if _, ok := findQuiz(store.GetActiveQuizzes(ctx), res.ID); !ok {
		t.Fatal("list after publish misses the new quiz")
	}

	close(gate.release)
	<-stale

	f.remote.setFailures(true, false, false)
	if _, ok := findQuiz(store.GetActiveQuizzes(ctx), res.ID); !ok {
		t.Fatal("offline copy of the published quiz was pruned by an older list")
	}
}
