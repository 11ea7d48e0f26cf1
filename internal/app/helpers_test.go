package app_test

import (
	"context"
	"errors"
	"sync"

	"quizhub-service/internal/app"
	"quizhub-service/internal/docstore"
	"quizhub-service/internal/domain"
	"quizhub-service/internal/infra/memory"
)

var errUnreachable = errors.New("network unreachable")

// flakyStore wraps a store and fails selected operations on demand.
type flakyStore struct {
	docstore.Store

	mu          sync.Mutex
	failReads   bool
	failWrites  bool
	failDeletes bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.NewDocumentStore()}
}

func (s *flakyStore) setFailures(reads, writes, deletes bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads, s.failWrites, s.failDeletes = reads, writes, deletes
}

func (s *flakyStore) fails(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case "read":
		return s.failReads
	case "write":
		return s.failWrites
	default:
		return s.failDeletes
	}
}

func (s *flakyStore) Get(ctx context.Context, ref docstore.Ref) (docstore.Snapshot, error) {
	if s.fails("read") {
		return docstore.Snapshot{}, errUnreachable
	}
	return s.Store.Get(ctx, ref)
}

func (s *flakyStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	if s.fails("read") {
		return nil, errUnreachable
	}
	return s.Store.Query(ctx, q)
}

func (s *flakyStore) Set(ctx context.Context, ref docstore.Ref, data docstore.Doc, merge bool) error {
	if s.fails("write") {
		return errUnreachable
	}
	return s.Store.Set(ctx, ref, data, merge)
}

func (s *flakyStore) Update(ctx context.Context, ref docstore.Ref, fields docstore.Doc) error {
	if s.fails("write") {
		return errUnreachable
	}
	return s.Store.Update(ctx, ref, fields)
}

func (s *flakyStore) Delete(ctx context.Context, ref docstore.Ref) error {
	if s.fails("delete") {
		return errUnreachable
	}
	return s.Store.Delete(ctx, ref)
}

type fixture struct {
	remote  *flakyStore
	offline *flakyStore
	store   *app.QuizStore
	cache   *memory.UserCache
	stats   *app.StatsService
}

func newFixture() *fixture {
	remote := newFlakyStore()
	offline := newFlakyStore()
	var clock int64 = 1_700_000_000_000
	var mu sync.Mutex
	store := app.NewQuizStoreWithClock(remote, offline, nil, func() int64 {
		mu.Lock()
		defer mu.Unlock()
		clock += 1000
		return clock
	})
	cache := memory.NewUserCache()
	return &fixture{
		remote:  remote,
		offline: offline,
		store:   store,
		cache:   cache,
		stats:   app.NewStatsService(store, cache, nil),
	}
}

func capitalsDrafts() []domain.QuestionDraft {
	return []domain.QuestionDraft{
		{Text: "Capital of France?", Options: []string{"Lyon", "Paris", "Nice"}, CorrectAnswerIndex: 1},
		{Text: "Capital of Japan?", Options: []string{"Tokyo", "Osaka", "Kyoto"}, CorrectAnswerIndex: 0},
	}
}

func numberedDrafts(n int, prefix string) []domain.QuestionDraft {
	drafts := make([]domain.QuestionDraft, n)
	for i := range drafts {
		drafts[i] = domain.QuestionDraft{
			Text:               prefix + string(rune('A'+i)),
			Options:            []string{"yes", "no"},
			CorrectAnswerIndex: i % 2,
		}
	}
	return drafts
}

func findQuiz(quizzes []domain.Quiz, id string) (domain.Quiz, bool) {
	for _, q := range quizzes {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Quiz{}, false
}

// gatedStore holds the next Query after it has read its snapshot, until the
// test closes release.
type gatedStore struct {
	docstore.Store

	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(inner docstore.Store) *gatedStore {
	return &gatedStore{Store: inner}
}

func (g *gatedStore) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
	g.entered = make(chan struct{})
	g.release = make(chan struct{})
}

func (g *gatedStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	snaps, err := g.Store.Query(ctx, q)

	g.mu.Lock()
	hold := g.armed
	g.armed = false
	entered, release := g.entered, g.release
	g.mu.Unlock()

	if hold {
		close(entered)
		<-release
	}
	return snaps, err
}
