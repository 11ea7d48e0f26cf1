package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quizhub-service/internal/app"
	"quizhub-service/internal/auth"
	"quizhub-service/internal/domain"
)

type QuizHandler struct {
	store *app.QuizStore
}

func NewQuizHandler(store *app.QuizStore) *QuizHandler {
	return &QuizHandler{store: store}
}

type publishBody struct {
	Title      string                 `json:"title"`
	AuthorName string                 `json:"authorName"`
	Status     string                 `json:"status"`
	Questions  []domain.QuestionDraft `json:"questions"`
}

func (h *QuizHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.GetActiveQuizzes(r.Context()))
}

func (h *QuizHandler) Questions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.GetQuestionsByQuizID(r.Context(), chi.URLParam(r, "id")))
}

func (h *QuizHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.publish(w, r, "")
}

func (h *QuizHandler) Republish(w http.ResponseWriter, r *http.Request) {
	h.publish(w, r, chi.URLParam(r, "id"))
}

func (h *QuizHandler) publish(w http.ResponseWriter, r *http.Request, quizID string) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	var body publishBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	authorName := body.AuthorName
	if authorName == "" {
		authorName = domain.DefaultPlayerName
		if profile, err := h.store.GetUserProfile(r.Context(), sess.UID); err == nil {
			authorName = profile.Name
		}
	}

	writeResult(w, h.store.PublishQuiz(r.Context(), app.PublishRequest{
		QuizID:     quizID,
		Title:      body.Title,
		AuthorID:   sess.UID,
		AuthorName: authorName,
		Questions:  body.Questions,
		Status:     body.Status,
	}))
}

func (h *QuizHandler) Release(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.store.ReleaseQuiz(r.Context(), chi.URLParam(r, "id")))
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.store.DeleteQuiz(r.Context(), chi.URLParam(r, "id")))
}

type RankingHandler struct {
	ranking *app.RankingService
}

func NewRankingHandler(ranking *app.RankingService) *RankingHandler {
	return &RankingHandler{ranking: ranking}
}

// Get serves the ranking. An optional ?limit= caps the number of rows.
func (h *RankingHandler) Get(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.ranking.Top(r.Context(), limit))
}

func sessionOr401(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	sess, err := auth.CurrentUser(r.Context())
	if errors.Is(err, domain.ErrUnauthenticated) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return auth.Session{}, false
	}
	return sess, true
}
