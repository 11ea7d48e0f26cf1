package http

import (
	"net/http"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
)

// MeHandler serves the signed-in user's profile, attempts and feed.
type MeHandler struct {
	store   *app.QuizStore
	stats   *app.StatsService
	ranking *app.RankingService
}

func NewMeHandler(store *app.QuizStore, stats *app.StatsService, ranking *app.RankingService) *MeHandler {
	return &MeHandler{store: store, stats: stats, ranking: ranking}
}

type registerBody struct {
	Name string `json:"name"`
}

type nameBody struct {
	Name string `json:"name" validate:"required"`
}

type avatarBody struct {
	Avatar string `json:"avatar" validate:"required"`
}

type playBody struct {
	QuizID string `json:"quizId" validate:"required"`
	Score  int    `json:"score" validate:"min=0,scorestep"`
}

func (h *MeHandler) Register(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	var body registerBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	writeResult(w, h.stats.Register(r.Context(), sess.UID, sess.Email, body.Name))
}

func (h *MeHandler) Sync(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	rec, err := h.stats.SyncLocal(r.Context(), sess.UID, sess.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *MeHandler) Profile(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Profile(r.Context(), sess.UID))
}

func (h *MeHandler) Rename(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	var body nameBody
	if err := decode(r, &body); err != nil || domain.ValidateStruct(body) != nil {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	res := h.stats.Rename(r.Context(), sess.UID, body.Name)
	h.touchRanking(r, res)
	writeResult(w, res)
}

func (h *MeHandler) ChangeAvatar(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	var body avatarBody
	if err := decode(r, &body); err != nil || domain.ValidateStruct(body) != nil {
		writeError(w, http.StatusBadRequest, "avatar is required")
		return
	}
	res := h.stats.ChangeAvatar(r.Context(), sess.UID, body.Avatar)
	h.touchRanking(r, res)
	writeResult(w, res)
}

func (h *MeHandler) Drafts(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.store.GetMyDrafts(r.Context(), sess.UID))
}

func (h *MeHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.store.GetUserCompletedQuizzes(r.Context(), sess.UID))
}

// RecordPlay stores a finished play. The score must be a whole number of
// correct answers.
func (h *MeHandler) RecordPlay(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	var body playBody
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := domain.ValidateStruct(body); err != nil {
		writeError(w, http.StatusBadRequest, "quizId and a non-negative score in steps of 10 are required")
		return
	}
	res := h.stats.RecordPlay(r.Context(), sess.UID, body.QuizID, body.Score)
	h.touchRanking(r, res)
	writeResult(w, res)
}

// touchRanking drops cached rankings after a write that may change them.
func (h *MeHandler) touchRanking(r *http.Request, res domain.WriteResult) {
	if h.ranking != nil && res.Succeeded() {
		h.ranking.Invalidate(r.Context())
	}
}

func (h *MeHandler) Completed(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.stats.CompletedQuizzes(r.Context(), sess.UID))
}
