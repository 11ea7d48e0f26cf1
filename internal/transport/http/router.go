package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"quizhub-service/internal/app"
	"quizhub-service/internal/auth"
)

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Quizzes *app.QuizStore
	Stats   *app.StatsService
	Ranking *app.RankingService
	Tokens  auth.Verifier
	Logger  *zap.Logger
}

// NewRouter mounts every route. All /me and authoring routes require a bearer token.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	quizzes := NewQuizHandler(d.Quizzes)
	me := NewMeHandler(d.Quizzes, d.Stats, d.Ranking)
	ranking := NewRankingHandler(d.Ranking)
	stream := NewStatsStreamHandler(d.Stats, d.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ranking", ranking.Get)

	r.Route("/quizzes", func(r chi.Router) {
		r.Get("/", quizzes.ListActive)
		r.Get("/{id}/questions", quizzes.Questions)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(d.Tokens))
			r.Post("/", quizzes.Publish)
			r.Put("/{id}", quizzes.Republish)
			r.Delete("/{id}", quizzes.Delete)
			r.Post("/{id}/release", quizzes.Release)
		})
	})

	r.Route("/me", func(r chi.Router) {
		r.Use(auth.Middleware(d.Tokens))
		r.Post("/register", me.Register)
		r.Post("/sync", me.Sync)
		r.Get("/profile", me.Profile)
		r.Put("/name", me.Rename)
		r.Put("/avatar", me.ChangeAvatar)
		r.Get("/drafts", me.Drafts)
		r.Get("/attempts", me.Attempts)
		r.Post("/attempts", me.RecordPlay)
		r.Get("/completed", me.Completed)
		r.Get("/stream", stream.ServeWS)
	})

	return r
}
