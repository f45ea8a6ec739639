package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rx3lixir/voicebank/internal/auth"
	"github.com/rx3lixir/voicebank/internal/feed"
	"github.com/rx3lixir/voicebank/internal/metrics"
	"github.com/rx3lixir/voicebank/internal/recordings"
	"github.com/rx3lixir/voicebank/internal/scripts"
	"github.com/rx3lixir/voicebank/internal/sessions"
	"github.com/rx3lixir/voicebank/pkg/httputil"
)

type RouterConfig struct {
	ScriptHandler    *scripts.Handler
	SessionHandler   *sessions.Handler
	RecordingHandler *recordings.Handler
	FeedHandler      *feed.Handler
	AuthService      *auth.Service
	Metrics          *metrics.Metrics
	// Health reports backing store reachability, nil means always healthy
	Health func(ctx context.Context) error
	Log    *slog.Logger
}

func NewRouter(config RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware block
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(config.Log))
	r.Use(middleware.Recoverer)
	r.Use(config.Metrics.Middleware)

	r.Get("/healthz", httputil.Handler(func(w http.ResponseWriter, r *http.Request) error {
		if config.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := config.Health(ctx); err != nil {
				return httputil.Unavailable(err)
			}
		}
		return httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}, config.Log))
	r.Handle("/metrics", config.Metrics.Handler())

	// Protected routes
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(config.AuthService, config.Log))

		// The feed hijacks its connection, so it stays outside compression
		config.FeedHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))

			config.ScriptHandler.RegisterRoutes(r)
			config.SessionHandler.RegisterRoutes(r)
			config.RecordingHandler.RegisterRoutes(r)
		})
	})

	return r
}
