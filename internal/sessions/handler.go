package sessions

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/auth"
	"github.com/rx3lixir/voicebank/internal/domain"
	"github.com/rx3lixir/voicebank/internal/scripts"
	"github.com/rx3lixir/voicebank/pkg/httputil"
)

type Handler struct {
	service *Service
	log     *slog.Logger
}

func NewHandler(service *Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/recording-session", httputil.Handler(h.HandleCreateSession, h.log))
}

// HandleCreateSession serves POST /api/recording-session
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) error {
	var req domain.CreateSessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return err
	}

	rec, err := h.service.Issue(r.Context(), auth.GetContributorID(r.Context()), req.ScriptID)
	if err != nil {
		if errors.Is(err, scripts.ErrNotFound) {
			return httputil.NotFound(apierror.KeyScriptNotFound, "Script does not exist")
		}
		return httputil.Unavailable(err)
	}

	h.log.Info("session issued",
		"session_id", rec.ID,
		"script_id", rec.ScriptID,
		"expires_at", rec.ExpiresAt,
	)

	return httputil.RespondJSON(w, http.StatusCreated, rec.Session())
}
