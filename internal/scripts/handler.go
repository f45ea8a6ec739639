package scripts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/duration"
	"github.com/rx3lixir/voicebank/pkg/httputil"
)

type Handler struct {
	service *Service
	catalog *duration.Catalog
	log     *slog.Logger
}

func NewHandler(service *Service, catalog *duration.Catalog, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		catalog: catalog,
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/script", httputil.Handler(h.HandleGetScript, h.log))
}

// HandleGetScript serves GET /api/script?duration=5_minutes
func (h *Handler) HandleGetScript(w http.ResponseWriter, r *http.Request) error {
	tier := r.URL.Query().Get("duration")
	if tier == "" {
		return httputil.BadRequest(apierror.KeyInvalidDuration, "duration is required")
	}

	option, err := h.catalog.ParseTier(tier)
	if err != nil {
		return httputil.BadRequest(apierror.KeyInvalidDuration, "Unsupported duration", map[string]any{
			"duration": tier,
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	script, err := h.service.Pick(ctx, option.Tier())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return httputil.NotFound(apierror.KeyScriptNotFound, "No script available for this duration")
		}
		return httputil.Unavailable(err)
	}

	h.log.Debug("script issued", "script_id", script.ID, "tier", option.Tier())
	return httputil.RespondJSON(w, http.StatusOK, script)
}
