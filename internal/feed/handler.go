package feed

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rx3lixir/voicebank/internal/auth"
	"github.com/rx3lixir/voicebank/pkg/httputil"
)

type Handler struct {
	hub            *Hub
	originPatterns []string
	log            *slog.Logger
}

func NewHandler(hub *Hub, originPatterns []string, log *slog.Logger) *Handler {
	return &Handler{
		hub:            hub,
		originPatterns: originPatterns,
		log:            log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/recordings/feed", h.HandleConnection)
}

// HandleConnection upgrades to a websocket and blocks until the listener
// goes away. Authentication happens in the auth middleware, which accepts
// ?token= since browsers cannot set headers on websocket requests.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	contributorID := auth.GetContributorID(r.Context())
	if contributorID == uuid.Nil {
		httputil.RespondError(w, r, httputil.Unauthorized("Missing authorization token"), h.log)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(contributorID, conn, h.hub, h.log)
	if !h.hub.join(client) {
		conn.Close(websocket.StatusGoingAway, "feed closed")
		return
	}

	h.log.Info("feed connection established", "contributor_id", contributorID)

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}
