package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rx3lixir/voicebank/pkg/httputil"
)

type contextKey string

const contributorIDKey contextKey = "contributor_id"

func Middleware(authService *Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.RespondError(w, r, httputil.Unauthorized("authorization required"), log)
				return
			}

			claims, err := authService.ValidateAccessToken(token)
			if err != nil {
				log.Debug("rejected bearer token", "error", err, "path", r.URL.Path)
				httputil.RespondError(w, r, httputil.Unauthorized("invalid or expired token"), log)
				return
			}

			ctx := context.WithValue(r.Context(), contributorIDKey, claims.ContributorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for websocket clients that cannot set headers
func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// GetContributorID extracts the authenticated contributor from context
func GetContributorID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(contributorIDKey).(uuid.UUID)
	return id
}

// WithContributorID is used by tests and internal callers
func WithContributorID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contributorIDKey, id)
}
