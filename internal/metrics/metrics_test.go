package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func scrape(m *Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/recording/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/recording/"+id, nil))
	}

	assert.Contains(t, scrape(m),
		`voicebank_http_requests_total{method="GET",route="/api/recording/{id}",status="404"} 2`)
}

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.Uploads.WithLabelValues(OutcomeStored).Inc()
	m.SessionsIssued.Inc()

	body := scrape(m)
	assert.Contains(t, body, `voicebank_uploads_total{outcome="stored"} 1`)
	assert.Contains(t, body, "voicebank_sessions_issued_total 1")
}
