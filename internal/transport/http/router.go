// Package httptransport is the thin HTTP layer. Handlers delegate to the
// residency service without embedding business logic so transport concerns
// remain isolated.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bunkhouse/internal/platform/middleware"
)

// Health reports readiness of a backing dependency.
type Health func(r *http.Request) error

// NewRouter wires all endpoints. Worker routes sit behind authentication;
// health and metrics stay open.
func NewRouter(h *Handler, validator middleware.TokenValidator, logger *slog.Logger, healthChecks ...Health) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", handleHealth(healthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))
		h.Register(r)
	})

	return r
}

func handleHealth(checks []Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unhealthy"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
