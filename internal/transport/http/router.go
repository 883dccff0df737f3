// Package http assembles the versioned HTTP surface.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	checkshandler "datex/internal/checks/handler"
	consenthandler "datex/internal/consent/handler"
	exchangehandler "datex/internal/exchange/handler"
	identityhandler "datex/internal/identity/handler"
	participanthandler "datex/internal/participant/handler"
	"datex/internal/platform/metrics"
	"datex/internal/platform/middleware"
	profilehandler "datex/internal/profile/handler"
)

// Handlers collects the per-feature route registrars.
type Handlers struct {
	Identity    *identityhandler.Handler
	Consent     *consenthandler.Handler
	Exchange    *exchangehandler.Handler
	Checks      *checkshandler.Handler
	Participant *participanthandler.Handler
	Profile     *profilehandler.Handler
}

// Deps carries cross-cutting router dependencies.
type Deps struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Authenticator middleware.ParticipantAuthenticator
	Health        func() error
}

// NewRouter wires middleware and mounts every feature under /v1.
// Participant administration stays outside the participant auth gate so a
// fresh deployment can register its first institution.
func NewRouter(h Handlers, deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Latency(deps.Metrics))
	r.Use(middleware.Metadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireParticipant(deps.Authenticator, deps.Logger))
			h.Identity.Register(protected)
			h.Consent.Register(protected)
			h.Exchange.Register(protected)
			h.Checks.Register(protected)
			h.Profile.Register(protected)
		})
		h.Participant.Register(v1)
	})

	return r
}
