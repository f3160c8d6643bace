package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kiranshivaraju/openscribe/internal/apikeys"
	mw "github.com/kiranshivaraju/openscribe/internal/api/middleware"
	"github.com/kiranshivaraju/openscribe/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	AnalyzeStyleHandler     http.HandlerFunc
	ExtractTopicsHandler    http.HandlerFunc
	GenerateStrategyHandler http.HandlerFunc
	GenerateContentHandler  http.HandlerFunc
	GetJobHandler           http.HandlerFunc
	JobStatusHandler        http.HandlerFunc

	EngagementHandler       http.HandlerFunc
	TopicPerformanceHandler http.HandlerFunc
	CurrentStrategyHandler  http.HandlerFunc
	ListStrategiesHandler   http.HandlerFunc

	CreateCredentialHandler http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
		r.Get("/api/v1/jobs/{jobID}/status", orNotImplemented(deps.JobStatusHandler))

		r.Get("/api/v1/analytics/engagement", orNotImplemented(deps.EngagementHandler))
		r.Get("/api/v1/analytics/topics", orNotImplemented(deps.TopicPerformanceHandler))

		r.Get("/api/v1/strategies", orNotImplemented(deps.ListStrategiesHandler))
		r.Get("/api/v1/strategies/current", orNotImplemented(deps.CurrentStrategyHandler))

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(apikeys.ScopeWrite))

			r.Post("/api/v1/analysis/style", orNotImplemented(deps.AnalyzeStyleHandler))
			r.Post("/api/v1/analysis/topics", orNotImplemented(deps.ExtractTopicsHandler))
			r.Post("/api/v1/strategies/generate", orNotImplemented(deps.GenerateStrategyHandler))
			r.Post("/api/v1/content/generate", orNotImplemented(deps.GenerateContentHandler))
			r.Post("/api/v1/credentials", orNotImplemented(deps.CreateCredentialHandler))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(apikeys.ScopeAdmin))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
