package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"lendvault/core"
	"lendvault/gateway/middleware"
	"lendvault/native/lending"
)

// Config wires the gateway surface together.
type Config struct {
	Node *core.Node
	// OverrideFeed, when set, lets operators push manual price quotes
	// through the admin surface during oracle incidents.
	OverrideFeed *lending.ManualFeed

	Auth          *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
}

// NewRouter assembles the public lending API and the operator surface.
// Lending endpoints require the "lending" scope, admin endpoints "admin".
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	lendingAPI := &lendingRoutes{node: cfg.Node}
	r.Route("/v1/lending", func(r chi.Router) {
		if cfg.Observability != nil {
			r.Use(cfg.Observability.Middleware("lending"))
		}
		if cfg.Auth != nil {
			r.Use(cfg.Auth.Middleware("lending"))
		}
		lendingAPI.mount(r)
	})

	admin := &adminRoutes{node: cfg.Node, overrideFeed: cfg.OverrideFeed}
	r.Route("/v1/admin", func(r chi.Router) {
		if cfg.Observability != nil {
			r.Use(cfg.Observability.Middleware("admin"))
		}
		if cfg.Auth != nil {
			r.Use(cfg.Auth.Middleware("admin"))
		}
		admin.mount(r)
	})

	return r
}
