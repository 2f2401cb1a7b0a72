// Package httpserver exposes the auth API over HTTP.
package httpserver

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/invisicipher/internal/model"
	"github.com/and161185/invisicipher/internal/service"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// AuthService is what the handlers need from the auth service.
type AuthService interface {
	Signup(ctx context.Context, in service.SignupInput) (model.UserSummary, error)
	Login(ctx context.Context, identifier, password, ip string) (model.Token, model.UserSummary, error)
	Verify(ctx context.Context, token string) (*model.User, error)
}

var _ AuthService = (*service.AuthService)(nil)

// Handler serves the /api/auth endpoints.
type Handler struct {
	auth    AuthService
	log     *zap.Logger
	metrics *Metrics
	proxies []netip.Prefix
}

// NewHandler constructs a Handler.
func NewHandler(auth AuthService, log *zap.Logger) *Handler {
	return &Handler{auth: auth, log: log}
}

// WithMetrics enables request and auth metrics and the GET /metrics endpoint.
func (h *Handler) WithMetrics(m *Metrics) *Handler {
	h.metrics = m
	return h
}

// WithTrustedProxies lets the listed peers name the client with X-Forwarded-For or X-Real-IP.
func (h *Handler) WithTrustedProxies(p []netip.Prefix) *Handler {
	h.proxies = p
	return h
}

// NewRouter mounts the auth API:
//
//	POST /api/auth/signup
//	POST /api/auth/login
//	GET  /api/auth/me      (bearer token)
//	GET  /metrics          (when metrics are enabled)
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(TrustedRealIP(h.proxies))
	r.Use(RequestLogging(h.log))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(Recover(h.log))
	r.Use(CORS)
	r.Use(LimitBody(MaxBodyBytes))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	r.Route("/api/auth", func(r chi.Router) {
		r.With(RequireJSON).Post("/signup", h.Signup)
		r.With(RequireJSON).Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(h.auth, h.log))
			r.Get("/me", h.Me)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}
