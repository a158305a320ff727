package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/contacts-api/internal/domain"
	"github.com/baechuer/contacts-api/internal/transport/http/middleware"
	"github.com/baechuer/contacts-api/internal/transport/http/response"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)

	// Email confirmation
	ConfirmEmail(w http.ResponseWriter, r *http.Request)
	ResendConfirmation(w http.ResponseWriter, r *http.Request)

	// Password reset
	RequestPasswordReset(w http.ResponseWriter, r *http.Request)
	ResetPasswordPage(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)

	Me(w http.ResponseWriter, r *http.Request)
	SetUserRole(w http.ResponseWriter, r *http.Request)
}

// Middleware is the chi middleware shape.
type Middleware = func(http.Handler) http.Handler

type Deps struct {
	Health HealthHandler
	Auth   AuthHandler

	AuthMW     Middleware
	VerifiedMW Middleware
	AdminMW    Middleware

	// RateLimit returns the limiter for a scope. Nil disables limiting.
	RateLimit func(scope string) Middleware

	// Metrics serves /metrics; defaults to the global prometheus registry.
	Metrics http.Handler
}

// Rate-limit scopes.
const (
	ScopeRegister     = "register"
	ScopeLogin        = "login"
	ScopeResend       = "confirm_resend"
	ScopeRequestReset = "request_reset"
	ScopeReset        = "reset_password"
)

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.AuthMW == nil {
		return nil, fmt.Errorf("nil Auth middleware")
	}
	if deps.VerifiedMW == nil {
		return nil, fmt.Errorf("nil Verified middleware")
	}
	if deps.AdminMW == nil {
		return nil, fmt.Errorf("nil Admin middleware")
	}

	limit := func(scope string) Middleware {
		if deps.RateLimit == nil {
			return passThrough
		}
		if mw := deps.RateLimit(scope); mw != nil {
			return mw
		}
		return passThrough
	}

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.Metrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.WriteError(w, r, domain.New(domain.KindNotFound, "route_not_found", "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.WriteError(w, r, domain.New(domain.KindValidation, "method_not_allowed", "method not allowed"))
	})

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/auth", func(r chi.Router) {
		r.With(limit(ScopeRegister)).Post("/register", deps.Auth.Register)
		r.With(limit(ScopeLogin)).Post("/login", deps.Auth.Login)

		// --- Email confirmation ---
		r.Get("/confirm/{token}", deps.Auth.ConfirmEmail)
		r.With(limit(ScopeResend)).Post("/confirm", deps.Auth.ResendConfirmation)

		// --- Password reset ---
		r.With(limit(ScopeRequestReset)).Post("/request-reset", deps.Auth.RequestPasswordReset)
		r.Get("/reseted_password/{token}", deps.Auth.ResetPasswordPage)
		r.With(limit(ScopeReset)).Post("/reseted_password", deps.Auth.ResetPassword)
	})

	r.With(deps.AuthMW, deps.VerifiedMW).Get("/users/me", deps.Auth.Me)

	r.Route("/admin", func(r chi.Router) {
		r.Use(deps.AuthMW)
		r.Use(deps.VerifiedMW)
		r.Use(deps.AdminMW)
		r.Put("/users/{id}/role", deps.Auth.SetUserRole)
	})

	return r, nil
}

func passThrough(next http.Handler) http.Handler { return next }
