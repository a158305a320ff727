package http_handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/contacts-api/internal/application/auth"
	"github.com/baechuer/contacts-api/internal/audit"
	"github.com/baechuer/contacts-api/internal/domain"
	"github.com/baechuer/contacts-api/internal/logger"
	"github.com/baechuer/contacts-api/internal/metrics"
	"github.com/baechuer/contacts-api/internal/transport/http/dto"
	"github.com/baechuer/contacts-api/internal/transport/http/middleware"
	"github.com/baechuer/contacts-api/internal/transport/http/response"
)

type AuthHandler struct {
	svc   *auth.Service
	audit *audit.Logger
}

// NewAuthHandler wires the auth endpoints. al may be nil.
func NewAuthHandler(svc *auth.Service, al *audit.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, audit: al}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	id, err := h.svc.Register(r.Context(), auth.RegisterRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().
		Str("user_id", id.ID).
		Msg("user_registered")

	response.Created(w, dto.NewIdentityView(id))
}

// ConfirmEmail handles GET /auth/confirm/{token}.
func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	res, err := h.svc.ConfirmEmail(r.Context(), token)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	msg := "email confirmed"
	if res.AlreadyConfirmed {
		msg = "email already confirmed"
	}
	response.Created(w, dto.ConfirmResponse{
		Message:          msg,
		Email:            res.Email,
		AlreadyConfirmed: res.AlreadyConfirmed,
	})
}

// ResendConfirmation handles POST /auth/confirm. The reply is the same for
// unknown, unverified and verified addresses.
func (h *AuthHandler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req dto.ResendConfirmRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.ResendConfirmation(r.Context(), req.Email); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Created(w, dto.MessageResponse{
		Message: "if the account exists and is not confirmed, a confirmation email has been sent",
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	ip := middleware.ClientIP(r)
	res, err := h.svc.Login(r.Context(), auth.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		status := "error"
		if domain.Is(err, "invalid_credentials") {
			status = "invalid_credentials"
		}
		metrics.LoginAttemptsTotal.WithLabelValues(status).Inc()
		if h.audit != nil {
			h.audit.LoginFailed(r.Context(), req.Email, ip, status)
		}
		response.WriteError(w, r, err)
		return
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	if h.audit != nil {
		h.audit.LoginSuccess(r.Context(), res.Identity.ID, res.Identity.Email, ip)
	}

	response.OK(w, dto.LoginResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresIn:   res.ExpiresIn,
	})
}

// RequestPasswordReset handles POST /auth/request-reset.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.RequestResetRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Created(w, dto.MessageResponse{
		Message: "if the account exists, a password reset email has been sent",
	})
}

// ResetPasswordPage handles GET /auth/reseted_password/{token}. Browsers get
// the form; API clients get the account email.
func (h *AuthHandler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))

	email, err := h.svc.ValidateResetToken(r.Context(), token)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	if !wantsHTML(r) {
		response.OK(w, dto.ResetTokenResponse{Email: email})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	if err := renderResetPage(w, resetPageData{Email: email, Token: token, Action: resetSubmitPath}); err != nil {
		logger.WithCtx(r.Context()).Error().Err(err).Msg("reset page render failed")
	}
}

// ResetPassword handles POST /auth/reseted_password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Created(w, dto.MessageResponse{Message: "password updated"})
}

// Me handles GET /users/me. The identity was resolved by the authenticator.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrUnauthorized())
		return
	}
	response.OK(w, dto.NewIdentityView(id))
}

// SetUserRole handles PUT /admin/users/{id}/role.
func (h *AuthHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	actorRole, _ := middleware.RoleFromContext(r.Context())

	targetID := strings.TrimSpace(chi.URLParam(r, "id"))
	if targetID == "" {
		response.WriteError(w, r, domain.ErrMissingField("id"))
		return
	}

	var req dto.SetRoleRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.SetUserRole(r.Context(), actorID, actorRole, targetID, req.Role); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.NoContent(w)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
