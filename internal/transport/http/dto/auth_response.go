package dto

import (
	"time"

	"github.com/baechuer/contacts-api/internal/domain"
)

// IdentityView is the public identity payload. The password hash never
// leaves the service.
type IdentityView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

func NewIdentityView(id domain.Identity) IdentityView {
	return IdentityView{
		ID:        id.ID,
		Email:     id.Email,
		Role:      id.Role,
		Verified:  id.Verified,
		CreatedAt: id.CreatedAt,
	}
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // "Bearer"
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ConfirmResponse struct {
	Message          string `json:"message"`
	Email            string `json:"email"`
	AlreadyConfirmed bool   `json:"already_confirmed"`
}

// ResetTokenResponse answers GET /auth/reseted_password/{token} for non-HTML
// clients.
type ResetTokenResponse struct {
	Email string `json:"email"`
}
