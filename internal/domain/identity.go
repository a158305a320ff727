package domain

import "time"

// Identity is the authoritative account record. Verified only moves from
// false to true; PasswordHash changes only through a password reset.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Verified     bool      `json:"verified"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenPurpose scopes a signed token to a single flow.
type TokenPurpose string

const (
	PurposeAccess        TokenPurpose = "access"
	PurposeEmailConfirm  TokenPurpose = "email_confirm"
	PurposePasswordReset TokenPurpose = "password_reset"
)

func (p TokenPurpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeEmailConfirm, PurposePasswordReset:
		return true
	default:
		return false
	}
}
