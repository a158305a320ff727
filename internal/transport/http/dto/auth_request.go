package dto

import (
	"strings"
)

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
}

func (r *RegisterRequest) Validate() error {
	r.Email = normalizeEmail(r.Email)
	return validateStruct(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate only checks presence; format problems surface as
// invalid_credentials so login never hints at which part was wrong.
func (r *LoginRequest) Validate() error {
	r.Email = normalizeEmail(r.Email)
	return validateStruct(r)
}

// ResendConfirmRequest is the body of POST /auth/confirm.
type ResendConfirmRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (r *ResendConfirmRequest) Validate() error {
	r.Email = normalizeEmail(r.Email)
	return validateStruct(r)
}

// RequestResetRequest: the server answers 201 whether or not the email exists.
type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (r *RequestResetRequest) Validate() error {
	r.Email = normalizeEmail(r.Email)
	return validateStruct(r)
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,password"`
}

func (r *ResetPasswordRequest) Validate() error {
	r.Token = strings.TrimSpace(r.Token)
	return validateStruct(r)
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

func (r *SetRoleRequest) Validate() error {
	r.Role = strings.TrimSpace(r.Role)
	return validateStruct(r)
}
