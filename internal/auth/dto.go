package auth

import "github.com/castellan-io/castellan/internal/users"

// RegisterRequest is the self-service signup payload. Role assignment is not
// part of signup; new accounts always start as USER.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest carries credentials for token issuance.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse pairs the signed token with the authenticated user.
type TokenResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}
