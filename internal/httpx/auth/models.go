package auth

import (
	"tracker-api/internal/store"
)

// TokenResponse represents an access token response
// swagger:model TokenResponse
type TokenResponse struct {
	AccessToken string     `json:"access_token" example:"<JWT>"`
	TokenType   string     `json:"token_type" example:"Bearer"`
	ExpiresIn   int        `json:"expires_in" example:"3600"`
	User        store.User `json:"user"`
}

// LoginRequest represents the password login request body
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"alice@example.com"`
	Password string `json:"password" validate:"required" example:"Secretp@ssw0rd"`
}

// RegisterRequest represents the registration request body
// swagger:model RegisterRequest
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254" example:"alice@example.com"`
	Password string `json:"password" validate:"required,min=8,max=128" example:"Secretp@ssw0rd"`
	Name     string `json:"name" validate:"required,max=120" example:"Alice"`
}
