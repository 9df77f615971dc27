package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserAuth represents the identity record a user signs in with.
type UserAuth struct {
	ID               string     `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"` // Unique identifier (UUID).
	Email            string     `json:"email" example:"john.doe@example.com"`              // Unique email address used for login.
	Password         string     `json:"-"`                                                 // Hashed password (never exposed).
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Session is the authenticated view of an identity handed to callers after
// sign-in, sign-up or a token refresh.
type Session struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	UserID               string `json:"uid"`
	Email                string `json:"eml"`
	Role                 string `json:"rol,omitempty"`
	jwt.RegisteredClaims        // Embed standard claims (ExpiresAt, IssuedAt, Subject, etc.).
}

// RegisterRequest represents the expected JSON body for user registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email" example:"newuser@example.com"`
	Password string `json:"password" validate:"required,min=8" example:"Str0ngP@ss!"`
	Username string `json:"username,omitempty" example:"newuser"` // Optional; derived from the email local-part when empty.
}

// RegisterResponse distinguishes "email confirmation required" (Session nil)
// from "immediate session".
type RegisterResponse struct {
	UserID               string   `json:"user_id"`
	ConfirmationRequired bool     `json:"confirmation_required"`
	Session              *Session `json:"session,omitempty"`
}

// LoginRequest represents the expected JSON body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Password string `json:"password" validate:"required" example:"password123"`
}

// RefreshTokenRequest represents the expected JSON body for refreshing tokens.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest carries the refresh token to invalidate.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
