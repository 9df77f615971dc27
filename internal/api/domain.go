package api

import "errors"

// Sentinel errors shared by services and repositories. Handlers translate
// them to HTTP statuses; everything else is a 500.
var (
	ErrNotFound     = errors.New("requested item not found")
	ErrConflict     = errors.New("item already exists or conflict")
	ErrUnauthorized = errors.New("invalid credentials or session")
	ErrForbidden    = errors.New("operation not allowed for this user")
	ErrValidation   = errors.New("validation failed")
)

// Response represents a generic API response for success or error messages.
type Response struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Operation successful"`
	Error   string `json:"error,omitempty" example:"Resource not found"`
}
