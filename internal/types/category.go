package types

import (
	"time"

	"github.com/google/uuid"
)

// Category is an admin-managed label. Quizzes do not reference categories
// with a foreign key; the category selector in the authoring UI is advisory.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateCategoryRequest is the admin payload for creating a category.
type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required"`
	Slug        string  `json:"slug" validate:"required"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
}

// UpdateCategoryParams holds mutable category fields; nil means unchanged.
type UpdateCategoryParams struct {
	Name        *string `json:"name,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
}
