package category

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

// Categories are flat reference data, so the handler talks straight to the
// repository.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	validate *validator.Validate
}

func NewHandler(repo Repository, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CategoryHandler").Start(r.Context(), "ListCategories")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ListCategories"))

	categories, err := h.repo.List(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list categories", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []*types.Category{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CategoryHandler").Start(r.Context(), "CreateCategory")
	defer span.End()
	l := h.logger.With(slog.String("handler", "CreateCategory"))

	var req types.CreateCategoryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.String("category.name", req.Name))

	created, err := h.repo.Create(ctx, req)
	if err != nil {
		l.WarnContext(ctx, "Failed to create category", slog.Any("error", err))
		span.RecordError(err)
		if errors.Is(err, api.ErrConflict) {
			api.ErrorResponse(w, r, http.StatusConflict, "A category with that name already exists")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to create category")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CategoryHandler").Start(r.Context(), "UpdateCategory")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateCategory"))

	categoryID := chi.URLParam(r, "categoryID")
	span.SetAttributes(attribute.String("category.id", categoryID))

	var params types.UpdateCategoryParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.repo.Update(ctx, categoryID, params)
	if err != nil {
		l.WarnContext(ctx, "Failed to update category", slog.Any("error", err), slog.String("category_id", categoryID))
		span.RecordError(err)
		switch {
		case errors.Is(err, api.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "Category not found")
		case errors.Is(err, api.ErrConflict):
			api.ErrorResponse(w, r, http.StatusConflict, "A category with that name already exists")
		default:
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update category")
		}
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, updated)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CategoryHandler").Start(r.Context(), "DeleteCategory")
	defer span.End()
	l := h.logger.With(slog.String("handler", "DeleteCategory"))

	categoryID := chi.URLParam(r, "categoryID")
	span.SetAttributes(attribute.String("category.id", categoryID))

	if err := h.repo.Delete(ctx, categoryID); err != nil {
		l.WarnContext(ctx, "Failed to delete category", slog.Any("error", err), slog.String("category_id", categoryID))
		span.RecordError(err)
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Category not found")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete category")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
