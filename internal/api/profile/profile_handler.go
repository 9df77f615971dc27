package profile

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/api/auth"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// GetMyProfile returns the caller's own profile.
func (h *Handler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "GetMyProfile")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetMyProfile"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		l.ErrorContext(ctx, "User ID not found in context")
		span.SetStatus(codes.Error, "Unauthorized - User ID missing")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	p, err := h.service.GetProfile(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to get profile", slog.Any("error", err), slog.String("user_id", userID))
		span.RecordError(err)
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Profile not found")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to get profile")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// GetProfileByID returns any profile by id (public read).
func (h *Handler) GetProfileByID(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "GetProfileByID")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetProfileByID"))

	profileID := chi.URLParam(r, "profileID")
	span.SetAttributes(attribute.String("profile.id", profileID))

	p, err := h.service.GetProfile(ctx, profileID)
	if err != nil {
		l.WarnContext(ctx, "Failed to get profile", slog.Any("error", err), slog.String("profile_id", profileID))
		span.RecordError(err)
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Profile not found")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to get profile")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// UpdateMyProfile mutates the caller's own profile.
func (h *Handler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ProfileHandler").Start(r.Context(), "UpdateMyProfile")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateMyProfile"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	var params types.UpdateProfileParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.service.UpdateProfile(ctx, userID, userID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update profile", slog.Any("error", err), slog.String("user_id", userID))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		switch {
		case errors.Is(err, api.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "Profile not found")
		case errors.Is(err, api.ErrConflict):
			api.ErrorResponse(w, r, http.StatusConflict, "Username already taken")
		default:
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update profile")
		}
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}
