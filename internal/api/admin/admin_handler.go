package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/api/auth"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

type updateRoleRequest struct {
	Role types.Role `json:"role"`
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "ListUsers")
	defer span.End()
	l := h.logger.With(slog.String("handler", "AdminListUsers"))

	users, err := h.service.ListUsers(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list users")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, users)
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "UpdateUserRole")
	defer span.End()
	l := h.logger.With(slog.String("handler", "AdminUpdateUserRole"))

	actorID, _ := auth.GetUserIDFromContext(ctx)
	userID := chi.URLParam(r, "userID")
	span.SetAttributes(attribute.String("target.user_id", userID))

	var req updateRoleRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.UpdateUserRole(ctx, actorID, userID, req.Role); err != nil {
		l.WarnContext(ctx, "Failed to update role", slog.Any("error", err), slog.String("target_user_id", userID))
		span.RecordError(err)
		switch {
		case errors.Is(err, api.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid role")
		case errors.Is(err, api.ErrForbidden):
			api.ErrorResponse(w, r, http.StatusForbidden, "You cannot change your own role")
		case errors.Is(err, api.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update role")
		}
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true, Message: "Role updated"})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "DeleteUser")
	defer span.End()
	l := h.logger.With(slog.String("handler", "AdminDeleteUser"))

	actorID, _ := auth.GetUserIDFromContext(ctx)
	userID := chi.URLParam(r, "userID")
	span.SetAttributes(attribute.String("target.user_id", userID))

	if err := h.service.DeleteUser(ctx, actorID, userID); err != nil {
		l.WarnContext(ctx, "Failed to delete user", slog.Any("error", err), slog.String("target_user_id", userID))
		span.RecordError(err)
		switch {
		case errors.Is(err, api.ErrForbidden):
			api.ErrorResponse(w, r, http.StatusForbidden, "You cannot delete your own account here")
		case errors.Is(err, api.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete user")
		}
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *Handler) ListAllQuizzes(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "ListAllQuizzes")
	defer span.End()
	l := h.logger.With(slog.String("handler", "AdminListAllQuizzes"))

	quizzes, err := h.service.ListAllQuizzes(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list quizzes", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list quizzes")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, quizzes)
}

func (h *Handler) UpdateQuizStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "UpdateQuizStatus")
	defer span.End()
	l := h.logger.With(slog.String("handler", "AdminUpdateQuizStatus"))

	quizID := chi.URLParam(r, "quizID")
	span.SetAttributes(attribute.String("quiz.id", quizID))

	var req types.UpdateQuizStatusRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.SetQuizVisibility(ctx, quizID, req.IsPublic); err != nil {
		l.WarnContext(ctx, "Failed to update quiz status", slog.Any("error", err), slog.String("quiz_id", quizID))
		span.RecordError(err)
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Quiz not found")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update quiz status")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true, Message: "Quiz status updated"})
}

func (h *Handler) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "DeleteQuiz")
	defer span.End()
	l := h.logger.With(slog.String("handler", "AdminDeleteQuiz"))

	quizID := chi.URLParam(r, "quizID")
	span.SetAttributes(attribute.String("quiz.id", quizID))

	if err := h.service.DeleteQuiz(ctx, quizID); err != nil {
		l.WarnContext(ctx, "Failed to delete quiz", slog.Any("error", err), slog.String("quiz_id", quizID))
		span.RecordError(err)
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Quiz not found")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete quiz")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AdminHandler").Start(r.Context(), "GetStats")
	defer span.End()
	l := h.logger.With(slog.String("handler", "AdminGetStats"))

	stats, err := h.service.GetStats(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to compute stats", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, stats)
}
