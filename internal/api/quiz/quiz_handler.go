package quiz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/api/auth"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

type Handler struct {
	logger   *slog.Logger
	service  Service
	validate *validator.Validate
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// CreateQuiz handles the authoring flow submission.
func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("QuizHandler").Start(r.Context(), "CreateQuiz")
	defer span.End()
	l := h.logger.With(slog.String("handler", "CreateQuiz"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		l.ErrorContext(ctx, "User ID not found in context")
		span.SetStatus(codes.Error, "Unauthorized - User ID missing")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	var req types.CreateQuizRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.String("quiz.title", req.Title), attribute.Int("quiz.questions", len(req.Questions)))

	created, err := h.service.CreateQuiz(ctx, userID, req)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create quiz", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			api.WriteJSONResponse(w, r, http.StatusUnprocessableEntity, map[string]interface{}{
				"success": false,
				"error":   vErr.Message,
				"section": vErr.Section,
			})
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to create quiz: "+err.Error())
		return
	}

	span.SetAttributes(attribute.String("quiz.id", created.ID.String()))
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

// GetQuiz returns a quiz with its ordered questions.
func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("QuizHandler").Start(r.Context(), "GetQuiz")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetQuiz"))

	quizID := chi.URLParam(r, "quizID")
	span.SetAttributes(attribute.String("quiz.id", quizID))

	result, err := h.service.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		l.WarnContext(ctx, "Failed to get quiz", slog.Any("error", err), slog.String("quiz_id", quizID))
		span.RecordError(err)
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Quiz not found")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to get quiz")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// ListPublicQuizzes returns the newest public quizzes with creators.
func (h *Handler) ListPublicQuizzes(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("QuizHandler").Start(r.Context(), "ListPublicQuizzes")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ListPublicQuizzes"))

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	quizzes, err := h.service.ListPublic(ctx, limit)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list quizzes", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list quizzes")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, quizzes)
}

// ListMyQuizzes returns the caller's quizzes regardless of visibility.
func (h *Handler) ListMyQuizzes(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("QuizHandler").Start(r.Context(), "ListMyQuizzes")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ListMyQuizzes"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	quizzes, err := h.service.ListByUser(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list quizzes", slog.Any("error", err), slog.String("user_id", userID))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list quizzes")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, quizzes)
}

// UpdateQuizStatus toggles quiz visibility (owner or admin).
func (h *Handler) UpdateQuizStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("QuizHandler").Start(r.Context(), "UpdateQuizStatus")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateQuizStatus"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	quizID := chi.URLParam(r, "quizID")
	span.SetAttributes(attribute.String("quiz.id", quizID))

	var req types.UpdateQuizStatusRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.SetVisibility(ctx, userID, quizID, req.IsPublic); err != nil {
		l.WarnContext(ctx, "Failed to update quiz status", slog.Any("error", err), slog.String("quiz_id", quizID))
		span.RecordError(err)
		h.writeQuizError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true, Message: "Quiz status updated"})
}

// DeleteQuiz removes a quiz and its questions (owner or admin).
func (h *Handler) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("QuizHandler").Start(r.Context(), "DeleteQuiz")
	defer span.End()
	l := h.logger.With(slog.String("handler", "DeleteQuiz"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	quizID := chi.URLParam(r, "quizID")
	span.SetAttributes(attribute.String("quiz.id", quizID))

	if err := h.service.DeleteQuiz(ctx, userID, quizID); err != nil {
		l.WarnContext(ctx, "Failed to delete quiz", slog.Any("error", err), slog.String("quiz_id", quizID))
		span.RecordError(err)
		h.writeQuizError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *Handler) writeQuizError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, api.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "Quiz not found")
	case errors.Is(err, api.ErrForbidden):
		api.ErrorResponse(w, r, http.StatusForbidden, "You cannot modify this quiz")
	default:
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Operation failed")
	}
}
