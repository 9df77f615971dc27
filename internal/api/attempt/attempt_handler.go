package attempt

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
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

type selectRequest struct {
	OptionID string `json:"optionId"`
}

// caller pulls the authenticated user and route quiz ID for every endpoint.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (userID, quizID string, ok bool) {
	userID, found := auth.GetUserIDFromContext(r.Context())
	if !found || userID == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return "", "", false
	}
	quizID = chi.URLParam(r, "quizID")
	if quizID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Quiz ID is required")
		return "", "", false
	}
	return userID, quizID, true
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AttemptHandler").Start(r.Context(), "Start")
	defer span.End()
	l := h.logger.With(slog.String("handler", "StartAttempt"))

	userID, quizID, ok := h.caller(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("quiz.id", quizID), attribute.String("user.id", userID))

	view, err := h.service.Start(ctx, userID, quizID)
	if err != nil {
		l.WarnContext(ctx, "Failed to start attempt", slog.Any("error", err), slog.String("quiz_id", quizID))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Start failed")
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Quiz not found")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to start attempt")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, view)
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AttemptHandler").Start(r.Context(), "State")
	defer span.End()

	userID, quizID, ok := h.caller(w, r)
	if !ok {
		return
	}
	view, err := h.service.State(ctx, userID, quizID)
	if err != nil {
		h.writeAttemptError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AttemptHandler").Start(r.Context(), "Select")
	defer span.End()
	l := h.logger.With(slog.String("handler", "SelectAnswer"))

	userID, quizID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.OptionID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Option ID is required")
		return
	}
	view, err := h.service.Select(ctx, userID, quizID, req.OptionID)
	if err != nil {
		l.WarnContext(ctx, "Failed to record answer", slog.Any("error", err), slog.String("quiz_id", quizID))
		span.RecordError(err)
		h.writeAttemptError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AttemptHandler").Start(r.Context(), "Next")
	defer span.End()

	userID, quizID, ok := h.caller(w, r)
	if !ok {
		return
	}
	view, err := h.service.Next(ctx, userID, quizID)
	if err != nil {
		h.writeAttemptError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AttemptHandler").Start(r.Context(), "Previous")
	defer span.End()

	userID, quizID, ok := h.caller(w, r)
	if !ok {
		return
	}
	view, err := h.service.Previous(ctx, userID, quizID)
	if err != nil {
		h.writeAttemptError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AttemptHandler").Start(r.Context(), "Restart")
	defer span.End()

	userID, quizID, ok := h.caller(w, r)
	if !ok {
		return
	}
	view, err := h.service.Restart(ctx, userID, quizID)
	if err != nil {
		h.writeAttemptError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AttemptHandler").Start(r.Context(), "Result")
	defer span.End()
	l := h.logger.With(slog.String("handler", "AttemptResult"))

	userID, quizID, ok := h.caller(w, r)
	if !ok {
		return
	}
	result, err := h.service.Result(ctx, userID, quizID)
	if err != nil {
		l.WarnContext(ctx, "Failed to get result", slog.Any("error", err), slog.String("quiz_id", quizID))
		span.RecordError(err)
		if errors.Is(err, api.ErrValidation) {
			api.ErrorResponse(w, r, http.StatusConflict, "Attempt is still in progress")
			return
		}
		h.writeAttemptError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

func (h *Handler) writeAttemptError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, api.ErrNotFound) {
		api.ErrorResponse(w, r, http.StatusNotFound, "No attempt in progress for this quiz")
		return
	}
	api.ErrorResponse(w, r, http.StatusInternalServerError, "Operation failed")
}
