package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/quizdeck/quizdeck-api/app/observability/metrics"
	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

// ProfileProvisioner lazily materializes the profile for an authenticated
// identity. Implemented by the profile service; the indirection keeps the
// auth package free of a profile import.
type ProfileProvisioner interface {
	EnsureProfile(ctx context.Context, userID, email, username string) (*types.Profile, error)
}

type AuthHandler struct {
	logger      *slog.Logger
	service     AuthService
	provisioner ProfileProvisioner
	validate    *validator.Validate
}

func NewAuthHandler(service AuthService, provisioner ProfileProvisioner, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		service:     service,
		provisioner: provisioner,
		validate:    validator.New(),
	}
}

// Register handles sign-up. When email confirmation is required no session
// is returned and provisioning is deferred to the confirmation callback.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Register")
	defer span.End()
	defer observeAuth(ctx, "register")()
	l := h.logger.With(slog.String("handler", "Register"))

	var req types.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		l.WarnContext(ctx, "Register validation failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, FriendlyAuthMessage(err))
		return
	}

	resp, err := h.service.Register(ctx, req.Email, req.Password)
	if err != nil {
		l.WarnContext(ctx, "Register failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Register failed")
		status := http.StatusInternalServerError
		if errors.Is(err, api.ErrConflict) {
			status = http.StatusConflict
		}
		api.ErrorResponse(w, r, status, FriendlyAuthMessage(err))
		return
	}
	span.SetAttributes(attribute.String("user.id", resp.UserID), attribute.Bool("confirmation_required", resp.ConfirmationRequired))

	// Provision only on the immediate-session path; the confirmation path
	// provisions on the eventual callback sign-in.
	if resp.Session != nil {
		h.provision(ctx, resp.Session, req.Username)
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Login")
	defer span.End()
	defer observeAuth(ctx, "login")()
	l := h.logger.With(slog.String("handler", "Login"))

	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, FriendlyAuthMessage(err))
		return
	}

	session, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		l.WarnContext(ctx, "Login failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Login failed")
		status := http.StatusInternalServerError
		if errors.Is(err, api.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		api.ErrorResponse(w, r, status, FriendlyAuthMessage(err))
		return
	}
	span.SetAttributes(attribute.String("user.id", session.UserID))

	h.provision(ctx, session, "")

	api.WriteJSONResponse(w, r, http.StatusOK, session)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Logout")
	defer span.End()
	l := h.logger.With(slog.String("handler", "Logout"))

	var req types.LogoutRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Logout(ctx, req.RefreshToken); err != nil {
		l.ErrorContext(ctx, "Logout failed", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Logout failed")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true, Message: "Logged out"})
}

func (h *AuthHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "RefreshSession")
	defer span.End()
	l := h.logger.With(slog.String("handler", "RefreshSession"))

	var req types.RefreshTokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.RefreshSession(ctx, req.RefreshToken)
	if err != nil {
		l.WarnContext(ctx, "Session refresh failed", slog.Any("error", err))
		span.RecordError(err)
		status := http.StatusInternalServerError
		if errors.Is(err, api.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		api.ErrorResponse(w, r, status, "Invalid or expired refresh token")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, session)
}

// ConfirmCallback exchanges a one-time confirmation code for a session. This
// backs the email-confirmation callback link.
func (h *AuthHandler) ConfirmCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "ConfirmCallback")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ConfirmCallback"))

	code := r.URL.Query().Get("code")
	if code == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Missing confirmation code")
		return
	}

	session, err := h.service.ConfirmEmail(ctx, code)
	if err != nil {
		l.WarnContext(ctx, "Email confirmation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Confirmation failed")
		status := http.StatusInternalServerError
		if errors.Is(err, api.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		api.ErrorResponse(w, r, status, "Invalid or expired confirmation link")
		return
	}
	span.SetAttributes(attribute.String("user.id", session.UserID))

	// Deferred sign-up provisioning happens here.
	h.provision(ctx, session, "")

	api.WriteJSONResponse(w, r, http.StatusOK, session)
}

// GetSession returns the caller's identity plus profile. An authenticated
// session observed without a profile triggers provisioning.
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "GetSession")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetSession"))

	userID, ok := GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.service.GetUserByID(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load user", slog.Any("error", err), slog.String("user_id", userID))
		span.RecordError(err)
		status := http.StatusInternalServerError
		if errors.Is(err, api.ErrNotFound) {
			status = http.StatusNotFound
		}
		api.ErrorResponse(w, r, status, "Failed to load session")
		return
	}

	profile, err := h.provisioner.EnsureProfile(ctx, user.ID, user.Email, "")
	if err != nil {
		// Degraded, profile-less state: the session itself stays valid.
		l.ErrorContext(ctx, "Profile provisioning failed", slog.Any("error", err), slog.String("user_id", user.ID))
		span.RecordError(err)
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"user":    user,
		"profile": profile,
	})
}

// observeAuth records one auth request and its duration on completion.
func observeAuth(ctx context.Context, op string) func() {
	start := time.Now()
	return func() {
		m := metrics.Get()
		attrs := metric.WithAttributes(attribute.String("operation", op))
		m.AuthRequestsTotal.Add(ctx, 1, attrs)
		m.AuthDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// provision runs profile provisioning for a fresh session. Failure is logged
// and surfaced nowhere else: the user stays signed in with a degraded state.
func (h *AuthHandler) provision(ctx context.Context, session *types.Session, username string) {
	if _, err := h.provisioner.EnsureProfile(ctx, session.UserID, session.Email, username); err != nil {
		h.logger.ErrorContext(ctx, "Profile provisioning failed",
			slog.Any("error", err),
			slog.String("operation", "EnsureProfile"),
			slog.String("user_id", session.UserID))
	}
}
