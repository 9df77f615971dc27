package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizdeck/quizdeck-api/config"
	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService is the identity provider surface consumed by handlers and the
// access guard.
type AuthService interface {
	// Register creates a new identity. When email confirmation is required
	// the returned response carries no session; the session is deferred to
	// the confirmation callback.
	Register(ctx context.Context, email, password string) (*types.RegisterResponse, error)
	Login(ctx context.Context, email, password string) (*types.Session, error)
	Logout(ctx context.Context, refreshToken string) error
	// RefreshSession rotates the refresh token and returns a fresh session.
	RefreshSession(ctx context.Context, refreshToken string) (*types.Session, error)
	// ConfirmEmail exchanges a one-time confirmation code for a session.
	ConfirmEmail(ctx context.Context, code string) (*types.Session, error)
	GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error)
	InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error
}

type AuthServiceImpl struct {
	logger *slog.Logger
	repo   AuthRepo
	cfg    *config.Config
}

func NewAuthService(repo AuthRepo, cfg *config.Config, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		cfg:    cfg,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, email, password string) (*types.RegisterResponse, error) {
	l := s.logger.With(slog.String("operation", "Register"), slog.String("email", email))

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := s.repo.CreateUser(ctx, email, string(hashedPassword))
	if err != nil {
		l.WarnContext(ctx, "User registration failed", slog.Any("error", err))
		return nil, err
	}

	if s.cfg.Auth.RequireEmailConfirmation {
		code := uuid.NewString()
		expiresAt := time.Now().Add(s.cfg.Auth.ConfirmationTokenTTL)
		if err := s.repo.StoreConfirmationCode(ctx, code, userID, expiresAt); err != nil {
			l.ErrorContext(ctx, "Failed to store confirmation code", slog.Any("error", err), slog.String("user_id", userID))
			return nil, err
		}
		// The mail delivery channel is outside this service; the callback
		// link is logged so operators can trace it.
		l.InfoContext(ctx, "Confirmation required, callback link issued",
			slog.String("user_id", userID),
			slog.String("callback", fmt.Sprintf("%s/auth/callback?code=%s", s.cfg.Auth.SiteBaseURL, code)))
		return &types.RegisterResponse{UserID: userID, ConfirmationRequired: true}, nil
	}

	session, err := s.issueSession(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	l.InfoContext(ctx, "User registered", slog.String("user_id", userID))
	return &types.RegisterResponse{UserID: userID, Session: session}, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*types.Session, error) {
	l := s.logger.With(slog.String("operation", "Login"), slog.String("email", email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("login: %w", api.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		l.WarnContext(ctx, "Password mismatch", slog.String("user_id", user.ID))
		return nil, fmt.Errorf("login: %w", api.ErrUnauthorized)
	}

	session, err := s.issueSession(ctx, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	l.InfoContext(ctx, "User logged in", slog.String("user_id", user.ID))
	return session, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.InvalidateRefreshToken(ctx, refreshToken)
}

func (s *AuthServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (*types.Session, error) {
	l := s.logger.With(slog.String("operation", "RefreshSession"))

	userID, err := s.repo.ValidateRefreshTokenAndGetUserID(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Rotate: revoke the presented token before issuing its replacement.
	if err := s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		l.WarnContext(ctx, "Failed to revoke old refresh token", slog.Any("error", err), slog.String("user_id", userID))
	}

	session, err := s.issueSession(ctx, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *AuthServiceImpl) ConfirmEmail(ctx context.Context, code string) (*types.Session, error) {
	l := s.logger.With(slog.String("operation", "ConfirmEmail"))

	userID, err := s.repo.ConsumeConfirmationCode(ctx, code)
	if err != nil {
		l.WarnContext(ctx, "Confirmation code rejected", slog.Any("error", err))
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	l.InfoContext(ctx, "Email confirmed", slog.String("user_id", userID))
	return session, nil
}

func (s *AuthServiceImpl) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *AuthServiceImpl) InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error {
	return s.repo.InvalidateAllUserRefreshTokens(ctx, userID)
}

func (s *AuthServiceImpl) issueSession(ctx context.Context, userID, email string) (*types.Session, error) {
	accessToken, err := s.generateAccessToken(userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken := uuid.NewString()
	expiresAt := time.Now().Add(s.cfg.JWT.RefreshTokenTTL)
	if err := s.repo.StoreRefreshToken(ctx, userID, refreshToken, expiresAt); err != nil {
		return nil, err
	}

	return &types.Session{
		UserID:       userID,
		Email:        email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *AuthServiceImpl) generateAccessToken(userID, email string) (string, error) {
	now := time.Now()
	claims := types.Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.cfg.JWT.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.JWT.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.SecretKey))
}

// FriendlyAuthMessage maps provider error text to end-user messages where
// recognized, else passes the text through verbatim.
func FriendlyAuthMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case errors.Is(err, api.ErrConflict),
		strings.Contains(msg, "duplicate key value violates unique constraint"):
		return "Email address already in use. Please use a different email or sign in."
	case errors.Is(err, api.ErrUnauthorized):
		return "Invalid email or password."
	case strings.Contains(msg, "invalid email"), strings.Contains(msg, "Invalid email format"):
		return "Invalid email format. Please check your email address."
	}
	return msg
}
