package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo defines the contract for identity persistence.
type AuthRepo interface {
	// CreateUser inserts a new identity and returns its generated id.
	// Returns api.ErrConflict when the email is already registered.
	CreateUser(ctx context.Context, email, hashedPassword string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error)
	GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error)

	StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	// ValidateRefreshTokenAndGetUserID returns the owning user id for a
	// live (unexpired, unrevoked) refresh token.
	ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (string, error)
	InvalidateRefreshToken(ctx context.Context, refreshToken string) error
	InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error

	StoreConfirmationCode(ctx context.Context, code, userID string, expiresAt time.Time) error
	// ConsumeConfirmationCode marks a one-time code used and confirms the
	// identity's email, returning the owning user id.
	ConsumeConfirmationCode(ctx context.Context, code string) (string, error)
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresAuthRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, email, hashedPassword string) (string, error) {
	var userID string
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, created_at)
         VALUES ($1, $2, $3)
         RETURNING id`,
		email, hashedPassword, time.Now()).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			return "", fmt.Errorf("email '%s' already registered: %w", email, api.ErrConflict)
		}
		r.logger.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err), slog.String("email", email))
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	return userID, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, email, password_hash, email_confirmed_at, created_at
         FROM users WHERE email = $1`,
		email).Scan(&user.ID, &user.Email, &user.Password, &user.EmailConfirmedAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with email '%s': %w", email, api.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get user by email", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, email, password_hash, email_confirmed_at, created_at
         FROM users WHERE id = $1`,
		userID).Scan(&user.ID, &user.Email, &user.Password, &user.EmailConfirmedAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user '%s': %w", userID, api.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get user by id", slog.Any("error", err), slog.String("user_id", userID))
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at)
         VALUES ($1, $2, $3)`,
		userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: db insert failed: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (string, error) {
	var userID string
	var expiresAt time.Time
	var revokedAt *time.Time

	err := r.pgpool.QueryRow(ctx,
		`SELECT user_id, expires_at, revoked_at
         FROM refresh_tokens
         WHERE token = $1`, refreshToken).Scan(&userID, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("refresh token: %w", api.ErrUnauthorized)
		}
		return "", fmt.Errorf("validate refresh token: query failed: %w", err)
	}

	if time.Now().After(expiresAt) || revokedAt != nil {
		return "", fmt.Errorf("refresh token expired or revoked: %w", api.ErrUnauthorized)
	}
	return userID, nil
}

func (r *PostgresAuthRepo) InvalidateRefreshToken(ctx context.Context, refreshToken string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $1
         WHERE token = $2 AND revoked_at IS NULL`,
		time.Now(), refreshToken)
	if err != nil {
		return fmt.Errorf("invalidate refresh token: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Token was already revoked or never existed; not an error for logout.
		r.logger.WarnContext(ctx, "No live refresh token found to revoke")
	}
	return nil
}

func (r *PostgresAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $1
         WHERE user_id = $2 AND revoked_at IS NULL`,
		time.Now(), userID)
	if err != nil {
		return fmt.Errorf("invalidate all tokens: db update failed: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) StoreConfirmationCode(ctx context.Context, code, userID string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO confirmation_tokens (code, user_id, expires_at)
         VALUES ($1, $2, $3)`,
		code, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("store confirmation code: db insert failed: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) ConsumeConfirmationCode(ctx context.Context, code string) (string, error) {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("consume confirmation code: begin failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID string
	var expiresAt time.Time
	var usedAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT user_id, expires_at, used_at
         FROM confirmation_tokens
         WHERE code = $1
         FOR UPDATE`, code).Scan(&userID, &expiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("confirmation code: %w", api.ErrUnauthorized)
		}
		return "", fmt.Errorf("consume confirmation code: query failed: %w", err)
	}

	if time.Now().After(expiresAt) || usedAt != nil {
		return "", fmt.Errorf("confirmation code expired or already used: %w", api.ErrUnauthorized)
	}

	now := time.Now()
	if _, err = tx.Exec(ctx,
		`UPDATE confirmation_tokens SET used_at = $1 WHERE code = $2`, now, code); err != nil {
		return "", fmt.Errorf("consume confirmation code: mark used failed: %w", err)
	}
	if _, err = tx.Exec(ctx,
		`UPDATE users SET email_confirmed_at = $1, updated_at = $1 WHERE id = $2 AND email_confirmed_at IS NULL`,
		now, userID); err != nil {
		return "", fmt.Errorf("consume confirmation code: confirm email failed: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("consume confirmation code: commit failed: %w", err)
	}
	return userID, nil
}
