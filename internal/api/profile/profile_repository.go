package profile

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

var _ Repository = (*PostgresRepo)(nil)

// Repository defines the contract for profile persistence.
type Repository interface {
	// GetByID returns api.ErrNotFound when no profile row exists.
	GetByID(ctx context.Context, userID string) (*types.Profile, error)
	GetByUsername(ctx context.Context, username string) (*types.Profile, error)
	// Create inserts a profile row. Returns api.ErrConflict on a duplicate
	// id or username.
	Create(ctx context.Context, p types.Profile) (*types.Profile, error)
	Update(ctx context.Context, userID string, params types.UpdateProfileParams) (*types.Profile, error)
	GetRole(ctx context.Context, userID string) (types.Role, error)

	// Admin operations.
	ListAll(ctx context.Context) ([]*types.Profile, error)
	UpdateRole(ctx context.Context, userID string, role types.Role) error
	// DeleteUser removes the identity row; the profile goes with it.
	DeleteUser(ctx context.Context, userID string) error
	CountProfiles(ctx context.Context) (int64, error)
}

type PostgresRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresRepo {
	return &PostgresRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const profileColumns = `id, username, display_name, avatar_url, bio, email, role, created_at, updated_at`

func scanProfile(row pgx.Row) (*types.Profile, error) {
	var p types.Profile
	err := row.Scan(&p.ID, &p.Username, &p.DisplayName, &p.AvatarURL, &p.Bio, &p.Email, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, userID string) (*types.Profile, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile '%s': %w", userID, api.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get profile", slog.Any("error", err), slog.String("user_id", userID))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func (r *PostgresRepo) GetByUsername(ctx context.Context, username string) (*types.Profile, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE username = $1`, username)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile username '%s': %w", username, api.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get profile by username", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get profile by username: %w", err)
	}
	return p, nil
}

func (r *PostgresRepo) Create(ctx context.Context, p types.Profile) (*types.Profile, error) {
	row := r.pgpool.QueryRow(ctx,
		`INSERT INTO profiles (id, username, display_name, avatar_url, bio, email, role, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         RETURNING `+profileColumns,
		p.ID, p.Username, p.DisplayName, p.AvatarURL, p.Bio, p.Email, p.Role, time.Now())
	created, err := scanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			return nil, fmt.Errorf("profile for '%s' already exists: %w", p.ID, api.ErrConflict)
		}
		r.logger.ErrorContext(ctx, "Failed to create profile", slog.Any("error", err), slog.String("user_id", p.ID.String()))
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return created, nil
}

func (r *PostgresRepo) Update(ctx context.Context, userID string, params types.UpdateProfileParams) (*types.Profile, error) {
	row := r.pgpool.QueryRow(ctx,
		`UPDATE profiles
         SET username     = COALESCE($2, username),
             display_name = COALESCE($3, display_name),
             avatar_url   = COALESCE($4, avatar_url),
             bio          = COALESCE($5, bio),
             updated_at   = $6
         WHERE id = $1
         RETURNING `+profileColumns,
		userID, params.Username, params.DisplayName, params.AvatarURL, params.Bio, time.Now())
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile '%s': %w", userID, api.ErrNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("username already taken: %w", api.ErrConflict)
		}
		r.logger.ErrorContext(ctx, "Failed to update profile", slog.Any("error", err), slog.String("user_id", userID))
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

func (r *PostgresRepo) GetRole(ctx context.Context, userID string) (types.Role, error) {
	var role types.Role
	err := r.pgpool.QueryRow(ctx,
		`SELECT role FROM profiles WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("profile '%s': %w", userID, api.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get role", slog.Any("error", err), slog.String("user_id", userID))
		return "", fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

func (r *PostgresRepo) ListAll(ctx context.Context) ([]*types.Profile, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC`)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list profiles", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*types.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}
	return profiles, nil
}

func (r *PostgresRepo) UpdateRole(ctx context.Context, userID string, role types.Role) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE profiles SET role = $1, updated_at = $2 WHERE id = $3`,
		role, time.Now(), userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update role", slog.Any("error", err), slog.String("user_id", userID))
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile '%s': %w", userID, api.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepo) DeleteUser(ctx context.Context, userID string) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err), slog.String("user_id", userID))
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user '%s': %w", userID, api.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepo) CountProfiles(ctx context.Context) (int64, error) {
	var count int64
	err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}
