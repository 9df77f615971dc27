package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizdeck/quizdeck-api/internal/api"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

type Repository interface {
	List(ctx context.Context) ([]*types.Category, error)
	GetByID(ctx context.Context, id string) (*types.Category, error)
	Create(ctx context.Context, req types.CreateCategoryRequest) (*types.Category, error)
	Update(ctx context.Context, id string, params types.UpdateCategoryParams) (*types.Category, error)
	Delete(ctx context.Context, id string) error
}

var _ Repository = (*PostgresRepo)(nil)

// DB is the slice of pgxpool.Pool this repository needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

var _ DB = (*pgxpool.Pool)(nil)

type PostgresRepo struct {
	logger *slog.Logger
	pgpool DB
}

func NewPostgresRepo(pgpool DB, logger *slog.Logger) *PostgresRepo {
	return &PostgresRepo{logger: logger, pgpool: pgpool}
}

const categoryColumns = "id, name, slug, description, icon, created_at"

func scanCategory(row pgx.Row) (*types.Category, error) {
	var c types.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Icon, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]*types.Category, error) {
	rows, err := r.pgpool.Query(ctx, `
        SELECT `+categoryColumns+`
        FROM categories
        ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []*types.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (*types.Category, error) {
	c, err := scanCategory(r.pgpool.QueryRow(ctx, `
        SELECT `+categoryColumns+`
        FROM categories
        WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("category %s: %w", id, api.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching category %s: %w", id, err)
	}
	return c, nil
}

func (r *PostgresRepo) Create(ctx context.Context, req types.CreateCategoryRequest) (*types.Category, error) {
	c, err := scanCategory(r.pgpool.QueryRow(ctx, `
        INSERT INTO categories (name, slug, description, icon)
        VALUES ($1, $2, $3, $4)
        RETURNING `+categoryColumns,
		req.Name, req.Slug, req.Description, req.Icon))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("category slug %q already exists: %w", req.Slug, api.ErrConflict)
		}
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return c, nil
}

func (r *PostgresRepo) Update(ctx context.Context, id string, params types.UpdateCategoryParams) (*types.Category, error) {
	c, err := scanCategory(r.pgpool.QueryRow(ctx, `
        UPDATE categories
        SET name        = COALESCE($2, name),
            slug        = COALESCE($3, slug),
            description = COALESCE($4, description),
            icon        = COALESCE($5, icon)
        WHERE id = $1
        RETURNING `+categoryColumns,
		id, params.Name, params.Slug, params.Description, params.Icon))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("category %s: %w", id, api.ErrNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("category slug already exists: %w", api.ErrConflict)
		}
		return nil, fmt.Errorf("updating category %s: %w", id, err)
	}
	return c, nil
}

// Delete removes the category row only. Quizzes keep their category label;
// nothing references categories by key.
func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting category %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %s: %w", id, api.ErrNotFound)
	}
	return nil
}
