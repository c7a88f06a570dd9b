package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medipos/medipos/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByKeyID(ctx context.Context, keyID string) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByKeyID fetches a user by API key identifier.
func (r *PGRepository) FindByKeyID(ctx context.Context, keyID string) (*User, error) {
	const query = `SELECT id, name, role, key_id, key_hash, is_active, created_at, updated_at
		FROM users WHERE key_id = $1`
	var u User
	err := r.pool.QueryRow(ctx, query, keyID).Scan(
		&u.ID, &u.Name, &u.Role, &u.KeyID, &u.KeyHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
