package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnonymousSessionRepository registers anonymous session tokens so exams can
// reference them.
type AnonymousSessionRepository struct {
	pool *pgxpool.Pool
}

// NewAnonymousSessionRepository creates a new AnonymousSessionRepository.
func NewAnonymousSessionRepository(pool *pgxpool.Pool) *AnonymousSessionRepository {
	return &AnonymousSessionRepository{pool: pool}
}

// Touch registers the token on first use and refreshes last_seen_at
// afterwards. created reports whether this call inserted the row. Concurrent
// first uses of the same token never surface a uniqueness violation.
func (r *AnonymousSessionRepository) Touch(ctx context.Context, token string) (created bool, err error) {
	var createdAt time.Time
	err = r.pool.QueryRow(ctx,
		`INSERT INTO anonymous_sessions (token) VALUES ($1)
		 ON CONFLICT (token) DO NOTHING
		 RETURNING created_at`, token,
	).Scan(&createdAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("insert anonymous session: %w", err)
	}

	// Another request registered the token first.
	err = r.pool.QueryRow(ctx,
		`UPDATE anonymous_sessions SET last_seen_at = NOW()
		 WHERE token = $1
		 RETURNING created_at`, token,
	).Scan(&createdAt)
	if err != nil {
		return false, fmt.Errorf("refresh anonymous session: %w", err)
	}
	return false, nil
}
