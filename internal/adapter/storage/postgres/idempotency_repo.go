package postgres

import (
	"context"
	"errors"
	"fmt"

	"custodial-deposit-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository. The durable layer
// behind the Redis fast path; written in the same transaction as the deposit
// it protects.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create inserts an idempotency log within a transaction.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, l *domain.IdempotencyLog) error {
	query := `INSERT INTO idempotency_logs (key, position_id, response_json, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, l.Key, l.PositionID, l.ResponseJSON, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert idempotency log: %w", err)
	}
	return nil
}

// Get fetches an idempotency log by key.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	query := `SELECT key, position_id, response_json, created_at
		FROM idempotency_logs WHERE key = $1`

	l := &domain.IdempotencyLog{}
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&l.Key, &l.PositionID, &l.ResponseJSON, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency log: %w", err)
	}
	return l, nil
}
