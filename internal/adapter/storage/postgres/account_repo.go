package postgres

import (
	"context"
	"errors"
	"fmt"

	"custodial-deposit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account into the database.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (participant_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, query, a.ParticipantID, a.Balance, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByParticipantID fetches an account without locking.
func (r *AccountRepo) GetByParticipantID(ctx context.Context, participantID uuid.UUID) (*domain.Account, error) {
	query := `SELECT participant_id, balance, created_at, updated_at
		FROM accounts WHERE participant_id = $1`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, participantID).Scan(
		&a.ParticipantID, &a.Balance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetForUpdate fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, participantID uuid.UUID) (*domain.Account, error) {
	query := `SELECT participant_id, balance, created_at, updated_at
		FROM accounts WHERE participant_id = $1 FOR UPDATE`

	a := &domain.Account{}
	err := tx.QueryRow(ctx, query, participantID).Scan(
		&a.ParticipantID, &a.Balance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	return a, nil
}

// UpdateBalance sets an account's balance within a transaction.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, participantID uuid.UUID, newBalance int64) error {
	query := `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE participant_id = $2`

	tag, err := tx.Exec(ctx, query, newBalance, participantID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update balance: account %s not found", participantID)
	}
	return nil
}
