package postgres

import (
	"context"
	"errors"
	"fmt"

	"custodial-deposit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ParamsRepo implements ports.ParamsRepository. The ledger_params table holds
// exactly one row with a fixed primary key.
type ParamsRepo struct {
	pool Pool
}

// NewParamsRepo creates a new ParamsRepo.
func NewParamsRepo(pool Pool) *ParamsRepo {
	return &ParamsRepo{pool: pool}
}

// Init seeds the params row on first start. A no-op if the row exists.
func (r *ParamsRepo) Init(ctx context.Context, p *domain.LedgerParams) error {
	query := `INSERT INTO ledger_params (singleton, rate_bps, admin_id, issuer_key, reserve_account_id, next_position_id, updated_at)
		VALUES (TRUE, $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (singleton) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		p.RateBps, p.AdminID, p.IssuerKey, p.ReserveAccountID, p.NextPositionID,
	)
	if err != nil {
		return fmt.Errorf("init ledger params: %w", err)
	}
	return nil
}

// Get fetches the params row without locking.
func (r *ParamsRepo) Get(ctx context.Context) (*domain.LedgerParams, error) {
	query := `SELECT rate_bps, admin_id, issuer_key, reserve_account_id, next_position_id, updated_at
		FROM ledger_params WHERE singleton = TRUE`

	p := &domain.LedgerParams{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&p.RateBps, &p.AdminID, &p.IssuerKey, &p.ReserveAccountID, &p.NextPositionID, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ledger params not initialized")
		}
		return nil, fmt.Errorf("get ledger params: %w", err)
	}
	return p, nil
}

// GetForUpdate locks and fetches the params row. Locking this single row
// serializes every state-changing ledger operation.
// This MUST be called within a transaction.
func (r *ParamsRepo) GetForUpdate(ctx context.Context, tx pgx.Tx) (*domain.LedgerParams, error) {
	query := `SELECT rate_bps, admin_id, issuer_key, reserve_account_id, next_position_id, updated_at
		FROM ledger_params WHERE singleton = TRUE FOR UPDATE`

	p := &domain.LedgerParams{}
	err := tx.QueryRow(ctx, query).Scan(
		&p.RateBps, &p.AdminID, &p.IssuerKey, &p.ReserveAccountID, &p.NextPositionID, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ledger params not initialized")
		}
		return nil, fmt.Errorf("get ledger params for update: %w", err)
	}
	return p, nil
}

// AdvancePositionSequence allocates the next position id inside the caller's
// transaction. A rollback of that transaction returns the id, unlike a
// Postgres sequence which would leak it.
func (r *ParamsRepo) AdvancePositionSequence(ctx context.Context, tx pgx.Tx) (int64, error) {
	query := `UPDATE ledger_params SET next_position_id = next_position_id + 1
		WHERE singleton = TRUE RETURNING next_position_id - 1`

	var id int64
	if err := tx.QueryRow(ctx, query).Scan(&id); err != nil {
		return 0, fmt.Errorf("advance position sequence: %w", err)
	}
	return id, nil
}

// UpdateRate sets the global interest rate within a transaction.
func (r *ParamsRepo) UpdateRate(ctx context.Context, tx pgx.Tx, newRateBps int32) error {
	query := `UPDATE ledger_params SET rate_bps = $1, updated_at = NOW() WHERE singleton = TRUE`

	if _, err := tx.Exec(ctx, query, newRateBps); err != nil {
		return fmt.Errorf("update rate: %w", err)
	}
	return nil
}

// UpdateIssuerKey rebinds the authorized certificate issuer within a transaction.
func (r *ParamsRepo) UpdateIssuerKey(ctx context.Context, tx pgx.Tx, issuerKey string) error {
	query := `UPDATE ledger_params SET issuer_key = $1, updated_at = NOW() WHERE singleton = TRUE`

	if _, err := tx.Exec(ctx, query, issuerKey); err != nil {
		return fmt.Errorf("update issuer key: %w", err)
	}
	return nil
}

// UpdateAdmin hands the admin role to a new participant within a transaction.
func (r *ParamsRepo) UpdateAdmin(ctx context.Context, tx pgx.Tx, newAdmin uuid.UUID) error {
	query := `UPDATE ledger_params SET admin_id = $1, updated_at = NOW() WHERE singleton = TRUE`

	if _, err := tx.Exec(ctx, query, newAdmin); err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	return nil
}
