package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// PositionRepo implements ports.PositionRepository.
type PositionRepo struct {
	pool Pool
}

// NewPositionRepo creates a new PositionRepo.
func NewPositionRepo(pool Pool) *PositionRepo {
	return &PositionRepo{pool: pool}
}

// Create inserts a new position within a transaction.
func (r *PositionRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Position) error {
	query := `INSERT INTO positions (id, principal, start_time, active, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := tx.Exec(ctx, query, p.ID, p.Principal, p.StartTime, p.Active, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// GetByID fetches a position without locking.
func (r *PositionRepo) GetByID(ctx context.Context, id int64) (*domain.Position, error) {
	query := `SELECT id, principal, start_time, active, created_at, closed_at
		FROM positions WHERE id = $1`

	p := &domain.Position{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Principal, &p.StartTime, &p.Active, &p.CreatedAt, &p.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetForUpdate fetches a position with pessimistic locking.
// This MUST be called within a transaction.
func (r *PositionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Position, error) {
	query := `SELECT id, principal, start_time, active, created_at, closed_at
		FROM positions WHERE id = $1 FOR UPDATE`

	p := &domain.Position{}
	err := tx.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Principal, &p.StartTime, &p.Active, &p.CreatedAt, &p.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get position for update: %w", err)
	}
	return p, nil
}

// Close marks a position inactive within a transaction. The `active` guard in
// the WHERE clause makes the flip one-way even under a lost race.
func (r *PositionRepo) Close(ctx context.Context, tx pgx.Tx, id int64, closedAt time.Time) (bool, error) {
	query := `UPDATE positions SET active = FALSE, closed_at = $1 WHERE id = $2 AND active = TRUE`

	tag, err := tx.Exec(ctx, query, closedAt, id)
	if err != nil {
		return false, fmt.Errorf("close position: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List fetches positions matching the filter, newest first.
func (r *PositionRepo) List(ctx context.Context, params ports.PositionListParams) ([]domain.Position, int64, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if params.Active != nil {
		where += fmt.Sprintf(" AND p.active = $%d", argPos)
		args = append(args, *params.Active)
		argPos++
	}
	if params.Holder != nil {
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM certificates c WHERE c.id = p.id AND c.holder = $%d)", argPos)
		args = append(args, *params.Holder)
		argPos++
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM positions p" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count positions: %w", err)
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := params.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := `SELECT p.id, p.principal, p.start_time, p.active, p.created_at, p.closed_at
		FROM positions p` + where +
		fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, pageSize, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.ID, &p.Principal, &p.StartTime, &p.Active, &p.CreatedAt, &p.ClosedAt); err != nil {
			return nil, 0, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate positions: %w", err)
	}

	return positions, total, nil
}

// Stats aggregates open/closed counts, locked principal and paid-out totals.
func (r *PositionRepo) Stats(ctx context.Context) (*ports.LedgerStats, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE active),
		COUNT(*) FILTER (WHERE NOT active),
		COALESCE(SUM(principal) FILTER (WHERE active), 0),
		COALESCE((SELECT SUM(amount) FROM ledger_events WHERE kind = 'WITHDRAWAL'), 0)
		FROM positions`

	s := &ports.LedgerStats{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.OpenPositions, &s.ClosedPositions, &s.PrincipalLocked, &s.TotalPaidOut,
	)
	if err != nil {
		return nil, fmt.Errorf("position stats: %w", err)
	}
	return s, nil
}
