package postgres

import (
	"context"
	"fmt"

	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// EventRepo implements ports.EventRepository. Events are append-only; there
// is no update or delete path.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Create appends an event within a transaction.
func (r *EventRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEvent) error {
	query := `INSERT INTO ledger_events (id, kind, position_id, counterparty, amount, old_rate_bps, new_rate_bps, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.Kind, e.PositionID, e.Counterparty, e.Amount,
		e.OldRateBps, e.NewRateBps, e.Details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List fetches events matching the filter, newest first.
func (r *EventRepo) List(ctx context.Context, params ports.EventListParams) ([]domain.LedgerEvent, int64, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if params.Kind != nil {
		where += fmt.Sprintf(" AND kind = $%d", argPos)
		args = append(args, *params.Kind)
		argPos++
	}
	if params.PositionID != nil {
		where += fmt.Sprintf(" AND position_id = $%d", argPos)
		args = append(args, *params.PositionID)
		argPos++
	}
	if params.From != nil {
		where += fmt.Sprintf(" AND created_at >= to_timestamp($%d)", argPos)
		args = append(args, *params.From)
		argPos++
	}
	if params.To != nil {
		where += fmt.Sprintf(" AND created_at <= to_timestamp($%d)", argPos)
		args = append(args, *params.To)
		argPos++
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM ledger_events" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	page := params.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := `SELECT id, kind, position_id, counterparty, amount, old_rate_bps, new_rate_bps, details, created_at
		FROM ledger_events` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, pageSize, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.LedgerEvent
	for rows.Next() {
		var e domain.LedgerEvent
		if err := rows.Scan(
			&e.ID, &e.Kind, &e.PositionID, &e.Counterparty, &e.Amount,
			&e.OldRateBps, &e.NewRateBps, &e.Details, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate events: %w", err)
	}

	return events, total, nil
}
