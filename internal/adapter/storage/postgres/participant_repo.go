package postgres

import (
	"context"
	"errors"
	"fmt"

	"custodial-deposit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ParticipantRepo implements ports.ParticipantRepository.
type ParticipantRepo struct {
	pool Pool
}

// NewParticipantRepo creates a new ParticipantRepo.
func NewParticipantRepo(pool Pool) *ParticipantRepo {
	return &ParticipantRepo{pool: pool}
}

// Create inserts a new participant into the database.
func (r *ParticipantRepo) Create(ctx context.Context, p *domain.Participant) error {
	query := `INSERT INTO participants (id, username, password_hash, display_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Username, p.PasswordHash, p.DisplayName,
		p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// GetByID fetches a participant by UUID.
func (r *ParticipantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	query := `SELECT id, username, password_hash, display_name, status, created_at, updated_at
		FROM participants WHERE id = $1`

	p := &domain.Participant{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Username, &p.PasswordHash, &p.DisplayName,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get participant by id: %w", err)
	}
	return p, nil
}

// GetByUsername fetches a participant by username.
func (r *ParticipantRepo) GetByUsername(ctx context.Context, username string) (*domain.Participant, error) {
	query := `SELECT id, username, password_hash, display_name, status, created_at, updated_at
		FROM participants WHERE username = $1`

	p := &domain.Participant{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&p.ID, &p.Username, &p.PasswordHash, &p.DisplayName,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get participant by username: %w", err)
	}
	return p, nil
}
