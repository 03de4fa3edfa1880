package postgres

import (
	"context"
	"errors"
	"fmt"

	"custodial-deposit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CertificateRepo implements ports.CertificateRepository.
type CertificateRepo struct {
	pool Pool
}

// NewCertificateRepo creates a new CertificateRepo.
func NewCertificateRepo(pool Pool) *CertificateRepo {
	return &CertificateRepo{pool: pool}
}

// Create inserts a new certificate within a transaction.
func (r *CertificateRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.Certificate) error {
	query := `INSERT INTO certificates (id, holder, delegate, metadata_uri, issued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, c.ID, c.Holder, c.Delegate, c.MetadataURI, c.IssuedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

// GetByID fetches a certificate without locking.
func (r *CertificateRepo) GetByID(ctx context.Context, id int64) (*domain.Certificate, error) {
	query := `SELECT id, holder, delegate, metadata_uri, issued_at, updated_at
		FROM certificates WHERE id = $1`

	c := &domain.Certificate{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Holder, &c.Delegate, &c.MetadataURI, &c.IssuedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get certificate by id: %w", err)
	}
	return c, nil
}

// GetForUpdate fetches a certificate with pessimistic locking.
// This MUST be called within a transaction.
func (r *CertificateRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Certificate, error) {
	query := `SELECT id, holder, delegate, metadata_uri, issued_at, updated_at
		FROM certificates WHERE id = $1 FOR UPDATE`

	c := &domain.Certificate{}
	err := tx.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Holder, &c.Delegate, &c.MetadataURI, &c.IssuedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get certificate for update: %w", err)
	}
	return c, nil
}

// Delete removes a certificate within a transaction. Ids are never reissued,
// so the row is gone for good.
func (r *CertificateRepo) Delete(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM certificates WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete certificate: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateHolder reassigns a certificate and clears any delegate approval.
func (r *CertificateRepo) UpdateHolder(ctx context.Context, tx pgx.Tx, id int64, newHolder uuid.UUID) error {
	query := `UPDATE certificates SET holder = $1, delegate = NULL, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, newHolder, id)
	if err != nil {
		return fmt.Errorf("update certificate holder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update certificate holder: certificate %d not found", id)
	}
	return nil
}

// UpdateDelegate sets or clears a certificate's approved delegate.
func (r *CertificateRepo) UpdateDelegate(ctx context.Context, tx pgx.Tx, id int64, delegate *uuid.UUID) error {
	query := `UPDATE certificates SET delegate = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, delegate, id)
	if err != nil {
		return fmt.Errorf("update certificate delegate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update certificate delegate: certificate %d not found", id)
	}
	return nil
}
