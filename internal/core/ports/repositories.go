package ports

import (
	"context"
	"time"

	"custodial-deposit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ParticipantRepository defines persistence operations for participants.
type ParticipantRepository interface {
	Create(ctx context.Context, participant *domain.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error)
	GetByUsername(ctx context.Context, username string) (*domain.Participant, error)
}

// AccountRepository defines persistence operations for base-asset accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic
// locking; fund movements are always performed within a transaction.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByParticipantID(ctx context.Context, participantID uuid.UUID) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, participantID uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, participantID uuid.UUID, newBalance int64) error
}

// PositionRepository defines persistence operations for deposit positions.
type PositionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, position *domain.Position) error
	GetByID(ctx context.Context, id int64) (*domain.Position, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Position, error)
	// Close marks the position inactive. It reports false when the position
	// was not active, so a lost race surfaces as NotActive rather than a
	// silent double close.
	Close(ctx context.Context, tx pgx.Tx, id int64, closedAt time.Time) (bool, error)
	List(ctx context.Context, params PositionListParams) ([]domain.Position, int64, error)
	Stats(ctx context.Context) (*LedgerStats, error)
}

// PositionListParams holds filter + pagination for listing positions.
type PositionListParams struct {
	Holder   *uuid.UUID // Filter by current certificate holder (active positions only)
	Active   *bool
	Page     int
	PageSize int
}

// LedgerStats holds aggregate figures for the admin dashboard.
type LedgerStats struct {
	OpenPositions   int64
	ClosedPositions int64
	PrincipalLocked int64 // Sum of open positions' principal
	TotalPaidOut    int64 // Sum of withdrawal event amounts
}

// CertificateRepository defines persistence operations for certificates.
type CertificateRepository interface {
	Create(ctx context.Context, tx pgx.Tx, cert *domain.Certificate) error
	GetByID(ctx context.Context, id int64) (*domain.Certificate, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Certificate, error)
	// Delete removes the certificate permanently; the id is never reissued.
	// Reports false when no row existed.
	Delete(ctx context.Context, tx pgx.Tx, id int64) (bool, error)
	// UpdateHolder reassigns the certificate and clears any delegate approval.
	UpdateHolder(ctx context.Context, tx pgx.Tx, id int64, newHolder uuid.UUID) error
	UpdateDelegate(ctx context.Context, tx pgx.Tx, id int64, delegate *uuid.UUID) error
}

// ParamsRepository defines persistence for the single global parameter row.
type ParamsRepository interface {
	// Init seeds the params row on first start; a no-op if one exists.
	Init(ctx context.Context, params *domain.LedgerParams) error
	Get(ctx context.Context) (*domain.LedgerParams, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx) (*domain.LedgerParams, error)
	// AdvancePositionSequence allocates the next position id. Runs inside the
	// deposit transaction, so a rollback returns the id to the pool.
	AdvancePositionSequence(ctx context.Context, tx pgx.Tx) (int64, error)
	UpdateRate(ctx context.Context, tx pgx.Tx, newRateBps int32) error
	UpdateIssuerKey(ctx context.Context, tx pgx.Tx, issuerKey string) error
	UpdateAdmin(ctx context.Context, tx pgx.Tx, newAdmin uuid.UUID) error
}

// EventRepository defines persistence for the ledger's audit trail.
type EventRepository interface {
	Create(ctx context.Context, tx pgx.Tx, event *domain.LedgerEvent) error
	List(ctx context.Context, params EventListParams) ([]domain.LedgerEvent, int64, error)
}

// EventListParams holds filter + pagination for listing events.
type EventListParams struct {
	Kind       *domain.EventKind
	PositionID *int64
	From       *int64 // Unix timestamp
	To         *int64 // Unix timestamp
	Page       int
	PageSize   int
}

// IdempotencyRepository defines persistence for deposit idempotency logs
// (DB backup behind the Redis fast path).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Clock supplies the environment time read at position creation and at every
// accrual computation. Abstracted so tests can drive elapsed time directly.
type Clock interface {
	Now() time.Time
}
