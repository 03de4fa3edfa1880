package ports

import (
	"context"
	"time"

	"custodial-deposit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(participantID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ParticipantID uuid.UUID
	Username      string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// CertificateRegistry is the certificate authority: the sole source of truth
// for who holds certificate N. Mint and Burn are restricted to the bound
// issuer key and run inside the vault engine's transaction; everything else
// is public or holder-scoped.
type CertificateRegistry interface {
	Mint(ctx context.Context, tx pgx.Tx, issuerKey string, cert *domain.Certificate) error
	Burn(ctx context.Context, tx pgx.Tx, issuerKey string, id int64) error
	// HolderOf resolves ownership inside an open transaction, so the engine's
	// ownership check and the burn see the same snapshot.
	HolderOf(ctx context.Context, tx pgx.Tx, id int64) (uuid.UUID, error)
	// OwnerOf is the public lookup.
	OwnerOf(ctx context.Context, id int64) (uuid.UUID, error)
	Get(ctx context.Context, id int64) (*domain.Certificate, error)
	Transfer(ctx context.Context, req TransferRequest) (*domain.Certificate, error)
	Approve(ctx context.Context, req ApproveRequest) (*domain.Certificate, error)
	// BindIssuer rebinds the sole authorized minter/burner. Admin-only;
	// a trust-boundary operation, always event-logged.
	BindIssuer(ctx context.Context, caller uuid.UUID, issuerKey string) error
}

// TransferRequest holds validated input for certificate reassignment.
type TransferRequest struct {
	CertificateID int64
	Caller        uuid.UUID
	NewHolder     uuid.UUID
}

// ApproveRequest holds validated input for delegate approval. A nil Delegate
// clears the approval.
type ApproveRequest struct {
	CertificateID int64
	Caller        uuid.UUID
	Delegate      *uuid.UUID
}

// VaultService is the position-accounting engine.
type VaultService interface {
	Deposit(ctx context.Context, req DepositRequest) (*DepositResult, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawResult, error)
	AccruedInterest(ctx context.Context, positionID int64) (int64, error)
	PayoutOf(ctx context.Context, positionID int64) (int64, error)
	SetRate(ctx context.Context, caller uuid.UUID, newRateBps int32) (*RateChange, error)
	CurrentRate(ctx context.Context) (int32, error)
	FundReserve(ctx context.Context, caller uuid.UUID, amount int64) (*domain.Account, error)
	TransferAdmin(ctx context.Context, caller uuid.UUID, newAdmin uuid.UUID) error
}

// DepositRequest holds validated input for opening a position.
type DepositRequest struct {
	Depositor   uuid.UUID
	ReferenceID string // Client-chosen idempotency reference
	Amount      int64
	MetadataURI *string
}

// DepositResult is the outcome of a successful deposit.
type DepositResult struct {
	Position    domain.Position    `json:"position"`
	Certificate domain.Certificate `json:"certificate"`
}

// WithdrawRequest holds validated input for redeeming a position.
type WithdrawRequest struct {
	PositionID int64
	Caller     uuid.UUID
}

// WithdrawResult is the outcome of a successful withdrawal.
type WithdrawResult struct {
	PositionID int64     `json:"position_id"`
	Principal  int64     `json:"principal"`
	Interest   int64     `json:"interest"`
	Payout     int64     `json:"payout"`
	ClosedAt   time.Time `json:"closed_at"`
}

// RateChange records an applied rate change.
type RateChange struct {
	OldRateBps int32 `json:"old_rate_bps"`
	NewRateBps int32 `json:"new_rate_bps"`
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Participant, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for participant registration.
type RegisterRequest struct {
	Username    string
	Password    string
	DisplayName string
}

// AccountService defines cash-account business logic.
type AccountService interface {
	Balance(ctx context.Context, participantID uuid.UUID) (*domain.Account, error)
	Topup(ctx context.Context, participantID uuid.UUID, amount int64) (*domain.Account, error)
}

// ReportingService defines read-only query logic.
type ReportingService interface {
	GetPosition(ctx context.Context, id int64) (*PositionDetail, error)
	ListPositions(ctx context.Context, params PositionListParams) ([]PositionDetail, int64, error)
	ListEvents(ctx context.Context, params EventListParams) ([]domain.LedgerEvent, int64, error)
	Stats(ctx context.Context) (*LedgerStats, error)
}

// PositionDetail pairs a position with its current holder and live accrual
// figures. Holder is nil and the accrual fields are zero once the position
// is closed.
type PositionDetail struct {
	Position        domain.Position `json:"position"`
	Holder          *uuid.UUID      `json:"holder,omitempty"`
	AccruedInterest int64           `json:"accrued_interest"`
	Payout          int64           `json:"payout"`
}
