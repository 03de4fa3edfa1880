package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"
	"custodial-deposit-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// errBalanceShort marks a source balance below the requested debit. Callers
// of moveFunds map it: a depositor short of funds is LED_009, a reserve
// short of a payout is LED_008.
var errBalanceShort = errors.New("source balance short")

// VaultServiceImpl is the position-accounting engine. It takes custody of
// the base asset on deposit, asks the registry to mint the paired
// certificate, and on withdrawal pays principal plus accrued interest to
// whoever holds the certificate at that moment.
//
// Every state-changing operation runs in a single database transaction with
// the global params row locked, so concurrent calls serialize and either
// commit all their effects or none of them.
type VaultServiceImpl struct {
	positionRepo    ports.PositionRepository
	accountRepo     ports.AccountRepository
	paramsRepo      ports.ParamsRepository
	eventRepo       ports.EventRepository
	participantRepo ports.ParticipantRepository
	idemRepo        ports.IdempotencyRepository
	idemCache       ports.IdempotencyCache
	registry        ports.CertificateRegistry
	transactor      ports.DBTransactor
	clock           ports.Clock
	issuerKey       string
	guard           *withdrawGuard
	log             zerolog.Logger
}

// NewVaultService creates a new VaultServiceImpl. issuerKey is the credential
// this engine presents to the registry when minting and burning; it must
// match the registry's bound issuer.
func NewVaultService(
	positionRepo ports.PositionRepository,
	accountRepo ports.AccountRepository,
	paramsRepo ports.ParamsRepository,
	eventRepo ports.EventRepository,
	participantRepo ports.ParticipantRepository,
	idemRepo ports.IdempotencyRepository,
	idemCache ports.IdempotencyCache,
	registry ports.CertificateRegistry,
	transactor ports.DBTransactor,
	clock ports.Clock,
	issuerKey string,
	log zerolog.Logger,
) *VaultServiceImpl {
	return &VaultServiceImpl{
		positionRepo:    positionRepo,
		accountRepo:     accountRepo,
		paramsRepo:      paramsRepo,
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		idemRepo:        idemRepo,
		idemCache:       idemCache,
		registry:        registry,
		transactor:      transactor,
		clock:           clock,
		issuerKey:       issuerKey,
		guard:           newWithdrawGuard(),
		log:             log,
	}
}

// Deposit locks the depositor's funds, allocates the next position id and
// mints the matching certificate to the depositor. The id counter advances
// inside the transaction, so a failed deposit consumes no id.
func (s *VaultServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*ports.DepositResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrZeroAmount()
	}

	var idemKey string
	if req.ReferenceID != "" {
		idemKey = domain.BuildDepositIdempotencyKey(req.Depositor, req.ReferenceID)
		if cached, err := s.lookupIdempotent(ctx, idemKey); err != nil {
			return nil, err
		} else if cached != nil {
			s.log.Info().Str("idempotency_key", idemKey).Msg("deposit replayed from idempotency store")
			return cached, nil
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Params lock is taken first everywhere funds move, which fixes the
	// lock order across deposits and withdrawals.
	params, err := s.paramsRepo.GetForUpdate(ctx, dbTx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock params: %w", err))
	}

	positionID, err := s.paramsRepo.AdvancePositionSequence(ctx, dbTx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("advance position sequence: %w", err))
	}

	if err := s.moveFunds(ctx, dbTx, req.Depositor, params.ReserveAccountID, req.Amount); err != nil {
		if errors.Is(err, errBalanceShort) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, err
	}

	now := s.clock.Now()
	position := &domain.Position{
		ID:        positionID,
		Principal: req.Amount,
		StartTime: now,
		Active:    true,
		CreatedAt: now,
	}
	if err := s.positionRepo.Create(ctx, dbTx, position); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create position: %w", err))
	}

	cert := &domain.Certificate{
		ID:          positionID,
		Holder:      req.Depositor,
		MetadataURI: req.MetadataURI,
		IssuedAt:    now,
		UpdatedAt:   now,
	}
	if err := s.registry.Mint(ctx, dbTx, s.issuerKey, cert); err != nil {
		return nil, err
	}

	event := newEvent(domain.EventKindIssuance)
	event.PositionID = &positionID
	event.Counterparty = &req.Depositor
	event.Amount = &req.Amount
	if err := s.eventRepo.Create(ctx, dbTx, event); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record issuance event: %w", err))
	}

	result := &ports.DepositResult{Position: *position, Certificate: *cert}

	var responseJSON []byte
	if idemKey != "" {
		responseJSON, err = json.Marshal(result)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal deposit result: %w", err))
		}
		idemLog := &domain.IdempotencyLog{
			Key:          idemKey,
			PositionID:   positionID,
			ResponseJSON: responseJSON,
			CreatedAt:    now,
		}
		if err := s.idemRepo.Create(ctx, dbTx, idemLog); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record idempotency log: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if idemKey != "" {
		// Cache write is best effort; the DB log remains authoritative.
		if err := s.idemCache.Set(ctx, idemKey, responseJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("idempotency_key", idemKey).Msg("idempotency cache write failed")
		}
	}

	s.log.Info().
		Int64("position_id", positionID).
		Str("depositor", req.Depositor.String()).
		Int64("amount", req.Amount).
		Msg("position opened")

	return result, nil
}

// Withdraw closes the position and pays principal plus interest to the
// current certificate holder. The position is marked closed and the
// certificate burned before any funds move, so a re-entered call during the
// payout sees an inactive position and fails.
func (s *VaultServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*ports.WithdrawResult, error) {
	if !s.guard.TryAcquire(req.PositionID) {
		return nil, apperror.ErrPositionNotActive(req.PositionID)
	}
	defer s.guard.Release(req.PositionID)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	position, err := s.positionRepo.GetForUpdate(ctx, dbTx, req.PositionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock position: %w", err))
	}
	if position == nil || !position.Active {
		return nil, apperror.ErrPositionNotActive(req.PositionID)
	}

	holder, err := s.registry.HolderOf(ctx, dbTx, req.PositionID)
	if err != nil {
		return nil, err
	}
	if holder != req.Caller {
		return nil, apperror.ErrNotCertificateHolder()
	}

	params, err := s.paramsRepo.GetForUpdate(ctx, dbTx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock params: %w", err))
	}

	now := s.clock.Now()
	if now.Before(position.StartTime) {
		s.log.Warn().
			Int64("position_id", position.ID).
			Time("start_time", position.StartTime).
			Time("now", now).
			Msg("clock regressed past position start, accruing zero interest")
	}
	interest, err := domain.AccruedInterest(position.Principal, params.RateBps, position.ElapsedSeconds(now))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("compute interest: %w", err))
	}
	payout, err := domain.Payout(position.Principal, interest)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("compute payout: %w", err))
	}

	closed, err := s.positionRepo.Close(ctx, dbTx, req.PositionID, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("close position: %w", err))
	}
	if !closed {
		return nil, apperror.ErrPositionNotActive(req.PositionID)
	}

	if err := s.registry.Burn(ctx, dbTx, s.issuerKey, req.PositionID); err != nil {
		return nil, err
	}

	if err := s.moveFunds(ctx, dbTx, params.ReserveAccountID, req.Caller, payout); err != nil {
		if errors.Is(err, errBalanceShort) {
			return nil, apperror.ErrTransferFailed(err)
		}
		return nil, err
	}

	details := fmt.Sprintf("principal=%d interest=%d", position.Principal, interest)
	event := newEvent(domain.EventKindWithdrawal)
	event.PositionID = &req.PositionID
	event.Counterparty = &req.Caller
	event.Amount = &payout
	event.Details = &details
	if err := s.eventRepo.Create(ctx, dbTx, event); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record withdrawal event: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Int64("position_id", req.PositionID).
		Str("holder", req.Caller.String()).
		Int64("principal", position.Principal).
		Int64("interest", interest).
		Int64("payout", payout).
		Msg("position redeemed")

	return &ports.WithdrawResult{
		PositionID: req.PositionID,
		Principal:  position.Principal,
		Interest:   interest,
		Payout:     payout,
		ClosedAt:   now,
	}, nil
}

// AccruedInterest reports the interest an active position has earned so far
// at the current rate.
func (s *VaultServiceImpl) AccruedInterest(ctx context.Context, positionID int64) (int64, error) {
	position, params, err := s.activePosition(ctx, positionID)
	if err != nil {
		return 0, err
	}
	interest, err := domain.AccruedInterest(position.Principal, params.RateBps, position.ElapsedSeconds(s.clock.Now()))
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("compute interest: %w", err))
	}
	return interest, nil
}

// PayoutOf reports what an active position would pay if redeemed now.
func (s *VaultServiceImpl) PayoutOf(ctx context.Context, positionID int64) (int64, error) {
	position, params, err := s.activePosition(ctx, positionID)
	if err != nil {
		return 0, err
	}
	interest, err := domain.AccruedInterest(position.Principal, params.RateBps, position.ElapsedSeconds(s.clock.Now()))
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("compute interest: %w", err))
	}
	payout, err := domain.Payout(position.Principal, interest)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("compute payout: %w", err))
	}
	return payout, nil
}

// SetRate changes the global interest rate. The new rate applies to every
// open position's entire lifetime, including time already elapsed.
func (s *VaultServiceImpl) SetRate(ctx context.Context, caller uuid.UUID, newRateBps int32) (*ports.RateChange, error) {
	if newRateBps < 0 {
		return nil, apperror.Validation("rate must not be negative")
	}
	if !domain.ValidRateBps(newRateBps) {
		return nil, apperror.ErrRateTooHigh(domain.MaxRateBps)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	params, err := s.paramsRepo.GetForUpdate(ctx, dbTx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock params: %w", err))
	}
	if caller != params.AdminID {
		return nil, apperror.ErrUnauthorized()
	}

	if err := s.paramsRepo.UpdateRate(ctx, dbTx, newRateBps); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update rate: %w", err))
	}

	oldRate := params.RateBps
	event := newEvent(domain.EventKindRateChange)
	event.Counterparty = &caller
	event.OldRateBps = &oldRate
	event.NewRateBps = &newRateBps
	if err := s.eventRepo.Create(ctx, dbTx, event); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record rate change event: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Int32("old_rate_bps", oldRate).
		Int32("new_rate_bps", newRateBps).
		Str("admin", caller.String()).
		Msg("interest rate changed")

	return &ports.RateChange{OldRateBps: oldRate, NewRateBps: newRateBps}, nil
}

// CurrentRate reports the rate in force.
func (s *VaultServiceImpl) CurrentRate(ctx context.Context) (int32, error) {
	params, err := s.paramsRepo.Get(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get params: %w", err))
	}
	return params.RateBps, nil
}

// FundReserve credits the interest reserve from an external funding source.
// Admin only; without reserve funding every withdrawal beyond locked
// principal would fail.
func (s *VaultServiceImpl) FundReserve(ctx context.Context, caller uuid.UUID, amount int64) (*domain.Account, error) {
	if amount <= 0 {
		return nil, apperror.ErrZeroAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	params, err := s.paramsRepo.GetForUpdate(ctx, dbTx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock params: %w", err))
	}
	if caller != params.AdminID {
		return nil, apperror.ErrUnauthorized()
	}

	reserve, err := s.accountRepo.GetForUpdate(ctx, dbTx, params.ReserveAccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock reserve account: %w", err))
	}
	if reserve == nil {
		return nil, apperror.InternalError(fmt.Errorf("reserve account %s missing", params.ReserveAccountID))
	}

	newBalance := reserve.Balance + amount
	if newBalance < reserve.Balance {
		return nil, apperror.Validation("reserve balance would overflow")
	}
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, params.ReserveAccountID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit reserve: %w", err))
	}

	event := newEvent(domain.EventKindReserveTopup)
	event.Counterparty = &caller
	event.Amount = &amount
	if err := s.eventRepo.Create(ctx, dbTx, event); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record reserve topup event: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	reserve.Balance = newBalance
	s.log.Info().Int64("amount", amount).Int64("reserve_balance", newBalance).Msg("reserve funded")
	return reserve, nil
}

// TransferAdmin hands the single admin role to another participant.
func (s *VaultServiceImpl) TransferAdmin(ctx context.Context, caller uuid.UUID, newAdmin uuid.UUID) error {
	if newAdmin == uuid.Nil {
		return apperror.Validation("new admin id must not be empty")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	params, err := s.paramsRepo.GetForUpdate(ctx, dbTx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock params: %w", err))
	}
	if caller != params.AdminID {
		return apperror.ErrUnauthorized()
	}

	successor, err := s.participantRepo.GetByID(ctx, newAdmin)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get successor: %w", err))
	}
	if successor == nil {
		return apperror.ErrNotFound("Participant")
	}

	if err := s.paramsRepo.UpdateAdmin(ctx, dbTx, newAdmin); err != nil {
		return apperror.InternalError(fmt.Errorf("update admin: %w", err))
	}

	details := fmt.Sprintf("admin handed off from %s", caller)
	event := newEvent(domain.EventKindAdminHandoff)
	event.Counterparty = &newAdmin
	event.Details = &details
	if err := s.eventRepo.Create(ctx, dbTx, event); err != nil {
		return apperror.InternalError(fmt.Errorf("record admin handoff event: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Warn().
		Str("old_admin", caller.String()).
		Str("new_admin", newAdmin.String()).
		Msg("admin role handed off")
	return nil
}

// lookupIdempotent checks the Redis fast path, then the durable DB log.
func (s *VaultServiceImpl) lookupIdempotent(ctx context.Context, key string) (*ports.DepositResult, error) {
	cached, err := s.idemCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency cache read failed")
	}
	if cached == nil {
		record, err := s.idemRepo.Get(ctx, key)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get idempotency log: %w", err))
		}
		if record == nil {
			return nil, nil
		}
		cached = record.ResponseJSON
	}

	var result ports.DepositResult
	if err := json.Unmarshal(cached, &result); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("decode idempotent response: %w", err))
	}
	return &result, nil
}

// moveFunds debits from and credits to inside the caller's transaction.
// A debit past zero fails the whole operation.
func (s *VaultServiceImpl) moveFunds(ctx context.Context, tx pgx.Tx, from, to uuid.UUID, amount int64) error {
	source, err := s.accountRepo.GetForUpdate(ctx, tx, from)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock source account: %w", err))
	}
	if source == nil {
		return apperror.ErrTransferFailed(fmt.Errorf("source account %s missing", from))
	}
	if source.Balance < amount {
		return fmt.Errorf("%w: balance %d short of %d", errBalanceShort, source.Balance, amount)
	}
	if err := s.accountRepo.UpdateBalance(ctx, tx, from, source.Balance-amount); err != nil {
		return apperror.InternalError(fmt.Errorf("debit source: %w", err))
	}

	dest, err := s.accountRepo.GetForUpdate(ctx, tx, to)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock destination account: %w", err))
	}
	if dest == nil {
		return apperror.ErrTransferFailed(fmt.Errorf("destination account %s missing", to))
	}
	newBalance := dest.Balance + amount
	if newBalance < dest.Balance {
		return apperror.ErrTransferFailed(fmt.Errorf("destination balance would overflow"))
	}
	if err := s.accountRepo.UpdateBalance(ctx, tx, to, newBalance); err != nil {
		return apperror.InternalError(fmt.Errorf("credit destination: %w", err))
	}
	return nil
}

// activePosition loads a position and the current params; a missing or
// closed position reads as not active.
func (s *VaultServiceImpl) activePosition(ctx context.Context, positionID int64) (*domain.Position, *domain.LedgerParams, error) {
	position, err := s.positionRepo.GetByID(ctx, positionID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("get position: %w", err))
	}
	if position == nil || !position.Active {
		return nil, nil, apperror.ErrPositionNotActive(positionID)
	}
	params, err := s.paramsRepo.Get(ctx)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("get params: %w", err))
	}
	return position, params, nil
}
