package service

import (
	"context"
	"fmt"

	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"
	"custodial-deposit-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccountServiceImpl implements ports.AccountService. Topup stands in for an
// external on-ramp crediting the participant's base-asset balance.
type AccountServiceImpl struct {
	accountRepo ports.AccountRepository
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(accountRepo ports.AccountRepository, transactor ports.DBTransactor, log zerolog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		transactor:  transactor,
		log:         log,
	}
}

// Balance returns the participant's base-asset account.
func (s *AccountServiceImpl) Balance(ctx context.Context, participantID uuid.UUID) (*domain.Account, error) {
	account, err := s.accountRepo.GetByParticipantID(ctx, participantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Account")
	}
	return account, nil
}

// Topup credits the participant's account.
func (s *AccountServiceImpl) Topup(ctx context.Context, participantID uuid.UUID, amount int64) (*domain.Account, error) {
	if amount <= 0 {
		return nil, apperror.ErrZeroAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetForUpdate(ctx, dbTx, participantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Account")
	}

	newBalance := account.Balance + amount
	if newBalance < account.Balance {
		return nil, apperror.Validation("balance would overflow")
	}
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, participantID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit account: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	account.Balance = newBalance
	s.log.Info().
		Str("participant_id", participantID.String()).
		Int64("amount", amount).
		Int64("balance", newBalance).
		Msg("account topped up")
	return account, nil
}
