package service

import (
	"context"
	"fmt"
	"time"

	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"
	"custodial-deposit-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	participantRepo ports.ParticipantRepository
	accountRepo     ports.AccountRepository
	hashSvc         ports.HashService
	tokenSvc        ports.TokenService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	participantRepo ports.ParticipantRepository,
	accountRepo ports.AccountRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		participantRepo: participantRepo,
		accountRepo:     accountRepo,
		hashSvc:         hashSvc,
		tokenSvc:        tokenSvc,
	}
}

// Register creates a new participant along with an empty base-asset account.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.Participant, error) {
	existing, err := s.participantRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	participant := &domain.Participant{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		DisplayName:  req.DisplayName,
		Status:       domain.ParticipantStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.participantRepo.Create(ctx, participant); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create participant: %w", err))
	}

	account := &domain.Account{
		ParticipantID: participant.ID,
		Balance:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	return participant, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	participant, err := s.participantRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find participant: %w", err))
	}
	if participant == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, participant.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	if !participant.IsActive() {
		return "", time.Time{}, apperror.ErrParticipantSuspended()
	}

	token, expiry, err := s.tokenSvc.Generate(participant.ID, participant.Username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}
