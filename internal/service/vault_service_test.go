package service

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"
	"custodial-deposit-ledger/internal/core/ports/mocks"
	"custodial-deposit-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testIssuerKey = "vault-engine"

type vaultTestDeps struct {
	svc          *VaultServiceImpl
	positionRepo *mocks.MockPositionRepository
	accountRepo  *mocks.MockAccountRepository
	paramsRepo   *mocks.MockParamsRepository
	eventRepo    *mocks.MockEventRepository
	partRepo     *mocks.MockParticipantRepository
	idemRepo     *mocks.MockIdempotencyRepository
	idemCache    *mocks.MockIdempotencyCache
	registry     *mocks.MockCertificateRegistry
	transactor   *mocks.MockDBTransactor
	clock        *mocks.MockClock
	ctrl         *gomock.Controller
}

func setupVaultService(t *testing.T) *vaultTestDeps {
	ctrl := gomock.NewController(t)
	d := &vaultTestDeps{
		positionRepo: mocks.NewMockPositionRepository(ctrl),
		accountRepo:  mocks.NewMockAccountRepository(ctrl),
		paramsRepo:   mocks.NewMockParamsRepository(ctrl),
		eventRepo:    mocks.NewMockEventRepository(ctrl),
		partRepo:     mocks.NewMockParticipantRepository(ctrl),
		idemRepo:     mocks.NewMockIdempotencyRepository(ctrl),
		idemCache:    mocks.NewMockIdempotencyCache(ctrl),
		registry:     mocks.NewMockCertificateRegistry(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		clock:        mocks.NewMockClock(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewVaultService(
		d.positionRepo, d.accountRepo, d.paramsRepo, d.eventRepo,
		d.partRepo, d.idemRepo, d.idemCache, d.registry,
		d.transactor, d.clock, testIssuerKey, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func testParams(adminID, reserveID uuid.UUID) *domain.LedgerParams {
	return &domain.LedgerParams{
		RateBps:          500,
		AdminID:          adminID,
		IssuerKey:        testIssuerKey,
		ReserveAccountID: reserveID,
		NextPositionID:   43,
	}
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

// ==================== Deposit Tests ====================

func TestVaultService_Deposit_Success(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	depositor := uuid.New()
	reserveID := uuid.New()
	tx := &mockTx{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	req := ports.DepositRequest{
		Depositor:   depositor,
		ReferenceID: "DEP-001",
		Amount:      1_000_000,
	}
	idemKey := domain.BuildDepositIdempotencyKey(depositor, "DEP-001")

	d.idemCache.EXPECT().Get(ctx, idemKey).Return(nil, nil)
	d.idemRepo.EXPECT().Get(ctx, idemKey).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(uuid.New(), reserveID), nil)
	d.paramsRepo.EXPECT().AdvancePositionSequence(ctx, tx).Return(int64(42), nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, depositor).Return(&domain.Account{
		ParticipantID: depositor, Balance: 2_000_000,
	}, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, depositor, int64(1_000_000)).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, reserveID).Return(&domain.Account{
		ParticipantID: reserveID, Balance: 500_000,
	}, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, reserveID, int64(1_500_000)).Return(nil)
	d.clock.EXPECT().Now().Return(now)
	d.positionRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.registry.EXPECT().Mint(ctx, tx, testIssuerKey, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, _ string, cert *domain.Certificate) error {
			assert.Equal(t, int64(42), cert.ID)
			assert.Equal(t, depositor, cert.Holder)
			return nil
		})
	d.eventRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, event *domain.LedgerEvent) error {
			assert.Equal(t, domain.EventKindIssuance, event.Kind)
			return nil
		})
	d.idemRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idemCache.EXPECT().Set(ctx, idemKey, gomock.Any(), idempotencyTTL).Return(nil)

	result, err := d.svc.Deposit(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(42), result.Position.ID)
	assert.Equal(t, int64(1_000_000), result.Position.Principal)
	assert.True(t, result.Position.Active)
	assert.Equal(t, now, result.Position.StartTime)
	assert.Equal(t, int64(42), result.Certificate.ID)
	assert.Equal(t, depositor, result.Certificate.Holder)
}

func TestVaultService_Deposit_ZeroAmount(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.Deposit(context.Background(), ports.DepositRequest{
		Depositor: uuid.New(),
		Amount:    0,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "LED_002")
}

func TestVaultService_Deposit_NegativeAmount(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.Deposit(context.Background(), ports.DepositRequest{
		Depositor: uuid.New(),
		Amount:    -5,
	})
	assert.Nil(t, result)
	assertAppError(t, err, "LED_002")
}

func TestVaultService_Deposit_InsufficientBalance(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	depositor := uuid.New()
	reserveID := uuid.New()
	tx := &mockTx{}

	req := ports.DepositRequest{
		Depositor:   depositor,
		ReferenceID: "DEP-002",
		Amount:      1_000_000,
	}
	idemKey := domain.BuildDepositIdempotencyKey(depositor, "DEP-002")

	d.idemCache.EXPECT().Get(ctx, idemKey).Return(nil, nil)
	d.idemRepo.EXPECT().Get(ctx, idemKey).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(uuid.New(), reserveID), nil)
	// The sequence advances inside the transaction, so the rollback on
	// failure returns this id to the pool.
	d.paramsRepo.EXPECT().AdvancePositionSequence(ctx, tx).Return(int64(42), nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, depositor).Return(&domain.Account{
		ParticipantID: depositor, Balance: 100,
	}, nil)

	result, err := d.svc.Deposit(ctx, req)
	assert.Nil(t, result)
	assertAppError(t, err, "LED_009")
}

func TestVaultService_Deposit_IdempotentCacheHit(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	depositor := uuid.New()

	cached := &ports.DepositResult{
		Position:    domain.Position{ID: 7, Principal: 500, Active: true},
		Certificate: domain.Certificate{ID: 7, Holder: depositor},
	}
	cachedJSON, _ := json.Marshal(cached)

	idemKey := domain.BuildDepositIdempotencyKey(depositor, "DEP-CACHED")
	d.idemCache.EXPECT().Get(ctx, idemKey).Return(cachedJSON, nil)

	result, err := d.svc.Deposit(ctx, ports.DepositRequest{
		Depositor:   depositor,
		ReferenceID: "DEP-CACHED",
		Amount:      500,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Position.ID)
	assert.Equal(t, depositor, result.Certificate.Holder)
}

func TestVaultService_Deposit_IdempotentDBFallback(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	depositor := uuid.New()

	stored := &ports.DepositResult{
		Position:    domain.Position{ID: 9, Principal: 250, Active: true},
		Certificate: domain.Certificate{ID: 9, Holder: depositor},
	}
	storedJSON, _ := json.Marshal(stored)

	idemKey := domain.BuildDepositIdempotencyKey(depositor, "DEP-DB")
	d.idemCache.EXPECT().Get(ctx, idemKey).Return(nil, nil)
	d.idemRepo.EXPECT().Get(ctx, idemKey).Return(&domain.IdempotencyLog{
		Key:          idemKey,
		PositionID:   9,
		ResponseJSON: storedJSON,
	}, nil)

	result, err := d.svc.Deposit(ctx, ports.DepositRequest{
		Depositor:   depositor,
		ReferenceID: "DEP-DB",
		Amount:      250,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), result.Position.ID)
}

// ==================== Withdraw Tests ====================

func TestVaultService_Withdraw_Success(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	holder := uuid.New()
	reserveID := uuid.New()
	tx := &mockTx{}

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(time.Duration(domain.SecondsPerYear) * time.Second)

	// The effect order is part of the contract: the position closes and the
	// certificate burns strictly before any funds move.
	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(tx, nil),
		d.positionRepo.EXPECT().GetForUpdate(ctx, tx, int64(42)).Return(&domain.Position{
			ID: 42, Principal: 1_000_000, StartTime: start, Active: true,
		}, nil),
		d.registry.EXPECT().HolderOf(ctx, tx, int64(42)).Return(holder, nil),
		d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(uuid.New(), reserveID), nil),
		d.clock.EXPECT().Now().Return(now),
		d.positionRepo.EXPECT().Close(ctx, tx, int64(42), now).Return(true, nil),
		d.registry.EXPECT().Burn(ctx, tx, testIssuerKey, int64(42)).Return(nil),
		// Payout = 1,000,000 principal + 50,000 interest at 500 bps over one year
		d.accountRepo.EXPECT().GetForUpdate(ctx, tx, reserveID).Return(&domain.Account{
			ParticipantID: reserveID, Balance: 2_000_000,
		}, nil),
		d.accountRepo.EXPECT().UpdateBalance(ctx, tx, reserveID, int64(950_000)).Return(nil),
		d.accountRepo.EXPECT().GetForUpdate(ctx, tx, holder).Return(&domain.Account{
			ParticipantID: holder, Balance: 0,
		}, nil),
		d.accountRepo.EXPECT().UpdateBalance(ctx, tx, holder, int64(1_050_000)).Return(nil),
		d.eventRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ pgx.Tx, event *domain.LedgerEvent) error {
				assert.Equal(t, domain.EventKindWithdrawal, event.Kind)
				require.NotNil(t, event.Amount)
				assert.Equal(t, int64(1_050_000), *event.Amount)
				return nil
			}),
	)

	result, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{PositionID: 42, Caller: holder})
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), result.Principal)
	assert.Equal(t, int64(50_000), result.Interest)
	assert.Equal(t, int64(1_050_000), result.Payout)
	assert.Equal(t, now, result.ClosedAt)
}

func TestVaultService_Withdraw_PositionNotFound(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.positionRepo.EXPECT().GetForUpdate(ctx, tx, int64(99)).Return(nil, nil)

	result, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{PositionID: 99, Caller: uuid.New()})
	assert.Nil(t, result)
	assertAppError(t, err, "LED_006")
}

func TestVaultService_Withdraw_AlreadyClosed(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	closedAt := time.Now().UTC()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.positionRepo.EXPECT().GetForUpdate(ctx, tx, int64(42)).Return(&domain.Position{
		ID: 42, Principal: 100, Active: false, ClosedAt: &closedAt,
	}, nil)

	result, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{PositionID: 42, Caller: uuid.New()})
	assert.Nil(t, result)
	assertAppError(t, err, "LED_006")
}

func TestVaultService_Withdraw_NotHolder(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	holder := uuid.New()
	stranger := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.positionRepo.EXPECT().GetForUpdate(ctx, tx, int64(42)).Return(&domain.Position{
		ID: 42, Principal: 100, StartTime: time.Now().UTC(), Active: true,
	}, nil)
	d.registry.EXPECT().HolderOf(ctx, tx, int64(42)).Return(holder, nil)

	result, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{PositionID: 42, Caller: stranger})
	assert.Nil(t, result)
	assertAppError(t, err, "LED_007")
}

func TestVaultService_Withdraw_ReserveShort(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	holder := uuid.New()
	reserveID := uuid.New()
	tx := &mockTx{}

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(time.Duration(domain.SecondsPerYear) * time.Second)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.positionRepo.EXPECT().GetForUpdate(ctx, tx, int64(42)).Return(&domain.Position{
		ID: 42, Principal: 1_000_000, StartTime: start, Active: true,
	}, nil)
	d.registry.EXPECT().HolderOf(ctx, tx, int64(42)).Return(holder, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(uuid.New(), reserveID), nil)
	d.clock.EXPECT().Now().Return(now)
	d.positionRepo.EXPECT().Close(ctx, tx, int64(42), now).Return(true, nil)
	d.registry.EXPECT().Burn(ctx, tx, testIssuerKey, int64(42)).Return(nil)
	// Reserve covers the principal but not the interest on top.
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, reserveID).Return(&domain.Account{
		ParticipantID: reserveID, Balance: 1_000_000,
	}, nil)

	result, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{PositionID: 42, Caller: holder})
	assert.Nil(t, result)
	assertAppError(t, err, "LED_008")
}

func TestVaultService_Withdraw_CreditOverflow(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	holder := uuid.New()
	reserveID := uuid.New()
	tx := &mockTx{}

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.positionRepo.EXPECT().GetForUpdate(ctx, tx, int64(42)).Return(&domain.Position{
		ID: 42, Principal: 1_000_000, StartTime: start, Active: true,
	}, nil)
	d.registry.EXPECT().HolderOf(ctx, tx, int64(42)).Return(holder, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(uuid.New(), reserveID), nil)
	d.clock.EXPECT().Now().Return(start)
	d.positionRepo.EXPECT().Close(ctx, tx, int64(42), start).Return(true, nil)
	d.registry.EXPECT().Burn(ctx, tx, testIssuerKey, int64(42)).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, reserveID).Return(&domain.Account{
		ParticipantID: reserveID, Balance: 2_000_000,
	}, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, reserveID, int64(1_000_000)).Return(nil)
	// Crediting the payout would wrap the holder's balance.
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, holder).Return(&domain.Account{
		ParticipantID: holder, Balance: math.MaxInt64 - 10,
	}, nil)

	result, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{PositionID: 42, Caller: holder})
	assert.Nil(t, result)
	assertAppError(t, err, "LED_008")
}

func TestVaultService_Withdraw_ClockRegression(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	holder := uuid.New()
	reserveID := uuid.New()
	tx := &mockTx{}

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(-time.Hour) // Clock went backwards

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.positionRepo.EXPECT().GetForUpdate(ctx, tx, int64(42)).Return(&domain.Position{
		ID: 42, Principal: 1_000_000, StartTime: start, Active: true,
	}, nil)
	d.registry.EXPECT().HolderOf(ctx, tx, int64(42)).Return(holder, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(uuid.New(), reserveID), nil)
	d.clock.EXPECT().Now().Return(now)
	d.positionRepo.EXPECT().Close(ctx, tx, int64(42), now).Return(true, nil)
	d.registry.EXPECT().Burn(ctx, tx, testIssuerKey, int64(42)).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, reserveID).Return(&domain.Account{
		ParticipantID: reserveID, Balance: 2_000_000,
	}, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, reserveID, int64(1_000_000)).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, holder).Return(&domain.Account{
		ParticipantID: holder, Balance: 0,
	}, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, holder, int64(1_000_000)).Return(nil)
	d.eventRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	result, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{PositionID: 42, Caller: holder})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Interest)
	assert.Equal(t, int64(1_000_000), result.Payout)
}

func TestVaultService_Withdraw_ReentrantCallRejected(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	// Simulate an in-flight withdrawal of the same position.
	require.True(t, d.svc.guard.TryAcquire(42))
	defer d.svc.guard.Release(42)

	result, err := d.svc.Withdraw(context.Background(), ports.WithdrawRequest{
		PositionID: 42, Caller: uuid.New(),
	})
	assert.Nil(t, result)
	assertAppError(t, err, "LED_006")
}

func TestVaultService_Withdraw_NestedCallDuringPayoutRejected(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	holder := uuid.New()
	reserveID := uuid.New()
	tx := &mockTx{}

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(time.Duration(domain.SecondsPerYear) * time.Second)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.positionRepo.EXPECT().GetForUpdate(ctx, tx, int64(42)).Return(&domain.Position{
		ID: 42, Principal: 1_000_000, StartTime: start, Active: true,
	}, nil)
	d.registry.EXPECT().HolderOf(ctx, tx, int64(42)).Return(holder, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(uuid.New(), reserveID), nil)
	d.clock.EXPECT().Now().Return(now)
	d.positionRepo.EXPECT().Close(ctx, tx, int64(42), now).Return(true, nil)
	d.registry.EXPECT().Burn(ctx, tx, testIssuerKey, int64(42)).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, reserveID).Return(&domain.Account{
		ParticipantID: reserveID, Balance: 2_000_000,
	}, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, reserveID, int64(950_000)).Return(nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, holder).Return(&domain.Account{
		ParticipantID: holder, Balance: 0,
	}, nil)
	// A withdrawal of the same position re-entered from inside the payout
	// leg must see the in-flight position and fail without touching state.
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, holder, int64(1_050_000)).DoAndReturn(
		func(nestedCtx context.Context, _ pgx.Tx, _ uuid.UUID, _ int64) error {
			nested, nestedErr := d.svc.Withdraw(nestedCtx, ports.WithdrawRequest{
				PositionID: 42, Caller: holder,
			})
			assert.Nil(t, nested)
			assertAppError(t, nestedErr, "LED_006")
			return nil
		})
	d.eventRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	result, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{PositionID: 42, Caller: holder})
	require.NoError(t, err)
	assert.Equal(t, int64(1_050_000), result.Payout)
}

// ==================== SetRate Tests ====================

func TestVaultService_SetRate_Success(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	admin := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(admin, uuid.New()), nil)
	d.paramsRepo.EXPECT().UpdateRate(ctx, tx, int32(750)).Return(nil)
	d.eventRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, event *domain.LedgerEvent) error {
			assert.Equal(t, domain.EventKindRateChange, event.Kind)
			require.NotNil(t, event.OldRateBps)
			require.NotNil(t, event.NewRateBps)
			assert.Equal(t, int32(500), *event.OldRateBps)
			assert.Equal(t, int32(750), *event.NewRateBps)
			return nil
		})

	change, err := d.svc.SetRate(ctx, admin, 750)
	require.NoError(t, err)
	assert.Equal(t, int32(500), change.OldRateBps)
	assert.Equal(t, int32(750), change.NewRateBps)
}

func TestVaultService_SetRate_NotAdmin(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(uuid.New(), uuid.New()), nil)

	change, err := d.svc.SetRate(ctx, uuid.New(), 750)
	assert.Nil(t, change)
	assertAppError(t, err, "LED_001")
}

func TestVaultService_SetRate_AboveCeiling(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	change, err := d.svc.SetRate(context.Background(), uuid.New(), 5001)
	assert.Nil(t, change)
	assertAppError(t, err, "LED_003")
}

func TestVaultService_SetRate_AtCeiling(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	admin := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(admin, uuid.New()), nil)
	d.paramsRepo.EXPECT().UpdateRate(ctx, tx, domain.MaxRateBps).Return(nil)
	d.eventRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	change, err := d.svc.SetRate(ctx, admin, domain.MaxRateBps)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxRateBps, change.NewRateBps)
}

func TestVaultService_SetRate_Negative(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	change, err := d.svc.SetRate(context.Background(), uuid.New(), -1)
	assert.Nil(t, change)
	assertAppError(t, err, "LED_010")
}

// ==================== Query Tests ====================

func TestVaultService_AccruedInterest_Active(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(time.Duration(domain.SecondsPerYear) * time.Second)

	d.positionRepo.EXPECT().GetByID(ctx, int64(42)).Return(&domain.Position{
		ID: 42, Principal: 1_000_000, StartTime: start, Active: true,
	}, nil)
	d.paramsRepo.EXPECT().Get(ctx).Return(testParams(uuid.New(), uuid.New()), nil)
	d.clock.EXPECT().Now().Return(now)

	interest, err := d.svc.AccruedInterest(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), interest)
}

func TestVaultService_AccruedInterest_Closed(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.positionRepo.EXPECT().GetByID(ctx, int64(42)).Return(&domain.Position{
		ID: 42, Principal: 100, Active: false,
	}, nil)

	_, err := d.svc.AccruedInterest(ctx, 42)
	assertAppError(t, err, "LED_006")
}

func TestVaultService_PayoutOf(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(time.Duration(domain.SecondsPerYear) * time.Second)

	d.positionRepo.EXPECT().GetByID(ctx, int64(42)).Return(&domain.Position{
		ID: 42, Principal: 1_000_000, StartTime: start, Active: true,
	}, nil)
	d.paramsRepo.EXPECT().Get(ctx).Return(testParams(uuid.New(), uuid.New()), nil)
	d.clock.EXPECT().Now().Return(now)

	payout, err := d.svc.PayoutOf(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1_050_000), payout)
}

func TestVaultService_CurrentRate(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.paramsRepo.EXPECT().Get(ctx).Return(testParams(uuid.New(), uuid.New()), nil)

	rate, err := d.svc.CurrentRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(500), rate)
}

// ==================== FundReserve Tests ====================

func TestVaultService_FundReserve_Success(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	admin := uuid.New()
	reserveID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(admin, reserveID), nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, tx, reserveID).Return(&domain.Account{
		ParticipantID: reserveID, Balance: 1_000,
	}, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, reserveID, int64(51_000)).Return(nil)
	d.eventRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, event *domain.LedgerEvent) error {
			assert.Equal(t, domain.EventKindReserveTopup, event.Kind)
			return nil
		})

	account, err := d.svc.FundReserve(ctx, admin, 50_000)
	require.NoError(t, err)
	assert.Equal(t, int64(51_000), account.Balance)
}

func TestVaultService_FundReserve_NotAdmin(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(uuid.New(), uuid.New()), nil)

	account, err := d.svc.FundReserve(ctx, uuid.New(), 50_000)
	assert.Nil(t, account)
	assertAppError(t, err, "LED_001")
}

func TestVaultService_FundReserve_ZeroAmount(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	account, err := d.svc.FundReserve(context.Background(), uuid.New(), 0)
	assert.Nil(t, account)
	assertAppError(t, err, "LED_002")
}

// ==================== TransferAdmin Tests ====================

func TestVaultService_TransferAdmin_Success(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	admin := uuid.New()
	successor := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(admin, uuid.New()), nil)
	d.partRepo.EXPECT().GetByID(ctx, successor).Return(&domain.Participant{
		ID: successor, Status: domain.ParticipantStatusActive,
	}, nil)
	d.paramsRepo.EXPECT().UpdateAdmin(ctx, tx, successor).Return(nil)
	d.eventRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, event *domain.LedgerEvent) error {
			assert.Equal(t, domain.EventKindAdminHandoff, event.Kind)
			return nil
		})

	err := d.svc.TransferAdmin(ctx, admin, successor)
	require.NoError(t, err)
}

func TestVaultService_TransferAdmin_UnknownSuccessor(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	admin := uuid.New()
	successor := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(admin, uuid.New()), nil)
	d.partRepo.EXPECT().GetByID(ctx, successor).Return(nil, nil)

	err := d.svc.TransferAdmin(ctx, admin, successor)
	assertAppError(t, err, "LED_011")
}

func TestVaultService_TransferAdmin_NotAdmin(t *testing.T) {
	d := setupVaultService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paramsRepo.EXPECT().GetForUpdate(ctx, tx).Return(testParams(uuid.New(), uuid.New()), nil)

	err := d.svc.TransferAdmin(ctx, uuid.New(), uuid.New())
	assertAppError(t, err, "LED_001")
}
