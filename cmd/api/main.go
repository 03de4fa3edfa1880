package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"custodial-deposit-ledger/config"
	httpHandler "custodial-deposit-ledger/internal/adapter/http/handler"
	pgStorage "custodial-deposit-ledger/internal/adapter/storage/postgres"
	redisStorage "custodial-deposit-ledger/internal/adapter/storage/redis"
	"custodial-deposit-ledger/internal/core/domain"
	"custodial-deposit-ledger/internal/core/ports"
	"custodial-deposit-ledger/internal/service"
	"custodial-deposit-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Custodial Deposit Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	participantRepo := pgStorage.NewParticipantRepo(pool)
	accountRepo := pgStorage.NewAccountRepo(pool)
	positionRepo := pgStorage.NewPositionRepo(pool)
	certRepo := pgStorage.NewCertificateRepo(pool)
	paramsRepo := pgStorage.NewParamsRepo(pool)
	eventRepo := pgStorage.NewEventRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	clock := service.SystemClock{}

	// Seed the admin participant, the reserve account and the params row on
	// first start. Idempotent; subsequent starts leave the database as is.
	if err := seedLedger(ctx, cfg.Ledger, participantRepo, accountRepo, paramsRepo, hashSvc, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed ledger state")
	}

	// Initialize business services
	registrySvc := service.NewRegistryService(certRepo, paramsRepo, eventRepo, transactor, log)
	vaultSvc := service.NewVaultService(
		positionRepo,
		accountRepo,
		paramsRepo,
		eventRepo,
		participantRepo,
		idempotencyRepo,
		idempotencyCache,
		registrySvc,
		transactor,
		clock,
		cfg.Ledger.IssuerKey,
		log,
	)
	authSvc := service.NewAuthService(participantRepo, accountRepo, hashSvc, tokenSvc)
	accountSvc := service.NewAccountService(accountRepo, transactor, log)
	reportingSvc := service.NewReportingService(positionRepo, certRepo, eventRepo, paramsRepo, clock)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		VaultSvc:       vaultSvc,
		Registry:       registrySvc,
		AccountSvc:     accountSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// seedLedger creates the admin participant, the reserve participant with its
// custody account, and the singleton params row if any of them are missing.
func seedLedger(
	ctx context.Context,
	cfg config.LedgerConfig,
	participantRepo ports.ParticipantRepository,
	accountRepo ports.AccountRepository,
	paramsRepo ports.ParamsRepository,
	hashSvc ports.HashService,
	log zerolog.Logger,
) error {
	admin, err := ensureParticipant(ctx, participantRepo, accountRepo, hashSvc, cfg.AdminUsername, cfg.AdminPassword, "Ledger Administrator")
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	// The reserve is a system participant; its random password is discarded,
	// so nobody can log in as it.
	reserve, err := ensureParticipant(ctx, participantRepo, accountRepo, hashSvc, "reserve", uuid.NewString(), "Interest Reserve")
	if err != nil {
		return fmt.Errorf("seed reserve: %w", err)
	}

	err = paramsRepo.Init(ctx, &domain.LedgerParams{
		RateBps:          cfg.InitialRateBps,
		AdminID:          admin.ID,
		IssuerKey:        cfg.IssuerKey,
		ReserveAccountID: reserve.ID,
		NextPositionID:   1,
		UpdatedAt:        time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("init params: %w", err)
	}

	log.Info().
		Str("admin", cfg.AdminUsername).
		Str("issuer_key", cfg.IssuerKey).
		Int32("initial_rate_bps", cfg.InitialRateBps).
		Msg("ledger state seeded")
	return nil
}

// ensureParticipant returns the named participant, creating it with a
// zero-balance account when it does not exist yet.
func ensureParticipant(
	ctx context.Context,
	participantRepo ports.ParticipantRepository,
	accountRepo ports.AccountRepository,
	hashSvc ports.HashService,
	username, password, displayName string,
) (*domain.Participant, error) {
	existing, err := participantRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if password == "" {
		return nil, fmt.Errorf("participant %q needs a password on first start", username)
	}

	passwordHash, err := hashSvc.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	participant := &domain.Participant{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Status:       domain.ParticipantStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := participantRepo.Create(ctx, participant); err != nil {
		return nil, err
	}

	if err := accountRepo.Create(ctx, &domain.Account{
		ParticipantID: participant.ID,
		Balance:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		return nil, err
	}

	return participant, nil
}
