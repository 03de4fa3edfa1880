package handler

import (
	"custodial-deposit-ledger/internal/adapter/http/middleware"
	redisStore "custodial-deposit-ledger/internal/adapter/storage/redis"
	"custodial-deposit-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	VaultSvc       ports.VaultService
	Registry       ports.CertificateRegistry
	AccountSvc     ports.AccountService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	certHandler := NewCertificateHandler(deps.Registry)
	adminHandler := NewAdminHandler(deps.VaultSvc, deps.Registry, deps.ReportingSvc)

	// Ownership lookup and the current rate are public reads.
	v1.GET("/certificates/:id/owner", rl("queries"), certHandler.GetOwner)
	v1.GET("/rate", rl("queries"), adminHandler.GetRate)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts", jwtAuth)
	{
		accounts.GET("/balance", rl("queries"), accountHandler.GetBalance)
		accounts.POST("/topup", rl("deposits"), accountHandler.Topup)
	}

	positionHandler := NewPositionHandler(deps.VaultSvc, deps.ReportingSvc)
	positions := v1.Group("/positions", jwtAuth)
	{
		positions.POST("", rl("deposits"), positionHandler.Deposit)
		positions.GET("", rl("queries"), positionHandler.ListPositions)
		positions.GET("/:id", rl("queries"), positionHandler.GetPosition)
		positions.GET("/:id/accrual", rl("queries"), positionHandler.GetAccrual)
		positions.POST("/:id/withdraw", rl("withdrawals"), positionHandler.Withdraw)
	}

	certificates := v1.Group("/certificates", jwtAuth)
	{
		certificates.GET("/:id", rl("queries"), certHandler.GetCertificate)
		certificates.POST("/:id/transfer", rl("transfers"), certHandler.Transfer)
		certificates.POST("/:id/approve", rl("transfers"), certHandler.Approve)
	}

	events := v1.Group("/events", jwtAuth)
	{
		events.GET("", rl("queries"), adminHandler.ListEvents)
	}

	v1.GET("/stats", jwtAuth, rl("queries"), adminHandler.GetStats)

	// Admin checks are enforced in the services against the params row, so
	// these routes only require a valid token.
	admin := v1.Group("/admin", jwtAuth)
	{
		admin.PUT("/rate", rl("admin"), adminHandler.SetRate)
		admin.POST("/reserve/fund", rl("admin"), adminHandler.FundReserve)
		admin.PUT("/issuer", rl("admin"), adminHandler.BindIssuer)
		admin.POST("/transfer", rl("admin"), adminHandler.TransferAdmin)
	}

	return r
}
