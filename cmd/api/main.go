package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/elgiborsolution/bri-payments-go/internal/cache"
	"github.com/elgiborsolution/bri-payments-go/internal/config"
	"github.com/elgiborsolution/bri-payments-go/internal/database"
	"github.com/elgiborsolution/bri-payments-go/internal/handler"
	"github.com/elgiborsolution/bri-payments-go/internal/middleware"
	"github.com/elgiborsolution/bri-payments-go/internal/repository"
	"github.com/elgiborsolution/bri-payments-go/internal/service"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/internal/worker"
)

// main is the application entrypoint for the BRI payment gateway.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting bri payments api")

	utils.SetJWTSecret(cfg.JWTSecret)

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 3c. Initialize caches
	tokenCache := cache.NewTokenCache(redisClient)
	sequenceCache := cache.NewSequenceCache(redisClient)
	tenantCache := cache.NewTenantCache(redisClient)

	// 4. Initialize repositories
	tenantRepo := repository.NewTenantRepository(db)
	accessTokenRepo := repository.NewAccessTokenRepository(db)
	vaLogRepo := repository.NewVALogRepository(db)
	qrisLogRepo := repository.NewQRISLogRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)

	// 5. Initialize services
	resolver := service.NewResolver(cfg.BRI, tenantRepo, tenantCache)
	tokenSvc := service.NewTokenService(tokenCache)
	allocator := service.NewAllocator(vaLogRepo, sequenceCache)
	reconciler := service.NewReconciler(vaLogRepo, qrisLogRepo)

	brivaSvc := service.NewBrivaService(resolver, tokenSvc, allocator, reconciler, vaLogRepo, nil)
	qrisSvc := service.NewQRISService(resolver, tokenSvc, reconciler, qrisLogRepo, nil)
	notificationSvc := service.NewNotificationService(resolver, reconciler)
	b2bAuthSvc := service.NewB2BAuthService(tenantRepo, accessTokenRepo)
	tenantSvc := service.NewTenantService(tenantRepo, resolver)
	adminAuthSvc := service.NewAdminAuthService(adminRepo)

	// 6. Initialize handlers
	handlers := &Handlers{
		Health:       handler.NewHealthHandler(db),
		Briva:        handler.NewBrivaHandler(brivaSvc),
		QRIS:         handler.NewQRISHandler(qrisSvc),
		Notification: handler.NewNotificationHandler(notificationSvc),
		Token:        handler.NewTokenHandler(b2bAuthSvc, resolver),
		Tenant:       handler.NewTenantHandler(tenantSvc),
		Auth:         handler.NewAuthHandler(adminAuthSvc),
	}

	// 7. Initialize middleware
	b2bMw := middleware.NewB2BAuthMiddleware(b2bAuthSvc)
	jwtMw := middleware.NewJWTMiddleware()

	// 8. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, b2bMw, jwtMw)

	// 9. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 10. Start workers
	go worker.NewExpiryWorker(vaLogRepo, qrisLogRepo, accessTokenRepo, cfg.Worker.ExpiryInterval).Start(ctx)

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 13. Cancel context to stop workers
	cancel()

	// 14. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health       *handler.HealthHandler
	Briva        *handler.BrivaHandler
	QRIS         *handler.QRISHandler
	Notification *handler.NotificationHandler
	Token        *handler.TokenHandler
	Tenant       *handler.TenantHandler
	Auth         *handler.AuthHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, b2bMiddleware *middleware.B2BAuthMiddleware, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	// Inbound SNAP surface: BRI (or a counterpart playing BRI's role)
	// calls these. The token endpoint is open; the VA notification route
	// requires the bearer it issues. The same routes exist under a
	// tenant-scoped prefix for multi-tenant deployments.
	router.POST("/snap/v1.0/access-token/b2b", handlers.Token.IssueToken)
	router.POST("/snap/v1.0/transfer-va/payment", b2bMiddleware.Handle(), handlers.Notification.BrivaSnapNotify)
	router.POST("/snap/v1.1/qr/qr-mpm-notify", handlers.Notification.QRISNotify)
	router.POST("/bri/briva/notification", handlers.Notification.BrivaLegacyNotify)

	tenant := router.Group("/t/:tenantId")
	{
		tenant.POST("/snap/v1.0/transfer-va/payment", b2bMiddleware.Handle(), handlers.Notification.BrivaSnapNotify)
		tenant.POST("/snap/v1.1/qr/qr-mpm-notify", handlers.Notification.QRISNotify)
		tenant.POST("/bri/briva/notification", handlers.Notification.BrivaLegacyNotify)
	}

	// Merchant-facing API.
	briva := router.Group("/v1/bri/briva")
	{
		briva.POST("", handlers.Briva.CreateVA)
		briva.GET("/report", handlers.Briva.GetReport)
		briva.GET("/:reffId", handlers.Briva.GetPaymentLog)
		briva.PUT("/:reffId", handlers.Briva.UpdateVA)
		briva.PUT("/:reffId/status", handlers.Briva.UpdateVAStatus)
		briva.GET("/:reffId/inquiry", handlers.Briva.InquiryVA)
		briva.GET("/:reffId/payment-status", handlers.Briva.InquiryStatus)
		briva.DELETE("/:reffId", handlers.Briva.DeleteVA)
	}

	qris := router.Group("/v1/bri/qris")
	{
		qris.POST("", handlers.QRIS.GenerateQR)
		qris.GET("/:reffId", handlers.QRIS.GetPaymentLog)
		qris.GET("/:reffId/payment-status", handlers.QRIS.InquiryPayment)
		qris.GET("/:reffId/image", handlers.QRIS.RenderQR)
	}

	// Integration debugging helpers.
	helperGroup := router.Group("/v1/bri/helper")
	{
		helperGroup.POST("/sign-token", handlers.Token.SignToken)
		helperGroup.POST("/sign-business", handlers.Token.SignBusiness)
	}

	// Admin routes
	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", handlers.Auth.Login)
	admin.Use(jwtMiddleware.Handle())
	{
		admin.GET("/tenants", handlers.Tenant.List)
		admin.POST("/tenants", handlers.Tenant.Create)
		admin.GET("/tenants/:tenantId", handlers.Tenant.Get)
		admin.PUT("/tenants/:tenantId", handlers.Tenant.Update)
		admin.DELETE("/tenants/:tenantId", handlers.Tenant.Delete)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
