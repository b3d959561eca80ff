package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/clinicbook/clinic/internal/config"
	"github.com/clinicbook/clinic/internal/domain/billing"
	"github.com/clinicbook/clinic/internal/domain/dashboard"
	"github.com/clinicbook/clinic/internal/domain/identity"
	"github.com/clinicbook/clinic/internal/domain/records"
	"github.com/clinicbook/clinic/internal/domain/scheduling"
	"github.com/clinicbook/clinic/internal/platform/auth"
	"github.com/clinicbook/clinic/internal/platform/blobstore"
	"github.com/clinicbook/clinic/internal/platform/clock"
	"github.com/clinicbook/clinic/internal/platform/db"
	"github.com/clinicbook/clinic/internal/platform/httpx"
	"github.com/clinicbook/clinic/internal/platform/middleware"
	"github.com/clinicbook/clinic/internal/platform/notification"
	"github.com/clinicbook/clinic/internal/platform/telemetry"
)

const (
	version         = "1.0.0"
	bcryptCost      = 10
	jsonBodyLimit   = "1M"
	uploadBodyLimit = "12M"
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// routeRegistrar is implemented by every domain handler.
type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, _ := cfg.Location()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, err := blobstore.NewDiskStore(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	metrics := telemetry.New("clinic")

	var sender notification.EmailSender = notification.LogSender{Logger: logger}
	if cfg.EmailEnabled {
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}
	dispatcher := notification.NewDispatcher(sender, notification.NewTemplateEngine(), metrics, logger, notification.DispatcherConfig{})
	dispatcher.Start()

	revocations := auth.NewTokenRevocationStore(cfg.JWTExpiry)
	defer revocations.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpx.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(jsonBodyLimit, uploadBodyLimit))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(metrics.Middleware())
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		SigningKey:  []byte(cfg.JWTSecret),
		Issuer:      cfg.JWTIssuer,
		Skipper:     auth.AuthSkipper,
		Revocations: revocations,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))
	if cfg.MetricsEnabled {
		e.GET("/metrics", metrics.Handler())
	}
	e.Static(cfg.UploadBaseURL, store.Root())

	api := e.Group("/api")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	handlers := buildHandlers(pool, cfg, loc, store, dispatcher, revocations, metrics)
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending emails dropped")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// buildHandlers wires repositories and services for every domain.
func buildHandlers(pool *pgxpool.Pool, cfg *config.Config, loc *time.Location, store blobstore.Store,
	notifier notification.Notifier, revocations *auth.TokenRevocationStore, metrics *telemetry.Metrics) []routeRegistrar {
	clk := clock.Real{}
	tx := db.NewTxManager(pool)
	hasher := auth.NewBcryptHasher(bcryptCost)

	// Identity
	users := identity.NewUserRepoPG(pool)
	patients := identity.NewPatientRepoPG(pool)
	doctors := identity.NewDoctorRepoPG(pool)
	specialties := identity.NewSpecialtyRepoPG(pool)
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTExpiry, clk)
	authSvc := identity.NewAuthService(users, patients, doctors, tx, hasher, tokens, revocations, notifier, clk,
		identity.AuthConfig{OTPTTL: cfg.OTPTTL, TokenTTL: cfg.JWTExpiry})
	identitySvc := identity.NewService(users, patients, doctors, specialties, tx, hasher, revocations, store, clk)
	clinicSvc := identity.NewClinicService(doctors, users, store, notifier, clk)
	directory := identity.NewDirectory(doctors, patients)

	// Scheduling
	appointments := scheduling.NewAppointmentRepoPG(pool)
	schedulingSvc := scheduling.NewService(scheduling.NewScheduleRepoPG(pool), appointments, directory, clk, metrics,
		scheduling.Config{
			Mode:     scheduling.Mode(cfg.AvailabilityMode),
			Location: loc,
			Cutoff:   time.Duration(cfg.CancellationCutoffHours) * time.Hour,
		})
	lifecycle := schedulingSvc.Lifecycle()

	// Records
	recordsSvc := records.NewService(records.NewRecordRepoPG(pool), records.NewReportRepoPG(pool),
		appointments, lifecycle, directory, tx, store)

	// Billing
	billingSvc := billing.NewService(billing.NewPaymentRepoPG(pool), appointments, lifecycle, tx, clk)

	// Dashboard
	dashboardSvc := dashboard.NewService(dashboard.NewRepoPG(pool), clk, loc)

	return []routeRegistrar{
		identity.NewHandler(authSvc, identitySvc, clinicSvc),
		scheduling.NewHandler(schedulingSvc),
		records.NewHandler(recordsSvc),
		billing.NewHandler(billingSvc),
		dashboard.NewHandler(dashboardSvc),
	}
}
