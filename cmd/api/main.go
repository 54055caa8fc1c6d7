package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/background"
	"github.com/BradenHooton/loginguard/internal/config"
	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/repositories"
	"github.com/BradenHooton/loginguard/internal/routes"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// attemptStore is what both storage backends provide
type attemptStore interface {
	services.LockoutAdminStore
	services.AlertRepository
	background.FailurePurger
	handlers.HealthChecker
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("db_driver", cfg.Database.Driver),
	)

	// Initialize storage
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize attempt store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	// Alert notifiers
	notifiers, closeNotifiers := buildNotifiers(cfg, logger)
	defer closeNotifiers()

	alertEmitter := services.NewAlertEmitter(store, logger, cfg.Lockout.AlertTimeout, notifiers...)

	// Initialize services
	recorder := services.NewAttemptRecorder(store, alertEmitter, services.RecorderConfig{
		Policy: services.LockoutPolicy{
			MaxAttempts:  cfg.Lockout.MaxAttempts,
			Window:       cfg.Lockout.Window,
			LockDuration: cfg.Lockout.LockDuration,
		},
		StoreTimeout: cfg.Lockout.StoreTimeout,
	}, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Initialize handlers
	h := routes.Handlers{
		LoginAttempt: handlers.NewLoginAttemptHandler(recorder, ipConfig, logger),
		Health:       handlers.NewHealthHandler(store),
		RateLimit: middlewareCustom.RateLimitConfig{
			RequestsPerMinute: cfg.Server.CheckRequestsPerMinute,
			IPConfig:          ipConfig,
		},
	}

	if cfg.Admin.JWTSecret != "" {
		adminService := services.NewLockoutAdminService(store, alertEmitter, nil, logger)
		h.Admin = handlers.NewAdminLockoutHandler(adminService, logger)
		h.TokenManager = auth.NewTokenManager(cfg.Admin.JWTSecret)
	} else {
		logger.Info("ADMIN_JWT_SECRET not set, operator API disabled")
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	routes.RegisterRoutes(router, h)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start retention task
	cleanupManager := background.NewCleanupManager(store, logger, cfg.Lockout.CleanupInterval, cfg.Lockout.AttemptRetention)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Let in-flight alert deliveries finish before the store closes
	alertEmitter.Wait()

	logger.Info("server stopped gracefully")
}

// openStore connects to the configured backend and applies migrations
func openStore(cfg *config.Config, logger *slog.Logger) (attemptStore, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repositories.NewSQLiteLoginAttemptRepository(db), func() { db.Close() }, nil

	case config.DriverPostgres:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repositories.NewLoginAttemptRepository(db), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
}

// buildNotifiers sets up the optional SES and NATS alert notifiers
func buildNotifiers(cfg *config.Config, logger *slog.Logger) ([]services.Notifier, func()) {
	var (
		notifiers []services.Notifier
		closers   []func()
	)

	if cfg.Alerts.SESRegion != "" && cfg.Alerts.FromAddress != "" && cfg.Alerts.ToAddress != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ses, err := services.NewAWSSESAlertNotifier(ctx, cfg.Alerts.SESRegion, cfg.Alerts.FromAddress, cfg.Alerts.ToAddress, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize SES alert notifier", slog.Any("error", err))
		} else {
			notifiers = append(notifiers, ses)
			logger.Info("SES alert notifier enabled", slog.String("region", cfg.Alerts.SESRegion))
		}
	}

	if cfg.Alerts.NATSURL != "" {
		n, conn, err := services.ConnectNATSAlertNotifier(cfg.Alerts.NATSURL, cfg.Alerts.NATSSubject)
		if err != nil {
			logger.Error("failed to connect to NATS", slog.Any("error", err))
		} else {
			notifiers = append(notifiers, n)
			closers = append(closers, func() { conn.Drain() })
			logger.Info("NATS alert notifier enabled", slog.String("subject", cfg.Alerts.NATSSubject))
		}
	}

	return notifiers, func() {
		for _, c := range closers {
			c()
		}
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
