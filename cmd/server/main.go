package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/tradefab/order-api/internal/account"
	"github.com/tradefab/order-api/internal/auth"
	"github.com/tradefab/order-api/internal/config"
	"github.com/tradefab/order-api/internal/database"
	"github.com/tradefab/order-api/internal/metrics"
	"github.com/tradefab/order-api/internal/orders"
	"github.com/tradefab/order-api/internal/outbox"
	"github.com/tradefab/order-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func applyLogLevel(level string) {
	if parsed, err := zerolog.ParseLevel(level); err == nil && parsed != zerolog.NoLevel {
		zerolog.SetGlobalLevel(parsed)
	}
}

// main initializes and runs the order command server with graceful shutdown
// support.
func main() {
	cfg := config.Default()
	configPath := os.Getenv("CONFIG_PATH")
	if configPath != "" {
		loaded, err := config.LoadWithEnvOverrides(configPath)
		if err != nil {
			zlog.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
		}
		cfg = loaded
	}
	applyLogLevel(cfg.LogLevel)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	router := gin.Default()

	// The session authority and account authority are in-process stand-ins
	// here; production deployments point these at the real remote services.
	authService := auth.NewService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.SessionTTLHours)*time.Hour)
	authHandlers := auth.NewGinHandlers(authService)
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret, auth.TestAccountID)

	accounts := account.NewSimulator()
	accounts.SeedCash(auth.TestAccountID, 1_000_000_000)
	accounts.SeedPosition(auth.TestAccountID, "AAPL", 10_000)

	orderService := orders.NewService(db, accounts)
	orderHandlers := orders.NewGinHandlers(orderService)

	dispatcher := outbox.NewDispatcher(db, outbox.LogPublisher{},
		time.Duration(cfg.Outbox.DispatchIntervalMs)*time.Millisecond)
	dispatcherCtx, dispatcherCancel := context.WithCancel(context.Background())
	defer dispatcherCancel()

	go dispatcher.Start(dispatcherCtx)

	if configPath != "" {
		watcher := config.Watcher{Path: configPath}
		go func() {
			_ = watcher.Start(dispatcherCtx, func(updated config.Config) {
				applyLogLevel(updated.LogLevel)
			})
		}()
	}

	setupRoutes(router, cfg, authService, authHandlers, orderHandlers)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers:
// - Auth routes: public session issuance
// - Order routes: gated by session validation, then rate limited
// - Internal routes: fill callbacks under internal bearer auth
func setupRoutes(
	router *gin.Engine,
	cfg config.Config,
	authService *auth.Service,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
) {
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		authRoutes.Use(middleware.RateLimit())
		{
			authRoutes.POST("/session", authHandlers.CreateSessionHandler())
		}

		orderRoutes := v1.Group("/orders")
		orderRoutes.Use(
			middleware.SessionAuth(authService, time.Duration(cfg.Auth.TimeoutMs)*time.Millisecond),
			middleware.RateLimit(),
		)
		{
			orderRoutes.POST("", orderHandlers.PlaceOrderHandler())
			orderRoutes.POST("/:order_id/cancel", orderHandlers.CancelOrderHandler())
		}

		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(authService), middleware.RateLimit())
		{
			internal.POST("/fills", orderHandlers.FillEventHandler())
		}
	}
}
