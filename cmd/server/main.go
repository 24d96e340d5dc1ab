package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/event-booking/internal/config"
	"github.com/iliyamo/event-booking/internal/database"
	"github.com/iliyamo/event-booking/internal/handler"
	"github.com/iliyamo/event-booking/internal/logger"
	"github.com/iliyamo/event-booking/internal/middleware"
	"github.com/iliyamo/event-booking/internal/queue"
	"github.com/iliyamo/event-booking/internal/repository"
	"github.com/iliyamo/event-booking/internal/router"
	"github.com/iliyamo/event-booking/internal/service"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load() // Load environment config
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatalf(ctx, "open database: %v", err)
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		logger.Fatalf(ctx, "migrate: %v", err)
	}
	logger.Infof(ctx, "migrations applied: %d", applied)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	bookings := repository.NewBookingRepo(db)
	tickets := repository.NewTicketRepo(db)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
		if err != nil {
			logger.Fatalf(ctx, "bootstrap admin: %v", err)
		}
		if created {
			logger.Infof(ctx, "created admin account %s", cfg.AdminEmail)
		}
	}

	// Redis is optional; without it the limiter and the cache pass through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warnf(ctx, "redis unavailable: rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	var publisher service.ReceiptPublisher
	if cfg.RabbitMQURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitMQURL)
		go queue.StartReceiptConsumer(ctx, cfg.RabbitMQURL, cfg.ReceiptLogDir)
	} else {
		logger.Warnf(ctx, "RABBITMQ_URL empty: booking receipts disabled")
	}

	eventSvc := service.NewEventService(events, bookings, cache)
	bookingSvc := service.NewBookingService(bookings, events, tickets, publisher)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, middleware.HeaderAuthToken},
	}))

	router.RegisterRoutes(e, router.Deps{
		DB:        db,
		JWTSecret: cfg.JWTSecret,
		Auth:      handler.NewAuthHandler(cfg, users, tokens),
		Events:    handler.NewEventHandler(eventSvc),
		Bookings:  handler.NewBookingHandler(bookingSvc, cfg.JWTSecret),
		Admin:     handler.NewAdminHandler(eventSvc, users, tokens),
		Limiter:   middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb),
		Cache:     cache,
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Infof(ctx, "listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf(ctx, "server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(shutdownCtx, "shutdown: %v", err)
	}
}
