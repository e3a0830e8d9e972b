package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/config"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/dashboard"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/httpapi"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/realtime"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/service"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/store/postgres"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/internal/telemetry"
	"github.com/Mikami99/Gestion-Tickets-telepherique-API/migrations"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "ticket-service"

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	configureLogger(logger, cfg.Log)

	ctx := context.Background()
	shutdownTracing := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
	}, logger)

	pool, err := pgxpool.New(ctx, cfg.Database.ConnString())
	if err != nil {
		logger.WithError(err).Fatal("db connect")
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := migrations.Apply(ctx, pool); err != nil {
			logger.WithError(err).Fatal("apply migrations")
		}
		names, _ := migrations.Names()
		logger.WithField("migrations", names).Info("schema up to date")
	}

	location, err := cfg.Location()
	if err != nil {
		logger.WithError(err).Fatal("load timezone")
	}

	store := postgres.NewStore(pool, postgres.Options{Location: location})
	hub := realtime.New(logger)
	tickets := service.New(store, service.Options{
		StrictTransitions: cfg.StrictTransitions,
		DefaultPrice:      cfg.TicketPrice,
		Notifier:          hub,
	})

	var idempotency *httpapi.Idempotency
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, idempotency keys are best effort")
		}
		idempotency = httpapi.NewIdempotency(rdb, cfg.IdempotencyTTL())
	}

	api := httpapi.NewHandler(tickets, httpapi.Options{Idempotency: idempotency})
	page, err := dashboard.NewHandler(tickets, dashboard.Options{
		Location: location,
		Price:    cfg.TicketPrice,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("load dashboard templates")
	}
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		PerMinute: cfg.RateLimit.PerMinute,
		Burst:     cfg.RateLimit.Burst,
	})

	router := chi.NewRouter()
	api.Register(router)
	page.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Handle("/realtime/*", hub.Handler("/realtime"))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(logger)(limiter.Middleware(router)), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("ticket-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Error("tracing shutdown error")
	}
}

func configureLogger(logger *logrus.Logger, cfg config.Log) {
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}
