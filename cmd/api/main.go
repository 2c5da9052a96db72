package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meetup-sync/internal/broker"
	"meetup-sync/internal/config"
	"meetup-sync/internal/db"
	"meetup-sync/internal/email"
	apihttp "meetup-sync/internal/http"
	"meetup-sync/internal/logging"
	"meetup-sync/internal/metrics"
	"meetup-sync/internal/repository"
	"meetup-sync/internal/service"
	"meetup-sync/internal/tracing"
)

const serviceName = "meetup-sync"

var setupTracing = tracing.Setup

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, tracing.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	// registrado primero: corre ultimo, tambien cuando falla el arranque
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	checks := []apihttp.ReadinessCheck{{
		Name:  "postgres",
		Check: func(ctx context.Context) error { return db.Ping(ctx, pool) },
	}}
	var (
		confirmLimiter service.ConfirmRateLimiter
		tokenStore     service.RefreshTokenStore
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory limiter and token store", zap.Error(err))
		} else {
			confirmLimiter = service.NewRedisConfirmRateLimiter(redisClient, 10*time.Minute, 3)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			checks = append(checks, apihttp.ReadinessCheck{
				Name:  "redis",
				Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			})
		}
		cancel()
	}

	publisher := broker.NewNopPublisher()
	if len(cfg.KafkaBrokers) > 0 {
		publisher = broker.NewKafkaPublisher(cfg.KafkaBrokers, logger)
		logger.Info("publishing domain events to kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close publisher", zap.Error(err))
		}
	}()

	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	jwtSvc := service.NewJWTService(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	userRepo := repository.NewPgUserRepository(pool, m)
	eventRepo := repository.NewPgEventRepository(pool)
	followRepo := repository.NewPgFollowRepository(pool)
	txManager := repository.NewPgTxManager(pool)

	userSvc := service.NewUserService(logger, userRepo, eventRepo, followRepo, txManager, emailSender, confirmLimiter)
	blockedSvc := service.NewBlockedDatesService(logger, userRepo, publisher, m, cfg.MaxBlockedRangeDays)
	followSvc := service.NewFollowService(logger, userRepo, followRepo, publisher)
	eventSvc := service.NewEventService(logger, eventRepo, userRepo, publisher, cfg.MaxBlockedRangeDays)

	router := apihttp.NewRouter(logger, m, reg, jwtSvc, apihttp.Handlers{
		Health:       apihttp.NewHealthHandler(logger, checks...),
		Users:        apihttp.NewUserHandler(logger, userSvc, jwtSvc),
		BlockedDates: apihttp.NewBlockedDatesHandler(logger, blockedSvc),
		Follows:      apihttp.NewFollowHandler(logger, followSvc),
		Events:       apihttp.NewEventHandler(logger, eventSvc),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
