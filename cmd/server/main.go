package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iho/tontiflex/internal/adapter/gateway"
	httpAdapter "github.com/iho/tontiflex/internal/adapter/http"
	"github.com/iho/tontiflex/internal/adapter/http/handler"
	"github.com/iho/tontiflex/internal/adapter/http/middleware"
	"github.com/iho/tontiflex/internal/adapter/messaging"
	postgresRepo "github.com/iho/tontiflex/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/tontiflex/internal/adapter/repository/redis"
	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/infrastructure/auth"
	"github.com/iho/tontiflex/internal/infrastructure/config"
	"github.com/iho/tontiflex/internal/infrastructure/eventpublisher"
	"github.com/iho/tontiflex/internal/infrastructure/logger"
	"github.com/iho/tontiflex/internal/infrastructure/metrics"
	"github.com/iho/tontiflex/internal/infrastructure/postgres"
	"github.com/iho/tontiflex/internal/infrastructure/redis"
	"github.com/iho/tontiflex/internal/usecase"
)

const (
	rabbitConfirmTimeout = 5 * time.Second
	rateLimitCleanup     = time.Minute
)

func main() {
	// Bootstrap logger until the configured one exists
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logg zerolog.Logger) error {
	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logg); err != nil {
			return err
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	logg.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	logg.Info().Msg("connected to redis")

	m := metrics.New()

	gw, err := gateway.New(gateway.Config{
		BaseURL:         cfg.GatewayURL,
		APIKey:          cfg.GatewayAPIKey,
		WebhookSecret:   cfg.GatewayWebhookSecret,
		Timeout:         cfg.GatewayTimeout,
		BreakerFailures: cfg.GatewayBreakerFailures,
		BreakerTimeout:  cfg.GatewayBreakerTimeout,
	}, m, logg)
	if err != nil {
		return err
	}

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRecordRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()

	reconciler := usecase.NewTransactionReconciler(
		postgresRepo.NewTransactionRepository(pool),
		gw,
		redisRepo.NewPollLocker(redisClient),
		outboxRepo,
		idGen,
		m,
		logg,
		usecase.ReconcilerConfig{
			MaxAttempts:    cfg.PollAttempts,
			PollInterval:   cfg.PollInterval,
			GatewayRetries: cfg.GatewayRetries,
			GatewayTimeout: cfg.GatewayTimeout,
			SweepBatch:     cfg.SweepBatch,
		},
	)
	// In-flight pollers stop here; their transactions are resumed on next start.
	defer reconciler.Stop()

	// Initialize use cases
	deps := usecase.WorkflowDeps{
		TxManager: txManager,
		Retrier:   postgresRepo.NewRetrier(logg),
		Outbox:    outboxRepo,
		Audit:     postgresRepo.NewAuditRepository(pool),
		IDGen:     idGen,
		Metrics:   m,
		Logger:    logg,
	}
	adhesionUC := usecase.NewAdhesionUseCase(deps, postgresRepo.NewAdhesionRepository(pool), reconciler)
	ledgerUC := usecase.NewLedgerUseCase(deps, ledgerRepo, redisRepo.NewBalanceCache(redisClient, cfg.BalanceCacheTTL), reconciler)
	retraitUC := usecase.NewRetraitUseCase(deps, postgresRepo.NewRetraitRepository(pool), ledgerRepo, ledgerUC, reconciler)
	loanUC := usecase.NewLoanUseCase(deps, postgresRepo.NewLoanRepository(pool), postgresRepo.NewScheduleRepository(pool), reconciler)

	registerTerminalHandlers(reconciler, adhesionUC, ledgerUC, retraitUC, loanUC)

	// Pick up transactions left in flight by the previous process.
	sweep, err := reconciler.Resume(ctx)
	if err != nil {
		logg.Error().Err(err).Msg("startup reconciliation failed")
	} else {
		logg.Info().
			Int("resubmitted", sweep.Resubmitted).
			Int("pollers_started", sweep.PollersStarted).
			Int("callbacks_replayed", sweep.CallbacksReplayed).
			Int("errors", sweep.Errors).
			Msg("startup reconciliation done")
	}

	// Outbox relay
	publisher, closePublisher, err := newPublisher(cfg, logg)
	if err != nil {
		return err
	}
	defer closePublisher()
	relay := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  publisher,
		Metrics:    m,
		Logger:     logg,
		BatchSize:  cfg.OutboxBatch,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	webhookLimiter := middleware.NewRateLimiter(cfg.WebhookRatePerSecond, cfg.WebhookBurst)
	go webhookLimiter.Run(ctx, rateLimitCleanup)

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AdhesionHandler:    handler.NewAdhesionHandler(adhesionUC, logg),
		LoanHandler:        handler.NewLoanHandler(loanUC, logg),
		RetraitHandler:     handler.NewRetraitHandler(retraitUC, logg),
		LedgerHandler:      handler.NewLedgerHandler(ledgerUC, logg),
		TransactionHandler: handler.NewTransactionHandler(reconciler, logg),
		HealthHandler:      handler.NewHealthHandler(pool, handler.PingFunc(redis.HealthCheck(redisClient))),
		IdempotencyStore:   redisRepo.NewIdempotencyStore(redisClient),
		JWTManager:         jwtManager,
		WebhookLimiter:     webhookLimiter,
		Logger:             logg,
	})

	// Create server
	server := &http.Server{
		Addr:         listenAddr(cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info().Str("port", cfg.HTTPPort).Bool("auth_enabled", cfg.AuthEnabled).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logg.Info().Msg("server stopped")
	return nil
}

// registrar is the part of the reconciler that routes terminal transactions.
type registrar interface {
	Register(purpose domain.Purpose, h usecase.TerminalHandler)
}

func registerTerminalHandlers(
	r registrar,
	adhesion, ledger, retrait, loan usecase.TerminalHandler,
) {
	r.Register(domain.PurposeAdhesionFee, adhesion)
	r.Register(domain.PurposeContribution, ledger)
	r.Register(domain.PurposeDeposit, ledger)
	r.Register(domain.PurposeWithdrawal, retrait)
	r.Register(domain.PurposeLoanRepayment, loan)
}

// newPublisher returns the RabbitMQ publisher, or a log publisher when no broker
// is configured.
func newPublisher(cfg *config.Config, logg zerolog.Logger) (eventpublisher.Publisher, func(), error) {
	if cfg.RabbitMQURL == "" {
		logg.Warn().Msg("RABBITMQ_URL not set, outbox events are only logged")
		return eventpublisher.NewLogPublisher(logg), func() {}, nil
	}

	p, err := messaging.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange, rabbitConfirmTimeout)
	if err != nil {
		return nil, nil, err
	}
	logg.Info().Str("exchange", cfg.RabbitMQExchange).Msg("connected to rabbitmq")

	return p, func() {
		if err := p.Close(); err != nil {
			logg.Warn().Err(err).Msg("failed to close rabbitmq publisher")
		}
	}, nil
}

func listenAddr(port string) string {
	return fmt.Sprintf(":%s", port)
}
