package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/securemsg/auth-service/internal/adapters/cache"
	eventadapter "github.com/securemsg/auth-service/internal/adapters/events"
	grpcadapter "github.com/securemsg/auth-service/internal/adapters/grpc"
	httpadapter "github.com/securemsg/auth-service/internal/adapters/http"
	"github.com/securemsg/auth-service/internal/adapters/metrics"
	"github.com/securemsg/auth-service/internal/adapters/postgres"
	"github.com/securemsg/auth-service/internal/adapters/security"
	"github.com/securemsg/auth-service/internal/application"
	"github.com/securemsg/auth-service/internal/domain"
	"github.com/securemsg/auth-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel()}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping secure messenger auth service", "http_port", cfg.Service.HTTPPort, "grpc_port", cfg.Service.GRPCPort)

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	retryPolicy := postgres.RetryPolicy{
		MaxAttempts:     cfg.Postgres.RetryAttempts,
		InitialInterval: cfg.Postgres.RetryInitialInterval,
		MaxInterval:     cfg.Postgres.RetryMaxInterval,
	}
	db, err := postgres.Connect(ctx, cfg.Dependencies.PostgresURL, cfg.Dependencies.MaxDBConns, retryPolicy)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	closers = append(closers, sqlDB.Close)

	if err := postgres.RunMigrations(ctx, db); err != nil {
		cleanup()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.Dependencies.RedisURL, cacheadapter.RetryOptions{
		MaxRetries:      cfg.Redis.MaxRetries,
		MinRetryBackoff: cfg.Redis.MinRetryBackoff,
		MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
		DialTimeout:     cfg.Redis.DialTimeout,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	closers = append(closers, redisClient.Close)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		cleanup()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	secretBox, err := security.NewSecretBoxFromBase64(cfg.Security.TOTPEncryptionKey)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init totp secret box: %w", err)
	}
	tokenCodec, err := security.NewJWTCodec(cfg.Security.JWTSecretKey)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init jwt codec: %w", err)
	}

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	closers = append(closers, closePublisher)

	recorder := metrics.NewRecorder("securemsg")
	repos := postgres.NewRepositories(db, retryPolicy, postgres.OutboxOptions{ResetEventTTL: cfg.Tokens.ResetTTL})

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			AccessTokenTTL:  cfg.Tokens.AccessTTL,
			RefreshTokenTTL: cfg.Tokens.RefreshTTL,
			ResetTokenTTL:   cfg.Tokens.ResetTTL,
			Policy: domain.CredentialPolicy{
				RequireUppercase:  cfg.Policy.RequireUppercase,
				RequireLowercase:  cfg.Policy.RequireLowercase,
				RequireDigit:      cfg.Policy.RequireDigit,
				RequireSpecial:    cfg.Policy.RequireSpecial,
				MinLength:         cfg.Policy.PasswordMinLength,
				MaxLength:         cfg.Policy.PasswordMaxLength,
				UsernameMinLength: cfg.Policy.UsernameMinLength,
				UsernameMaxLength: cfg.Policy.UsernameMaxLength,
				EmailMaxLength:    cfg.Policy.EmailMaxLength,
			},
			LockoutThreshold:   cfg.Lockout.Threshold,
			LockoutWindow:      cfg.Lockout.Window,
			AccessSessionCheck: cfg.Tokens.AccessSessionCheck,
			ResetSingleUse:     cfg.PasswordReset.SingleUse,
			MaskEmailConflict:  cfg.Registration.MaskEmailConflict,
		},
		Users:       repos.Users,
		Audit:       repos.Audit,
		Messages:    repos.Messages,
		Sessions:    cacheadapter.NewRedisSessionStore(redisClient),
		Lockouts:    cacheadapter.NewRedisLockoutStore(redisClient),
		ResetLedger: cacheadapter.NewRedisResetTokenLedger(redisClient),
		Hasher: security.NewArgon2Hasher(security.Argon2Params{
			MemoryKiB:   cfg.Security.Argon2.MemoryKiB,
			Iterations:  cfg.Security.Argon2.Iterations,
			Parallelism: cfg.Security.Argon2.Parallelism,
			SaltLength:  cfg.Security.Argon2.SaltLength,
			KeyLength:   cfg.Security.Argon2.KeyLength,
		}, cfg.Security.HashPoolSize),
		SecretBox:     secretBox,
		TOTP:          security.NewTOTPEngine(cfg.Security.TOTPIssuer),
		QR:            security.NewQRRenderer(),
		Tokens:        tokenCodec,
		Notifications: eventadapter.NewOutboxNotificationSink(repos.Outbox, cfg.PasswordReset.LinkBaseURL),
		Metrics:       recorder,
	})

	handler := httpadapter.NewHandler(svc, recorder.Handler())
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Service.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewAuthInternalServer(svc))

	outbox := eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, recorder, eventadapter.OutboxWorkerConfig{
		Interval:   cfg.Outbox.PollInterval,
		BatchSize:  cfg.Outbox.BatchSize,
		ClaimTTL:   cfg.Outbox.ClaimTTL,
		MaxRetries: cfg.Outbox.MaxRetries,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     outbox,
		cleanupFn: func(context.Context) {
			cleanup()
		},
	}, nil
}

// newPublisher picks Kafka when brokers are configured and the log publisher otherwise.
func newPublisher(cfg Config, logger *slog.Logger) (ports.EventPublisher, func() error, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Warn("no kafka brokers configured, outbox events will only be logged")
		return eventadapter.NewLoggingPublisher(logger), func() error { return nil }, nil
	}
	publisher, err := eventadapter.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topics)
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	return publisher, publisher.Close, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.Service.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
