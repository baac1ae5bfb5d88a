package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/dept-site-api/internal/application/authz"
	"github.com/dept-site-api/internal/application/verification"
	"github.com/dept-site-api/internal/config"
	"github.com/dept-site-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/dept-site-api/internal/infrastructure/jwt"
	"github.com/dept-site-api/internal/infrastructure/redisstore"
	s3infra "github.com/dept-site-api/internal/infrastructure/s3"
	"github.com/dept-site-api/internal/infrastructure/smtp"
	"github.com/dept-site-api/internal/pkg/logger"
	"github.com/dept-site-api/internal/pkg/metrics"
	transporthttp "github.com/dept-site-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log := logger.New("dept-site-api", logger.ParseLevel(cfg.LogLevel))
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	if err := run(cfg); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hierarchy, err := authz.ParseHierarchy(cfg.RoleHierarchy, cfg.RoleElevated)
	if err != nil {
		return fmt.Errorf("role hierarchy: %w", err)
	}
	authorizer := authz.NewAuthorizer(hierarchy)
	m := metrics.New()

	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := newVerificationStore(ctx, cfg, dynamoClient)
	if err != nil {
		return err
	}
	defer closeStore()
	codes := verification.NewRegistry(store,
		verification.WithTTL(cfg.VerificationTTL),
		verification.WithObserver(m.ObserveVerification),
	)
	if cfg.VerificationReapInterval > 0 {
		go codes.RunJanitor(ctx, cfg.VerificationReapInterval)
	}

	router, closeRouter := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		AccountRepo: dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables.Accounts),
		FileRepo:    dynamo.NewFileRepo(dynamoClient, cfg.DynamoTables.Files),
		S3Store:     s3infra.NewStore(s3Client, cfg.S3BucketName),
		Codes:       codes,
		Mailer:      smtp.NewMailer(cfg),
		JWTProvider: jwtProvider,
		Authorizer:  authorizer,
		Metrics:     m,
	})
	defer closeRouter()

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
			"verification_store", cfg.VerificationStore, "roles", hierarchy.Roles())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func newVerificationStore(ctx context.Context, cfg *config.Config, client *dynamodb.Client) (verification.Store, func(), error) {
	switch cfg.VerificationStore {
	case "memory", "":
		return verification.NewMemoryStore(), func() {}, nil
	case "redis":
		s, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "dynamo":
		return dynamo.NewVerificationStore(client, cfg.DynamoTables.VerificationCodes), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown VERIFICATION_STORE %q", cfg.VerificationStore)
	}
}
