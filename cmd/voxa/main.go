package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/config"
	voxaminio "github.com/voxa-chat/voxa/minio"
	"github.com/voxa-chat/voxa/postgres"
	"github.com/voxa-chat/voxa/postgres/migrator"
	"github.com/voxa-chat/voxa/presence"
	"github.com/voxa-chat/voxa/pubsub"
	"github.com/voxa-chat/voxa/service"
	"github.com/voxa-chat/voxa/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	errLogger := slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	}))
	infoLogger := slog.New(charmlog.NewWithOptions(os.Stdout, charmlog.Options{
		ReportTimestamp: true,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPool, err := pgxpool.New(context.Background(), cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("open postgres connection pool: %w", err)
	}

	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	migrationStart := time.Now()
	infoLogger.Info("starting postgres migrations")

	if err := migrator.Migrate(context.Background(), dbPool, postgres.MigrationsFS); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}

	infoLogger.Info("finished postgres migrations", "took", time.Since(migrationStart))

	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return fmt.Errorf("create minio client: %w", err)
	}

	blobStore := voxaminio.New(context.Background(), minioClient, cfg.CleanupTimeout)
	go func() {
		for err := range blobStore.Errs() {
			errLogger.Error("minio error", "error", err)
		}
	}()

	if err := blobStore.CreateReadOnlyBucket(context.Background(), cfg.MediaBucket); err != nil {
		return fmt.Errorf("create minio bucket: %w", err)
	}

	natsConn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}

	defer natsConn.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	defer redisClient.Close()

	svc := service.New(&service.Config{
		Postgres:          postgres.New(dbPool),
		Minio:             blobStore,
		PubSub:            pubsub.NewNATS(natsConn),
		Presence:          presence.New(redisClient, presence.Config{}),
		Logger:            errLogger,
		MediaBucket:       cfg.MediaBucket,
		BaseCtx:           context.Background(),
		BackgroundTimeout: cfg.BackgroundTimeout,
	})

	defer svc.Close()

	go func() {
		for err := range svc.Errs() {
			errLogger.Error("service error", "error", err)
		}
	}()

	handler := &web.Handler{
		Service:       svc,
		Authenticator: auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenValidity),
		Logger:        errLogger,
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	infoLogger.Info("starting voxa server", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start voxa server: %w", err)
	}

	return nil
}
