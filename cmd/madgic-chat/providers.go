package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/madgic/madgic-chat/internal/config"
	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
	"github.com/madgic/madgic-chat/internal/infrastructure/backend"
	"github.com/madgic/madgic-chat/internal/infrastructure/database"
	"github.com/madgic/madgic-chat/internal/infrastructure/metrics"
	"github.com/madgic/madgic-chat/internal/infrastructure/repository/conversation"
	"github.com/madgic/madgic-chat/internal/worker"
	"github.com/madgic/madgic-chat/pkg/observability"
	obsworker "github.com/madgic/madgic-chat/pkg/observability/worker"
)

func newObservability(ctx context.Context, cfg *config.Config) (*observability.Provider, func(), error) {
	oc := observability.DefaultConfig(cfg.ServiceName)
	oc.ServiceVersion = version
	oc.Environment = cfg.Environment
	oc.TracingEnabled = cfg.EnableTracing
	oc.MetricsEnabled = cfg.EnableMetrics
	oc.PIILevel = cfg.PIILevel
	if cfg.OTLPEndpoint != "" {
		oc.OTLPEndpoint = cfg.OTLPEndpoint
	}

	provider, err := observability.Init(ctx, oc)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize observability: %w", err)
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}
	return provider, cleanup, nil
}

func newBackendClient(cfg *config.Config) *backend.Client {
	return backend.NewClient(backend.Config{
		BaseURL:        cfg.APIURL,
		RequestTimeout: cfg.APIRequestTimeout,
		StreamTimeout:  cfg.APIStreamTimeout,
	})
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, func(), error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, func() { _ = database.Close(db) }, nil
}

// newStore picks the conversation archive named by SESSION_STORE.
func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (chat.Store, func(), error) {
	if cfg.SessionStore != config.StorePostgres {
		return conversation.NewInMemoryRepository(), func() {}, nil
	}
	db, cleanup, err := newGormDB(ctx, newDatabaseConfig(cfg), log)
	if err != nil {
		return nil, nil, err
	}
	return conversation.NewPostgresRepository(db), cleanup, nil
}

func newChatService(cfg *config.Config, client *backend.Client, store chat.Store, log zerolog.Logger, obs *observability.Provider) (*chat.Service, error) {
	temperature, err := cfg.Temperature()
	if err != nil {
		return nil, err
	}
	return chat.NewService(chat.ServiceConfig{
		DefaultMode:       transcript.Mode(cfg.DefaultMode),
		DefaultStreamMode: transcript.StreamMode(cfg.DefaultStreamMode),
		BufferFrames:      cfg.SSEBufferFrames,
		Query: chat.QueryOptions{
			Model:       cfg.QueryModel,
			Temperature: temperature,
		},
		TurnTimeout: cfg.TurnTimeout,
	}, client, store, log, metrics.NewRecorder(), obs.Redactor), nil
}

func newWorkerPool(cfg *config.Config, obs *observability.Provider, log zerolog.Logger) (*worker.Pool, error) {
	instrumenter, err := obsworker.NewInstrumenter(obs.Tracer, obs.Meter, "madgic_chat_turn")
	if err != nil {
		return nil, fmt.Errorf("instrument worker pool: %w", err)
	}
	return worker.NewPool(worker.Config{
		WorkerCount: cfg.WorkerCount,
		QueueSize:   cfg.WorkerQueueSize,
		StopTimeout: cfg.ShutdownTimeout,
	}, instrumenter, log), nil
}
