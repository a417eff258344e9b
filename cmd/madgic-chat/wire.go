//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/madgic/madgic-chat/internal/config"
	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/infrastructure/backend"
	"github.com/madgic/madgic-chat/internal/interfaces/httpserver"
	"github.com/madgic/madgic-chat/internal/interfaces/httpserver/handlers"
	"github.com/madgic/madgic-chat/internal/worker"
)

var chatSet = wire.NewSet(
	newObservability,
	newBackendClient,
	newStore,
	newChatService,
)

// BuildApplication assembles the HTTP API process.
func BuildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, func(), error) {
	wire.Build(
		chatSet,
		newWorkerPool,
		wire.Bind(new(chat.Dispatcher), new(*worker.Pool)),
		wire.Bind(new(httpserver.HealthChecker), new(*backend.Client)),
		handlers.NewProvider,
		httpserver.New,
		NewApplication,
	)
	return nil, nil, nil
}

// BuildConsole assembles the chat service for the interactive commands.
func BuildConsole(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Console, func(), error) {
	wire.Build(
		chatSet,
		NewConsole,
	)
	return nil, nil, nil
}
