package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/infrastructure/backend"
	"github.com/madgic/madgic-chat/internal/interfaces/httpserver"
	"github.com/madgic/madgic-chat/internal/worker"
)

// Application is the HTTP API process.
type Application struct {
	httpServer *httpserver.HttpServer
	pool       *worker.Pool
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, pool *worker.Pool, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		pool:       pool,
		log:        log,
	}
}

// Start runs the worker pool and the HTTP server until ctx is cancelled.
func (a *Application) Start(ctx context.Context) error {
	a.pool.Start(ctx)
	defer a.pool.Stop()
	return a.httpServer.Run(ctx)
}

// Console holds what the interactive commands need.
type Console struct {
	Service *chat.Service
	Backend *backend.Client
}

func NewConsole(service *chat.Service, client *backend.Client) *Console {
	return &Console{Service: service, Backend: client}
}
