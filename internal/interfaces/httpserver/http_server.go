package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/madgic/madgic-chat/internal/config"
	"github.com/madgic/madgic-chat/internal/infrastructure/metrics"
	"github.com/madgic/madgic-chat/internal/interfaces/httpserver/handlers"
	"github.com/madgic/madgic-chat/internal/interfaces/httpserver/middlewares"
	v1 "github.com/madgic/madgic-chat/internal/interfaces/httpserver/routes/v1"
	"github.com/madgic/madgic-chat/pkg/observability"
	obsmiddleware "github.com/madgic/madgic-chat/pkg/observability/middleware"
)

// HealthChecker reports whether the upstream backend can take requests.
type HealthChecker interface {
	Health(ctx context.Context) (string, error)
}

// HttpServer wraps the gin engine with graceful shutdown helpers.
type HttpServer struct {
	cfg    *config.Config
	engine *gin.Engine
	log    zerolog.Logger
}

// New constructs the HTTP server with default middleware and routes. health may
// be nil, in which case /readyz always reports ready.
func New(cfg *config.Config, log zerolog.Logger, obs *observability.Provider, handlerProvider *handlers.Provider, health HealthChecker) *HttpServer {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log = log.With().Str("component", "http").Logger()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares.RequestID())
	engine.Use(obsmiddleware.Gin(obs.Tracer, obs.Meter, cfg.ServiceName, recordRequest))
	engine.Use(middlewares.Logging(log))

	registerCoreRoutes(engine, cfg, health)
	v1.NewRoutes(handlerProvider).Register(engine)

	return &HttpServer{
		cfg:    cfg,
		engine: engine,
		log:    log,
	}
}

// Handler exposes the engine, mainly for tests.
func (s *HttpServer) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP listener and handles graceful shutdown via context cancellation.
func (s *HttpServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr()).Msg("HTTP server listening")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("Context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func recordRequest(method, route string, status int, elapsed time.Duration) {
	metrics.RecordRequest(method, route, strconv.Itoa(status), elapsed.Seconds())
}

func registerCoreRoutes(engine *gin.Engine, cfg *config.Config, health HealthChecker) {
	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": cfg.ServiceName,
			"status":  "ok",
		})
	})

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	engine.GET("/readyz", func(c *gin.Context) {
		if health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		backendStatus, err := health.Health(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "backend": backendStatus})
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
