package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/infrastructure/metrics"
	obsworker "github.com/madgic/madgic-chat/pkg/observability/worker"
)

var (
	// ErrQueueFull is returned when the queue has no room for another job.
	ErrQueueFull = errors.New("worker queue is full")
	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("worker pool is stopped")
)

// Config contains worker pool configuration.
type Config struct {
	WorkerCount int
	QueueSize   int
	StopTimeout time.Duration
}

type job struct {
	id  string
	run func(ctx context.Context)
}

// Pool runs submitted turns on a fixed set of goroutines.
type Pool struct {
	cfg          Config
	queue        chan job
	instrumenter *obsworker.Instrumenter
	log          zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a pool. instrumenter may be nil.
func NewPool(cfg Config, instrumenter *obsworker.Instrumenter, log zerolog.Logger) *Pool {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 30 * time.Second
	}
	return &Pool{
		cfg:          cfg,
		queue:        make(chan job, cfg.QueueSize),
		instrumenter: instrumenter,
		log:          log.With().Str("component", "worker-pool").Logger(),
	}
}

// Start launches the workers. Jobs run with a context derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	p.log.Info().Int("worker_count", p.cfg.WorkerCount).Msg("starting worker pool")
	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.work(ctx, id)
		}(i + 1)
	}
}

// Dispatch queues a job without blocking.
func (p *Pool) Dispatch(run func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.queue <- job{id: uuid.NewString(), run: run}:
		metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting jobs, lets queued jobs finish, and waits for the workers
// up to the stop timeout. Jobs still running after that see a cancelled context.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.log.Info().Msg("stopping worker pool")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("all workers stopped gracefully")
	case <-time.After(p.cfg.StopTimeout):
		p.log.Warn().Msg("worker pool shutdown timed out")
	}
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Pool) work(ctx context.Context, id int) {
	log := p.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("worker started")

	for j := range p.queue {
		metrics.SetQueueDepth(len(p.queue))
		p.execute(ctx, log, j)
	}
	log.Debug().Msg("worker stopped")
}

func (p *Pool) execute(ctx context.Context, log zerolog.Logger, j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("job_id", j.id).Msg("job panicked")
		}
	}()

	if p.instrumenter == nil {
		j.run(ctx)
		return
	}
	_ = p.instrumenter.Run(ctx, "turn", j.id, func(ctx context.Context) error {
		j.run(ctx)
		return nil
	})
}

var _ chat.Dispatcher = (*Pool)(nil)
