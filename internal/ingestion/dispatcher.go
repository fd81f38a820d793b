package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"solana-event-log/internal/observability"
	"solana-event-log/internal/storage"
)

// ErrDispatcherClosed is returned by Submit after Drain has started.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// DispatcherConfig configures the persistence worker pool.
type DispatcherConfig struct {
	Workers        int           // Default: 4
	QueueSize      int           // Default: 256
	PersistTimeout time.Duration // Default: 10s
	WriteRPS       int           // 0 disables rate limiting
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 10 * time.Second
	}
	return c
}

// Dispatcher persists jobs on a fixed pool of workers fed by a bounded queue.
type Dispatcher struct {
	sink    EventSink
	cfg     DispatcherConfig
	limiter ratelimit.Limiter
	logger  *zap.Logger
	metrics *observability.Metrics

	queue chan Job
	wg    sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	started bool
}

// Compile-time interface check.
var _ Submitter = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. Call Start before Submit.
func NewDispatcher(sink EventSink, cfg DispatcherConfig, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.WriteRPS > 0 {
		limiter = ratelimit.New(cfg.WriteRPS)
	}

	return &Dispatcher{
		sink:    sink,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan Job, cfg.QueueSize),
	}
}

// Start launches the workers. Persist calls run on a context derived from
// ctx without its cancellation, so shutdown does not abort in-flight writes.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	base := context.WithoutCancel(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(base, i)
	}
	d.logger.Info("dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize),
		zap.Int("write_rps", d.cfg.WriteRPS))
}

// Submit enqueues a job, blocking while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- job:
		d.metrics.SetQueueDepth(len(d.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain stops accepting jobs and waits for queued and in-flight jobs to
// finish, or for ctx to end.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher drained")
		return nil
	case <-ctx.Done():
		d.logger.Warn("dispatcher drain interrupted", zap.Int("pending", len(d.queue)))
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	logger := d.logger.With(zap.Int("worker", id))
	for job := range d.queue {
		d.metrics.SetQueueDepth(len(d.queue))
		d.persist(ctx, logger, job)
	}
}

func (d *Dispatcher) persist(ctx context.Context, logger *zap.Logger, job Job) {
	d.limiter.Take()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.PersistTimeout)
	defer cancel()

	start := time.Now()
	res, err := d.sink.Persist(ctx, job.Event, job.Fingerprint)
	elapsed := time.Since(start)

	if err != nil {
		d.metrics.RecordPersist("error", elapsed.Seconds(), time.Now().Unix())
		fields := []zap.Field{
			zap.String("fingerprint", job.Fingerprint),
			zap.String("signature", job.Event.Signature),
			zap.Error(err),
		}
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Warn("persist rejected by unique constraint", fields...)
			return
		}
		logger.Error("persist failed", fields...)
		return
	}

	d.metrics.RecordPersist(res.String(), elapsed.Seconds(), time.Now().Unix())
	logger.Debug("event persisted",
		zap.String("fingerprint", job.Fingerprint),
		zap.String("signature", job.Event.Signature),
		zap.Stringer("result", res),
		zap.Duration("elapsed", elapsed))
}
