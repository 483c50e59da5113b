package audit

import (
	"context"
	"sync"
	"time"

	"picoyplaca/internal/config"
	"picoyplaca/internal/logger"
	"picoyplaca/pkg/metrics"
	"picoyplaca/pkg/retry"
)

// Sink persists audit records somewhere.
type Sink interface {
	Name() string
	Write(ctx context.Context, r Record) error
}

// Recorder accepts audit records without blocking the caller and fans them
// out to every configured sink from a fixed pool of workers. Records that
// arrive while the queue is full are dropped.
type Recorder struct {
	sinks       []Sink
	queue       chan Record
	workers     int
	policy      retry.Policy
	serviceName string
	logger      logger.Logger
	now         func() time.Time

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

func NewRecorder(cfg config.AuditConfig, serviceName string, log logger.Logger, sinks ...Sink) *Recorder {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Recorder{
		sinks:   sinks,
		queue:   make(chan Record, queueSize),
		workers: workers,
		policy: retry.Policy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			Multiplier:      cfg.Retry.Multiplier,
			MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
		},
		serviceName: serviceName,
		logger:      log.With("component", "audit_recorder"),
		now:         time.Now,
	}
}

// Start launches the workers. They keep writing until Close closes the
// queue, even after ctx is done: handlers still finishing during shutdown
// record after the run context is cancelled. ctx only carries values.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.run(ctx)
	}
}

// Record enqueues rec. It never blocks and never fails the caller.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if r == nil || len(r.sinks) == 0 {
		return
	}
	rec = rec.withDefaults(r.now())

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		metrics.AuditDroppedTotal.Inc()
		return
	}

	select {
	case r.queue <- rec:
		metrics.AuditQueueSize.Set(float64(len(r.queue)))
	default:
		metrics.AuditDroppedTotal.Inc()
		r.logger.WarnwCtx(ctx, "Audit queue full, dropping record",
			"record_id", rec.ID,
			"endpoint", rec.Endpoint,
		)
	}
}

// Close stops accepting records and waits until every queued record has
// been handed to the sinks, or ctx expires.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	started := r.started
	r.mu.Unlock()

	if !started {
		// no workers to hand the backlog to
		for rec := range r.queue {
			r.write(context.WithoutCancel(ctx), rec)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()

	ctx = context.WithoutCancel(ctx)
	for rec := range r.queue {
		metrics.AuditQueueSize.Set(float64(len(r.queue)))
		r.write(ctx, rec)
	}
}

func (r *Recorder) write(ctx context.Context, rec Record) {
	for _, sink := range r.sinks {
		sink := sink
		err := retry.RetryWithCallback(ctx, r.policy, func() error {
			return sink.Write(ctx, rec)
		}, func(attempt int, err error, next time.Duration) {
			metrics.RetryAttemptsTotal.WithLabelValues(r.serviceName, sink.Name()).Inc()
			r.logger.Debugw("Retrying audit write",
				"sink", sink.Name(),
				"attempt", attempt,
				"next_delay", next,
				"error", err,
			)
		})

		if err != nil {
			metrics.IncAuditRecord(sink.Name(), "error")
			r.logger.Errorw("Failed to write audit record",
				"sink", sink.Name(),
				"record_id", rec.ID,
				"error", err,
			)
			continue
		}
		metrics.IncAuditRecord(sink.Name(), "ok")
	}
}
