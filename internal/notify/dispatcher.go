package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abhisek/jeseci/internal/gems"
)

// DispatcherConfig holds dispatcher settings.
type DispatcherConfig struct {
	Buffer      int           // queued effects before dropping
	Workers     int           // concurrent deliveries
	PushTimeout time.Duration // per-push deadline
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Buffer: 256, Workers: 2, PushTimeout: 5 * time.Second}
}

// Dispatcher queues side effects and delivers them to a Sink from a pool
// of workers. Enqueue never blocks.
type Dispatcher struct {
	sink    Sink
	cfg     DispatcherConfig
	logger  *slog.Logger
	queue   chan gems.SideEffect
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewDispatcher creates a dispatcher and starts its workers.
func NewDispatcher(sink Sink, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan gems.SideEffect, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// Enqueue queues effects for delivery. Effects that do not fit, or arrive
// after Close, are dropped.
func (d *Dispatcher) Enqueue(effects ...gems.SideEffect) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range effects {
		if d.closed {
			d.drop(e, "dispatcher closed")
			continue
		}
		select {
		case d.queue <- e:
		default:
			d.drop(e, "buffer full")
		}
	}
}

func (d *Dispatcher) drop(e gems.SideEffect, reason string) {
	d.dropped.Add(1)
	d.logger.Warn("dropped side effect",
		"learner", e.Learner,
		"kind", e.Kind,
		"sequence", e.Sequence,
		"reason", reason)
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for e := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PushTimeout)
		if err := d.sink.Push(ctx, e.Learner, e); err != nil {
			d.failed.Add(1)
			d.logger.Warn("side effect delivery failed",
				"worker_id", id,
				"learner", e.Learner,
				"kind", e.Kind,
				"error", err)
		}
		cancel()
	}
}

// Dropped returns the number of effects dropped so far.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Failed returns the number of deliveries the sink rejected.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

// Close stops accepting effects and waits for queued ones to be delivered
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
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
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
