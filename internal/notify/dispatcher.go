package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type job struct {
	name    string
	fn      func(ctx context.Context) error
	barrier chan struct{}
}

// Dispatcher runs side-effect jobs on its own goroutine, away from the
// order-processing path. Jobs never share a context, an error path or a
// panic with their submitter. A full queue drops the job.
type Dispatcher struct {
	jobs    chan job
	timeout time.Duration
	log     *zap.Logger
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher with a bounded queue. Every job runs
// under a fresh context limited to timeout.
func NewDispatcher(queueSize int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{
		jobs:    make(chan job, queueSize),
		timeout: timeout,
		log:     log,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit enqueues fn without blocking. It reports false if the job was dropped.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("dispatcher closed, dropping side effect", zap.String("job", name))
		return false
	}
	select {
	case d.jobs <- job{name: name, fn: fn}:
		return true
	default:
		d.log.Warn("side-effect queue full, dropping job", zap.String("job", name))
		return false
	}
}

// Flush waits until every job submitted before the call has finished.
func (d *Dispatcher) Flush(ctx context.Context) error {
	barrier := make(chan struct{})

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil
	}
	select {
	case d.jobs <- job{barrier: barrier}:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.jobs {
		if j.barrier != nil {
			close(j.barrier)
			continue
		}
		d.execute(j)
	}
}

func (d *Dispatcher) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("side effect panicked", zap.String("job", j.name), zap.String("panic", fmt.Sprint(r)))
		}
	}()

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := j.fn(ctx); err != nil {
		d.log.Error("side effect failed", zap.String("job", j.name), zap.Error(err))
	}
}
