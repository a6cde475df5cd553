package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Publisher delivers one notification.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// MetricsPutter records one batch's counters.
type MetricsPutter interface {
	Put(ctx context.Context, succeeded, failed int) error
}

// Sink is the fire-and-forget front of the notification and metrics
// channels. Its methods never block on I/O and never fail.
type Sink struct {
	dispatcher *Dispatcher
	publisher  Publisher
	metrics    MetricsPutter
	nowFunc    func() time.Time
	log        *zap.Logger
}

func NewSink(dispatcher *Dispatcher, publisher Publisher, metrics MetricsPutter, log *zap.Logger) *Sink {
	return &Sink{
		dispatcher: dispatcher,
		publisher:  publisher,
		metrics:    metrics,
		nowFunc:    time.Now,
		log:        log,
	}
}

// Notify queues an order notification.
func (s *Sink) Notify(_ context.Context, e Event) {
	if s.publisher == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.nowFunc()
	}
	if e.Order != nil {
		snapshot := *e.Order
		e.Order = &snapshot
	}
	s.dispatcher.Submit("notify:"+e.OrderID, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, e)
	})
}

// ReportMetrics queues the batch counters.
func (s *Sink) ReportMetrics(_ context.Context, succeeded, failed int) {
	if s.metrics == nil {
		return
	}
	s.dispatcher.Submit("metrics", func(ctx context.Context) error {
		return s.metrics.Put(ctx, succeeded, failed)
	})
}

// Flush waits for queued side effects, bounded by ctx.
func (s *Sink) Flush(ctx context.Context) {
	if err := s.dispatcher.Flush(ctx); err != nil {
		s.log.Warn("side effects not flushed", zap.Error(err))
	}
}
