package consumer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/pipeline"
)

// Processor runs one order through the pipeline.
type Processor interface {
	Process(ctx context.Context, orderID string) pipeline.Result
}

// MetricsReporter receives the per-batch counters.
type MetricsReporter interface {
	ReportMetrics(ctx context.Context, succeeded, failed int)
}

// ItemResult is the outcome for one message of a batch.
type ItemResult struct {
	MessageID string
	OrderID   string
	Result    pipeline.Result
}

// Key identifies the item in the batch summary: the order id when it could
// be read, the message id otherwise.
func (r ItemResult) Key() string {
	if r.OrderID != "" {
		return r.OrderID
	}
	return r.MessageID
}

// BatchResult holds one ItemResult per message, in message order.
type BatchResult struct {
	Items []ItemResult
}

// Succeeded returns the de-duplicated order ids that succeeded.
func (b BatchResult) Succeeded() []string {
	return b.keys(func(r ItemResult) bool { return r.Result.Outcome.Succeeded() })
}

// Failed returns the de-duplicated keys of the items that failed.
func (b BatchResult) Failed() []string {
	return b.keys(func(r ItemResult) bool { return !r.Result.Outcome.Succeeded() })
}

// RetryMessageIDs returns the message ids worth redelivering.
func (b BatchResult) RetryMessageIDs() []string {
	var ids []string
	for _, r := range b.Items {
		if r.Result.Outcome.Retryable() && r.MessageID != "" {
			ids = append(ids, r.MessageID)
		}
	}
	return ids
}

func (b BatchResult) counts() (succeeded, failed int) {
	for _, r := range b.Items {
		if r.Result.Outcome.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

func (b BatchResult) keys(match func(ItemResult) bool) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range b.Items {
		if !match(r) {
			continue
		}
		k := r.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

type Consumer struct {
	processor   Processor
	metrics     MetricsReporter
	concurrency int
	log         *zap.Logger
}

// NewConsumer builds a Consumer. concurrency below 1 means sequential.
func NewConsumer(processor Processor, metrics MetricsReporter, concurrency int, log *zap.Logger) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consumer{
		processor:   processor,
		metrics:     metrics,
		concurrency: concurrency,
		log:         log,
	}
}

// ProcessBatch handles every message independently. A failure in one
// message never affects the others.
func (c *Consumer) ProcessBatch(ctx context.Context, msgs []Message) BatchResult {
	c.log.Info("processing batch", zap.Int("messages", len(msgs)))

	items := make([]ItemResult, len(msgs))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, msg := range msgs {
		g.Go(func() error {
			items[i] = c.processOne(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Items: items}
	succeeded, failed := res.counts()
	c.log.Info("batch processed",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)
	if c.metrics != nil {
		c.metrics.ReportMetrics(ctx, succeeded, failed)
	}
	return res
}

func (c *Consumer) processOne(ctx context.Context, msg Message) (out ItemResult) {
	log := c.log.With(zap.String("message_id", msg.MessageID))
	out.MessageID = msg.MessageID

	defer func() {
		if p := recover(); p != nil {
			log.Error("message dispatch panicked", zap.Any("panic", p))
			out.Result = pipeline.Result{
				OrderID: out.OrderID,
				Outcome: pipeline.OutcomeFault,
				Err:     fmt.Errorf("%w: %v", pipeline.ErrPanic, p),
			}
		}
	}()

	item, err := Decode(msg.Body)
	out.OrderID = item.OrderID
	switch {
	case errors.Is(err, ErrUnknownAction):
		log.Warn("unknown action", zap.String("order_id", item.OrderID), zap.String("action", item.Action))
		out.Result = pipeline.Result{OrderID: item.OrderID, Outcome: pipeline.OutcomeRejected, Err: err}
		return out
	case err != nil:
		log.Error("failed to decode message", zap.Error(err))
		out.Result = pipeline.Result{OrderID: item.OrderID, Outcome: pipeline.OutcomeUndecodable, Err: err}
		return out
	}

	out.Result = c.processor.Process(ctx, item.OrderID)
	log.Info("order processed",
		zap.String("order_id", item.OrderID),
		zap.Stringer("outcome", out.Result.Outcome),
	)
	return out
}
