package consumer

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// Flusher drains queued side effects before the invocation returns.
type Flusher interface {
	Flush(ctx context.Context)
}

// Handler is the SQS Lambda entry point.
type Handler struct {
	consumer *Consumer
	sink     Flusher
	log      *zap.Logger
}

func NewHandler(consumer *Consumer, sink Flusher, log *zap.Logger) *Handler {
	return &Handler{consumer: consumer, sink: sink, log: log}
}

// HandleSQSEvent processes the batch and reports only retryable messages as
// batch item failures, so SQS redelivers those and deletes the rest.
func (h *Handler) HandleSQSEvent(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	h.log.Info("received SQS messages", zap.Int("count", len(event.Records)))

	msgs := make([]Message, 0, len(event.Records))
	for _, r := range event.Records {
		msgs = append(msgs, Message{MessageID: r.MessageId, Body: r.Body})
	}

	res := h.consumer.ProcessBatch(ctx, msgs)
	if h.sink != nil {
		h.sink.Flush(ctx)
	}

	var resp events.SQSEventResponse
	for _, id := range res.RetryMessageIDs() {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}
	if n := len(resp.BatchItemFailures); n > 0 {
		h.log.Warn("reporting batch item failures", zap.Int("count", n))
	}
	return resp, nil
}
