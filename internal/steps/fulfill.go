package steps

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
)

const (
	fulfillmentPerItem    = 100 * time.Millisecond
	MaxFulfillmentLatency = time.Second
)

// Fulfillment prepares the order for shipping. It only fails when the
// underlying work is interrupted.
type Fulfillment struct {
	sleep Sleeper
	log   *zap.Logger
}

func NewFulfillment(sleep Sleeper, log *zap.Logger) *Fulfillment {
	return &Fulfillment{sleep: sleep, log: log}
}

// FulfillmentLatency is 100ms per line item, capped at MaxFulfillmentLatency.
func FulfillmentLatency(items int) time.Duration {
	d := time.Duration(items) * fulfillmentPerItem
	if d > MaxFulfillmentLatency {
		return MaxFulfillmentLatency
	}
	return d
}

func (f *Fulfillment) Run(ctx context.Context, o orders.Order) (bool, error) {
	if err := f.sleep(ctx, FulfillmentLatency(o.ItemCount())); err != nil {
		return false, fmt.Errorf("fulfillment: %w", err)
	}
	f.log.Info("order fulfilled successfully", zap.String("order_id", o.OrderID))
	return true, nil
}
