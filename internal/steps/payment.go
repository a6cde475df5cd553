package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
)

// MaxPaymentLatency caps the simulated gateway round trip.
const MaxPaymentLatency = 500 * time.Millisecond

// Payment charges the order total through a gateway decision.
type Payment struct {
	approve Decision
	sleep   Sleeper
	log     *zap.Logger
}

func NewPayment(approve Decision, sleep Sleeper, log *zap.Logger) *Payment {
	return &Payment{approve: approve, sleep: sleep, log: log}
}

// PaymentLatency is one millisecond per currency unit, capped at MaxPaymentLatency.
func PaymentLatency(total orders.Amount) time.Duration {
	ms := total.Decimal
	if ms.GreaterThan(decimal.NewFromInt(MaxPaymentLatency.Milliseconds())) {
		return MaxPaymentLatency
	}
	if !ms.IsPositive() {
		return 0
	}
	return time.Duration(ms.Mul(decimal.NewFromInt(int64(time.Millisecond))).IntPart())
}

func (p *Payment) Run(ctx context.Context, o orders.Order) (bool, error) {
	if !p.approve(ctx, o) {
		p.log.Warn("payment declined",
			zap.String("order_id", o.OrderID),
			zap.String("total_amount", o.TotalAmount.String()),
		)
		return false, nil
	}
	if err := p.sleep(ctx, PaymentLatency(o.TotalAmount)); err != nil {
		return false, fmt.Errorf("payment gateway: %w", err)
	}
	p.log.Info("payment processed successfully", zap.String("order_id", o.OrderID))
	return true, nil
}
