// Package steps holds the business steps an order passes through:
// validation, inventory, payment and fulfillment.
package steps

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
)

// Func runs one business step against an order snapshot. false is a
// business failure; a non-nil error is an unexpected internal fault.
type Func func(ctx context.Context, o orders.Order) (bool, error)

// Step pairs a step function with the status the order shows while it runs.
type Step struct {
	Status orders.Status
	Run    Func
}

// Sequence returns the four steps in pipeline order.
func Sequence(validate, checkInventory, processPayment, fulfill Func) []Step {
	return []Step{
		{Status: orders.StatusValidating, Run: validate},
		{Status: orders.StatusInventoryCheck, Run: checkInventory},
		{Status: orders.StatusPaymentProcessing, Run: processPayment},
		{Status: orders.StatusFulfillment, Run: fulfill},
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep skips simulated latency.
func NoSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// RandSource returns a value in [0, 1).
type RandSource func() float64

// Decision decides the outcome of an external call for a whole order.
type Decision func(ctx context.Context, o orders.Order) bool

// ItemCheck reports whether a single line item can be served.
type ItemCheck func(ctx context.Context, item orders.Item) (bool, error)

// Always returns a Decision with a fixed outcome.
func Always(ok bool) Decision {
	return func(context.Context, orders.Order) bool { return ok }
}

// FailureRate fails with probability rate, drawing from rnd.
func FailureRate(rate float64, rnd RandSource) Decision {
	if rnd == nil {
		rnd = rand.Float64
	}
	return func(context.Context, orders.Order) bool { return rnd() >= rate }
}

// ItemFailureRate is FailureRate per line item.
func ItemFailureRate(rate float64, rnd RandSource) ItemCheck {
	if rnd == nil {
		rnd = rand.Float64
	}
	return func(context.Context, orders.Item) (bool, error) { return rnd() >= rate, nil }
}

// Config tunes the default step implementations.
type Config struct {
	InventoryShortageRate float64
	PaymentDeclineRate    float64
	Rand                  RandSource
	Sleep                 Sleeper
}

// Default builds the production pipeline with simulated inventory and payment
// integrations. Real integrations replace the ItemCheck / Decision.
func Default(cfg Config, log *zap.Logger) []Step {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	v := NewValidator(log)
	inv := NewInventory(ItemFailureRate(cfg.InventoryShortageRate, cfg.Rand), log)
	pay := NewPayment(FailureRate(cfg.PaymentDeclineRate, cfg.Rand), sleep, log)
	ful := NewFulfillment(sleep, log)
	return Sequence(v.Run, inv.Run, pay.Run, ful.Run)
}
