// Package pipeline drives an order from PENDING to a terminal status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/notify"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/steps"
)

// OrderStore is the part of the orders store the machine needs.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, key orders.Key, expected, next orders.Status, errorMessage string) error
}

// Notifier receives terminal order events. Implementations must not block on I/O.
type Notifier interface {
	Notify(ctx context.Context, e notify.Event)
}

// Machine sequences the business steps for one order at a time per order id.
type Machine struct {
	store     OrderStore
	steps     []steps.Step
	notifier  Notifier
	locks     *KeyedMutex
	stepDelay time.Duration
	sleep     steps.Sleeper
	log       *zap.Logger
}

type Option func(*Machine)

// WithStepDelay pauses between successful steps.
func WithStepDelay(d time.Duration) Option {
	return func(m *Machine) { m.stepDelay = d }
}

// WithSleeper replaces the sleeper used for the step delay.
func WithSleeper(s steps.Sleeper) Option {
	return func(m *Machine) { m.sleep = s }
}

func NewMachine(store OrderStore, pipeline []steps.Step, notifier Notifier, log *zap.Logger, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		steps:    pipeline,
		notifier: notifier,
		locks:    NewKeyedMutex(),
		sleep:    steps.Sleep,
		log:      log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// run tracks what this invocation knows about the stored record.
// uncertain is set after a failed write: the write may still have been
// applied, so persisted no longer reliably matches the stored status.
type run struct {
	key       orders.Key
	keyKnown  bool
	persisted orders.Status
	uncertain bool
}

// Process runs the order through the pipeline. It never panics and never
// returns a Go error; the Result carries the outcome.
func (m *Machine) Process(ctx context.Context, orderID string) (res Result) {
	log := m.log.With(zap.String("order_id", orderID))
	unlock := m.locks.Lock(orderID)
	defer unlock()

	var r run
	defer func() {
		if p := recover(); p != nil {
			msg := fmt.Sprint(p)
			log.Error("order processing panicked", zap.String("panic", msg))
			switch {
			case !r.keyKnown:
				log.Warn("order key unknown, skipping FAILED status update")
			case r.persisted.IsTerminal():
				log.Warn("order already terminal, keeping status", zap.Stringer("status", r.persisted))
			default:
				m.persist(ctx, log, &r, orders.StatusFailed, msg)
			}
			res = Result{OrderID: orderID, Outcome: OutcomeFault, Err: fmt.Errorf("%w: %s", ErrPanic, msg)}
		}
	}()

	order, err := m.store.Get(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		log.Error("order not found")
		return Result{OrderID: orderID, Outcome: OutcomeNotFound, Err: err}
	}
	if err != nil {
		log.Error("failed to load order", zap.Error(err))
		return Result{OrderID: orderID, Outcome: OutcomeFault, Err: err}
	}
	r = run{key: order.Key(), keyKnown: true, persisted: order.Status}

	// Idempotency gate: anything past PENDING was handled by an earlier delivery.
	if order.Status != orders.StatusPending {
		log.Info("order already processed", zap.Stringer("status", order.Status))
		return Result{OrderID: orderID, Outcome: OutcomeAlreadyProcessed}
	}

	current := orders.StatusPending
	for i, step := range m.steps {
		next, err := current.Transition(step.Status)
		if err != nil {
			return m.fail(ctx, log, &r, order, current, err)
		}

		log.Info("order step", zap.Stringer("status", step.Status))
		err = m.persist(ctx, log, &r, next, "")
		if i == 0 && errors.Is(err, orders.ErrStatusMismatch) {
			// Another delivery claimed PENDING between our read and write.
			log.Info("order claimed by another worker")
			return Result{OrderID: orderID, Outcome: OutcomeAlreadyProcessed}
		}
		current = next

		ok, stepErr := runStep(ctx, step, *order)
		if !ok || stepErr != nil {
			return m.fail(ctx, log, &r, order, step.Status, stepErr)
		}

		if m.stepDelay > 0 && i < len(m.steps)-1 {
			_ = m.sleep(ctx, m.stepDelay)
		}
	}

	if _, err := current.Transition(orders.StatusCompleted); err != nil {
		return m.fail(ctx, log, &r, order, current, err)
	}
	m.persist(ctx, log, &r, orders.StatusCompleted, "")
	log.Info("order completed successfully")
	m.notify(ctx, notify.Event{OrderID: orderID, Kind: notify.KindCompleted, Order: order})

	return Result{OrderID: orderID, Outcome: OutcomeCompleted}
}

// runStep executes one step; a panic inside the step is a step fault.
func runStep(ctx context.Context, step steps.Step, o orders.Order) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, fmt.Errorf("panic: %v", p)
		}
	}()
	return step.Run(ctx, o)
}

func (m *Machine) fail(ctx context.Context, log *zap.Logger, r *run, order *orders.Order, step orders.Status, cause error) Result {
	stepErr := &StepError{Step: step, Cause: cause}
	log.Error("order failed at step", zap.Stringer("step", step), zap.Error(cause))

	m.persist(ctx, log, r, orders.StatusFailed, stepErr.Message())
	m.notify(ctx, notify.Event{
		OrderID:      order.OrderID,
		Kind:         notify.KindFailed,
		Order:        order,
		ErrorMessage: stepErr.Message(),
	})
	return Result{OrderID: order.OrderID, Outcome: OutcomeStepFailed, FailedStep: step, Err: stepErr}
}

// persist writes a status transition guarded by the last status this run
// persisted. Once a write has failed the guard falls back to the store's
// not-terminal check, so FAILED and COMPLETED still land. Failures are
// logged and returned but never stop processing.
func (m *Machine) persist(ctx context.Context, log *zap.Logger, r *run, next orders.Status, errorMessage string) error {
	expected := r.persisted
	if r.uncertain {
		expected = orders.StatusUnknown
	}
	err := m.store.UpdateStatus(ctx, r.key, expected, next, errorMessage)
	if err != nil {
		log.Warn("failed to update order status",
			zap.Stringer("expected", expected),
			zap.Stringer("status", next),
			zap.Error(err),
		)
		r.uncertain = true
		return err
	}
	r.persisted = next
	r.uncertain = false
	return nil
}

func (m *Machine) notify(ctx context.Context, e notify.Event) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, e)
}
