package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
)

func wellFormed() orders.Order {
	return orders.Order{
		OrderID:     "o1",
		CustomerID:  "c1",
		Items:       []orders.Item{{ProductID: "X", Quantity: 1, UnitPrice: orders.MustAmount("10")}},
		TotalAmount: orders.MustAmount("10"),
		Status:      orders.StatusPending,
	}
}

type recordingSleeper struct {
	calls []time.Duration
	err   error
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return r.err
}

func TestValidator(t *testing.T) {
	v := NewValidator(zap.NewNop())
	ctx := context.Background()

	ok, err := v.Run(ctx, wellFormed())
	require.NoError(t, err)
	assert.True(t, ok)

	cases := map[string]func(o *orders.Order){
		"zero total":       func(o *orders.Order) { o.TotalAmount = orders.MustAmount("0") },
		"negative total":   func(o *orders.Order) { o.TotalAmount = orders.MustAmount("-5") },
		"missing total":    func(o *orders.Order) { o.TotalAmount = orders.Amount{} },
		"empty items":      func(o *orders.Order) { o.Items = []orders.Item{} },
		"nil items":        func(o *orders.Order) { o.Items = nil },
		"missing customer": func(o *orders.Order) { o.CustomerID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			o := wellFormed()
			mutate(&o)
			ok, err := v.Run(ctx, o)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestInventory(t *testing.T) {
	o := wellFormed()
	o.Items = append(o.Items, orders.Item{ProductID: "Y", Quantity: 2, UnitPrice: orders.MustAmount("1")})

	t.Run("all items available", func(t *testing.T) {
		inv := NewInventory(ItemFailureRate(0.1, func() float64 { return 0.5 }), zap.NewNop())
		ok, err := inv.Run(context.Background(), o)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("shortage on second item stops the check", func(t *testing.T) {
		var seen []string
		inv := NewInventory(func(_ context.Context, it orders.Item) (bool, error) {
			seen = append(seen, it.ProductID)
			return it.ProductID != "Y", nil
		}, zap.NewNop())
		ok, err := inv.Run(context.Background(), o)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []string{"X", "Y"}, seen)
	})

	t.Run("lookup fault is an error", func(t *testing.T) {
		inv := NewInventory(func(context.Context, orders.Item) (bool, error) {
			return false, errors.New("inventory service down")
		}, zap.NewNop())
		ok, err := inv.Run(context.Background(), o)
		assert.False(t, ok)
		assert.ErrorContains(t, err, "inventory service down")
	})
}

func TestPayment(t *testing.T) {
	t.Run("declined skips the gateway call", func(t *testing.T) {
		sl := &recordingSleeper{}
		p := NewPayment(Always(false), sl.Sleep, zap.NewNop())
		ok, err := p.Run(context.Background(), wellFormed())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, sl.calls)
	})

	t.Run("approved waits proportional to the total", func(t *testing.T) {
		sl := &recordingSleeper{}
		p := NewPayment(Always(true), sl.Sleep, zap.NewNop())
		ok, err := p.Run(context.Background(), wellFormed())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []time.Duration{10 * time.Millisecond}, sl.calls)
	})

	t.Run("interrupted gateway call is a fault", func(t *testing.T) {
		sl := &recordingSleeper{err: context.DeadlineExceeded}
		p := NewPayment(Always(true), sl.Sleep, zap.NewNop())
		ok, err := p.Run(context.Background(), wellFormed())
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestPaymentLatency(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, PaymentLatency(orders.MustAmount("10")))
	assert.Equal(t, 1500*time.Microsecond, PaymentLatency(orders.MustAmount("1.5")))
	assert.Equal(t, MaxPaymentLatency, PaymentLatency(orders.MustAmount("100000")))
	assert.Equal(t, time.Duration(0), PaymentLatency(orders.MustAmount("-1")))
}

func TestFulfillment(t *testing.T) {
	sl := &recordingSleeper{}
	f := NewFulfillment(sl.Sleep, zap.NewNop())

	ok, err := f.Run(context.Background(), wellFormed())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, sl.calls)

	assert.Equal(t, 300*time.Millisecond, FulfillmentLatency(3))
	assert.Equal(t, MaxFulfillmentLatency, FulfillmentLatency(25))

	sl.err = context.Canceled
	ok, err = f.Run(context.Background(), wellFormed())
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailureRate(t *testing.T) {
	o := wellFormed()
	assert.False(t, FailureRate(0.05, func() float64 { return 0.01 })(context.Background(), o))
	assert.True(t, FailureRate(0.05, func() float64 { return 0.05 })(context.Background(), o))
	assert.True(t, FailureRate(0, nil)(context.Background(), o))
}

func TestSleep_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestDefault_Order(t *testing.T) {
	pipeline := Default(Config{Sleep: NoSleep, Rand: func() float64 { return 0.99 }}, zap.NewNop())

	require.Len(t, pipeline, 4)
	want := []orders.Status{
		orders.StatusValidating,
		orders.StatusInventoryCheck,
		orders.StatusPaymentProcessing,
		orders.StatusFulfillment,
	}
	for i, st := range pipeline {
		assert.Equal(t, want[i], st.Status)
		ok, err := st.Run(context.Background(), wellFormed())
		require.NoError(t, err)
		assert.True(t, ok, st.Status.String())
	}
}
