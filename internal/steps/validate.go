package steps

import (
	"context"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
)

// Validator checks that an order carries the data the later steps need.
type Validator struct {
	log *zap.Logger
}

func NewValidator(log *zap.Logger) *Validator {
	return &Validator{log: log}
}

func (v *Validator) Run(_ context.Context, o orders.Order) (bool, error) {
	switch {
	case o.CustomerID == "":
		v.log.Warn("validation failed: missing customerId", zap.String("order_id", o.OrderID))
		return false, nil
	case len(o.Items) == 0:
		v.log.Warn("validation failed: no items in order", zap.String("order_id", o.OrderID))
		return false, nil
	case !o.TotalAmount.IsPositive():
		v.log.Warn("validation failed: invalid total amount",
			zap.String("order_id", o.OrderID),
			zap.String("total_amount", o.TotalAmount.String()),
		)
		return false, nil
	}
	v.log.Info("order validation successful", zap.String("order_id", o.OrderID))
	return true, nil
}
