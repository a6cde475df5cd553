package steps

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
)

// Inventory checks stock for every line item; the first unavailable item fails the step.
type Inventory struct {
	available ItemCheck
	log       *zap.Logger
}

func NewInventory(available ItemCheck, log *zap.Logger) *Inventory {
	return &Inventory{available: available, log: log}
}

func (i *Inventory) Run(ctx context.Context, o orders.Order) (bool, error) {
	for _, item := range o.Items {
		ok, err := i.available(ctx, item)
		if err != nil {
			return false, fmt.Errorf("inventory lookup %s: %w", item.ProductID, err)
		}
		if !ok {
			i.log.Warn("inventory shortage",
				zap.String("order_id", o.OrderID),
				zap.String("product_id", item.ProductID),
			)
			return false, nil
		}
	}
	i.log.Info("inventory check successful", zap.String("order_id", o.OrderID))
	return true, nil
}
