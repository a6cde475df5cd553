package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// New returns a configured validator with the order struct-level rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(itemStructValidation, Item{})
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})
	return v
}

func itemStructValidation(sl validatorv10.StructLevel) {
	it := sl.Current().Interface().(Item)
	if !it.UnitPrice.IsPositive() {
		sl.ReportError(it.UnitPrice, "unitPrice", "UnitPrice", "gt", "0")
	}
}

// createOrderStructValidation checks that TotalAmount is positive and equals
// the sum of quantity * unitPrice over all items, exactly.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	if !req.TotalAmount.IsPositive() {
		sl.ReportError(req.TotalAmount, "totalAmount", "TotalAmount", "gt", "0")
		return
	}

	sum := decimal.Zero
	for _, it := range req.Items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if !sum.Equal(req.TotalAmount.Decimal) {
		sl.ReportError(req.TotalAmount, "totalAmount", "TotalAmount", "amount_match_items",
			fmt.Sprintf("items sum %s != total %s", sum.StringFixed(2), req.TotalAmount.StringFixed(2)))
	}
}
