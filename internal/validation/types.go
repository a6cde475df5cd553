package validation

import "github.com/imrishuroy/go-orderflow-pipeline/internal/orders"

// Item represents a single order line item.
type Item struct {
	ProductID string        `json:"productId" validate:"required"`
	Name      string        `json:"name" validate:"required"`
	Quantity  int           `json:"quantity" validate:"required,min=1"`
	UnitPrice orders.Amount `json:"unitPrice"` // checked in the struct-level rule
}

// Address is an optional shipping or billing address.
type Address struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
}

// CreateOrderRequest is the payload for POST /orders
type CreateOrderRequest struct {
	CustomerID      string        `json:"customerId" validate:"required"`
	CustomerEmail   string        `json:"customerEmail,omitempty" validate:"omitempty,email"`
	Items           []Item        `json:"items" validate:"required,min=1,dive"`
	TotalAmount     orders.Amount `json:"totalAmount"` // total the client claims
	ShippingAddress *Address      `json:"shippingAddress,omitempty"`
	BillingAddress  *Address      `json:"billingAddress,omitempty"`
}

// ToOrder maps the request onto a new order record.
func (r CreateOrderRequest) ToOrder(orderID string) orders.Order {
	items := make([]orders.Item, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, orders.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return orders.Order{
		OrderID:         orderID,
		CustomerID:      r.CustomerID,
		CustomerEmail:   r.CustomerEmail,
		Items:           items,
		TotalAmount:     r.TotalAmount,
		ShippingAddress: toAddress(r.ShippingAddress),
		BillingAddress:  toAddress(r.BillingAddress),
	}
}

func toAddress(a *Address) *orders.Address {
	if a == nil {
		return nil
	}
	return &orders.Address{
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
