package orders

import "time"

// Item is one order line.
type Item struct {
	ProductID string `dynamodbav:"productId" json:"productId"`
	Name      string `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Quantity  int    `dynamodbav:"quantity" json:"quantity"`
	UnitPrice Amount `dynamodbav:"unitPrice" json:"unitPrice"`
}

// Address is a shipping or billing address block.
type Address struct {
	Street     string `dynamodbav:"street,omitempty" json:"street,omitempty"`
	City       string `dynamodbav:"city,omitempty" json:"city,omitempty"`
	State      string `dynamodbav:"state,omitempty" json:"state,omitempty"`
	PostalCode string `dynamodbav:"postalCode,omitempty" json:"postalCode,omitempty"`
	Country    string `dynamodbav:"country,omitempty" json:"country,omitempty"`
}

// Order represents the item stored in the orders table.
// (orderId, timestamp) is the composite primary key.
type Order struct {
	OrderID         string    `dynamodbav:"orderId" json:"orderId"`     // PK
	Timestamp       string    `dynamodbav:"timestamp" json:"timestamp"` // SK, creation instant
	CustomerID      string    `dynamodbav:"customerId" json:"customerId"`
	Items           []Item    `dynamodbav:"items" json:"items"`
	TotalAmount     Amount    `dynamodbav:"totalAmount" json:"totalAmount"`
	Status          Status    `dynamodbav:"status" json:"status"`
	CreatedAt       time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
	ErrorMessage    string    `dynamodbav:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CustomerEmail   string    `dynamodbav:"customerEmail,omitempty" json:"customerEmail,omitempty"`
	ShippingAddress *Address  `dynamodbav:"shippingAddress,omitempty" json:"shippingAddress,omitempty"`
	BillingAddress  *Address  `dynamodbav:"billingAddress,omitempty" json:"billingAddress,omitempty"`
}

// Key identifies one order record.
type Key struct {
	OrderID   string
	Timestamp string
}

func (o Order) Key() Key {
	return Key{OrderID: o.OrderID, Timestamp: o.Timestamp}
}

// ItemCount is the number of order lines.
func (o Order) ItemCount() int { return len(o.Items) }

// TimestampLayout formats the sort key.
const TimestampLayout = time.RFC3339Nano
