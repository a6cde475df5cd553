// Package notify delivers best-effort side effects of order processing:
// SNS notifications and CloudWatch batch metrics.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
)

// Kind is the order event being announced.
type Kind string

const (
	KindCompleted Kind = "COMPLETED"
	KindFailed    Kind = "FAILED"
)

// Event is one order notification.
type Event struct {
	OrderID      string
	Kind         Kind
	Order        *orders.Order // snapshot, optional
	ErrorMessage string
	At           time.Time
}

const timeLayout = "2006-01-02 15:04:05"

// Subject is the notification subject line.
func Subject(e Event) string {
	return fmt.Sprintf("eCommerce Order %s", e.Kind)
}

// Format renders the notification body.
func Format(e Event) string {
	customer := "Unknown"
	if e.Order != nil && e.Order.CustomerID != "" {
		customer = e.Order.CustomerID
	}
	at := e.At.UTC().Format(timeLayout)

	var b strings.Builder
	switch e.Kind {
	case KindCompleted:
		items, total := 0, "Unknown"
		if e.Order != nil {
			items = e.Order.ItemCount()
			total = e.Order.TotalAmount.StringFixed(2)
		}
		b.WriteString("✅ Order Completed!\n")
		fmt.Fprintf(&b, "Order ID: %s...\n", shortID(e.OrderID))
		fmt.Fprintf(&b, "Customer: %s\n", customer)
		fmt.Fprintf(&b, "Items: %d\n", items)
		fmt.Fprintf(&b, "Total: €%s\n", total)
		b.WriteString("Status: Ready for shipping\n")
		fmt.Fprintf(&b, "Completed: %s UTC", at)
	case KindFailed:
		b.WriteString("❌ Order Failed!\n")
		fmt.Fprintf(&b, "Order ID: %s...\n", shortID(e.OrderID))
		fmt.Fprintf(&b, "Customer: %s\n", customer)
		if e.ErrorMessage != "" {
			fmt.Fprintf(&b, "Reason: %s\n", e.ErrorMessage)
		}
		b.WriteString("Please contact customer service\n")
		fmt.Fprintf(&b, "Failed: %s UTC", at)
	default:
		fmt.Fprintf(&b, "Order %s... - %s", shortID(e.OrderID), e.Kind)
		if e.ErrorMessage != "" {
			fmt.Fprintf(&b, " (%s)", e.ErrorMessage)
		}
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
