// Package consumer turns queue batches into order pipeline runs.
package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ActionProcessOrder is the only action the pipeline accepts.
const ActionProcessOrder = "PROCESS_ORDER"

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrMissingOrderID = errors.New("missing orderId")
)

// WorkItem is the queue message body enqueued for every new order.
type WorkItem struct {
	OrderID   string `json:"orderId"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// Message is one queue delivery.
type Message struct {
	MessageID string
	Body      string
}

// Decode parses a message body. The returned item carries whatever orderId
// could be read even when the action is rejected.
func Decode(body string) (WorkItem, error) {
	var item WorkItem
	if err := json.Unmarshal([]byte(body), &item); err != nil {
		return WorkItem{}, fmt.Errorf("decode work item: %w", err)
	}
	item.OrderID = strings.TrimSpace(item.OrderID)
	if item.OrderID == "" {
		return item, ErrMissingOrderID
	}
	if item.Action != ActionProcessOrder {
		return item, fmt.Errorf("%w: %q", ErrUnknownAction, item.Action)
	}
	return item, nil
}
