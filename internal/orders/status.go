package orders

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Status is the lifecycle state of an order. The set is closed: values
// outside the seven named states are rejected on construction and decoding.
//
//	PENDING -> VALIDATING -> INVENTORY_CHECK -> PAYMENT_PROCESSING -> FULFILLMENT -> COMPLETED
//	   \___________\_______________\__________________\___________________\_____-> FAILED
//
// COMPLETED and FAILED are terminal.
type Status uint8

const (
	// StatusUnknown is the zero value and never a valid order state.
	StatusUnknown Status = iota
	StatusPending
	StatusValidating
	StatusInventoryCheck
	StatusPaymentProcessing
	StatusFulfillment
	StatusCompleted
	StatusFailed
)

var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var statusNames = map[Status]string{
	StatusPending:           "PENDING",
	StatusValidating:        "VALIDATING",
	StatusInventoryCheck:    "INVENTORY_CHECK",
	StatusPaymentProcessing: "PAYMENT_PROCESSING",
	StatusFulfillment:       "FULFILLMENT",
	StatusCompleted:         "COMPLETED",
	StatusFailed:            "FAILED",
}

var statusByName = func() map[string]Status {
	m := make(map[string]Status, len(statusNames))
	for s, name := range statusNames {
		m[name] = s
	}
	return m
}()

// transitions lists the allowed successors of every non-terminal state.
var transitions = map[Status][]Status{
	StatusPending:           {StatusValidating, StatusFailed},
	StatusValidating:        {StatusInventoryCheck, StatusFailed},
	StatusInventoryCheck:    {StatusPaymentProcessing, StatusFailed},
	StatusPaymentProcessing: {StatusFulfillment, StatusFailed},
	StatusFulfillment:       {StatusCompleted, StatusFailed},
}

// ParseStatus converts the persisted form of a status. Unknown names are an error.
func ParseStatus(s string) (Status, error) {
	st, ok := statusByName[s]
	if !ok {
		return StatusUnknown, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// String returns the persisted name, or "UNKNOWN" for invalid values.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Validate reports whether s is one of the seven order states.
func (s Status) Validate() error {
	if _, ok := statusNames[s]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, s)
	}
	return nil
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether s -> to is an edge of the state machine.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns to if the move is allowed from s.
func (s Status) Transition(to Status) (Status, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, to)
	}
	return to, nil
}

func (s Status) MarshalText() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// MarshalDynamoDBAttributeValue stores the status as its name so the
// StatusIndex GSI can be queried by string.
func (s Status) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &types.AttributeValueMemberS{Value: s.String()}, nil
}

func (s *Status) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	v, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return fmt.Errorf("%w: unexpected attribute type %T", ErrInvalidStatus, av)
	}
	st, err := ParseStatus(v.Value)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
