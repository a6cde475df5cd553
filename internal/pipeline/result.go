package pipeline

import (
	"errors"
	"fmt"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
)

// Outcome classifies how one work item ended.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	// OutcomeCompleted: every step passed and the order is COMPLETED.
	OutcomeCompleted
	// OutcomeAlreadyProcessed: the idempotency gate found the order past PENDING.
	OutcomeAlreadyProcessed
	// OutcomeStepFailed: a business step failed; the order is FAILED.
	OutcomeStepFailed
	// OutcomeNotFound: no record exists for the order id.
	OutcomeNotFound
	// OutcomeFault: an unexpected fault outside the business steps.
	OutcomeFault
	// OutcomeRejected: the work item named an unsupported action.
	OutcomeRejected
	// OutcomeUndecodable: the message body could not be decoded.
	OutcomeUndecodable
)

var outcomeNames = map[Outcome]string{
	OutcomeCompleted:        "completed",
	OutcomeAlreadyProcessed: "already_processed",
	OutcomeStepFailed:       "step_failed",
	OutcomeNotFound:         "not_found",
	OutcomeFault:            "fault",
	OutcomeRejected:         "rejected",
	OutcomeUndecodable:      "undecodable",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Succeeded is true for outcomes reported as success to the batch.
func (o Outcome) Succeeded() bool {
	return o == OutcomeCompleted || o == OutcomeAlreadyProcessed
}

// Retryable reports whether the message is handed back to the queue.
// NotFound and Fault are transient and may succeed on redelivery. Rejected
// and Undecodable never will; they are handed back so the queue's receive
// limit moves them to the dead-letter queue for inspection. Business step
// failures are terminal and recorded on the order.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeNotFound, OutcomeFault, OutcomeRejected, OutcomeUndecodable:
		return true
	default:
		return false
	}
}

// Result is the outcome of processing one order.
type Result struct {
	OrderID    string
	Outcome    Outcome
	FailedStep orders.Status
	Err        error
}

// ErrPanic marks a recovered panic.
var ErrPanic = errors.New("order processing panicked")

// StepError is a business step failure. Cause is set for internal faults
// raised by the executor.
type StepError struct {
	Step  orders.Status
	Cause error
}

// Message is the errorMessage recorded on the order and in notifications.
func (e *StepError) Message() string {
	return fmt.Sprintf("Failed at %s", e.Step)
}

func (e *StepError) Error() string {
	if e.Cause == nil {
		return e.Message()
	}
	return fmt.Sprintf("%s: %v", e.Message(), e.Cause)
}

func (e *StepError) Unwrap() error { return e.Cause }
