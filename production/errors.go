/*
errors.go - Error types for work orders and the stage ledger

PURPOSE:
  Sentinel errors for errors.Is() plus a structured TransitionError that
  carries the order and stages involved. The API layer maps these to HTTP
  status codes with IsNotFound and IsClientError.

NOTE:
  Timing failures are never errors. A stage left without an entry record, a
  second commit of the same stage, or a calendar that cannot be loaded all
  degrade to zero or to the default calendar with a log line. Only misuse
  of the lifecycle surfaces here.
*/
package production

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOrderNotFound is returned when a referenced work order doesn't exist.
	ErrOrderNotFound = errors.New("work order not found")

	// ErrOrderConcluded is returned when trying to move a concluded order.
	ErrOrderConcluded = errors.New("work order is concluded")

	// ErrInvalidTransition is returned when the requested stage change makes
	// no sense (same stage, or no next stage in the sequence).
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrUnknownStage is returned for a stage identifier that isn't known.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrStageNotVisited is returned when assigning a worker to a stage the
	// order never entered.
	ErrStageNotVisited = errors.New("stage not visited")

	// ErrWorkerRequired is returned when assigning an empty worker name.
	ErrWorkerRequired = errors.New("worker name is required")

	// ErrInvalidOrder is returned when a work order fails validation.
	ErrInvalidOrder = errors.New("invalid work order")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// TransitionError details a rejected stage change.
type TransitionError struct {
	OrderID string
	From    Stage
	To      Stage
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: %s -> %s: %v", e.OrderID, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrStageNotVisited)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrOrderConcluded) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnknownStage) ||
		errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrWorkerRequired)
}
