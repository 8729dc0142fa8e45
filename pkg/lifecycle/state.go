// Package lifecycle drives a single task through verification, start and
// finish, and completes work orders with a customer signature.
package lifecycle

import "fmt"

type State int

const (
	AwaitingVerification State = iota
	Verified
	InProgress
	Completed
)

func (s State) String() string {
	switch s {
	case AwaitingVerification:
		return "awaiting verification"
	case Verified:
		return "verified"
	case InProgress:
		return "in progress"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type ValidationCode string

const (
	PhotoRequired     ValidationCode = "PhotoRequired"
	TasksIncomplete   ValidationCode = "TasksIncomplete"
	SignatureRequired ValidationCode = "SignatureRequired"
	OrderRequired     ValidationCode = "OrderRequired"
)

// ValidationError blocks a transition before anything is sent. Message is
// meant for the worker.
type ValidationError struct {
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func errPhotoRequired(action string) *ValidationError {
	return &ValidationError{Code: PhotoRequired, Message: fmt.Sprintf("a photo is required to %s the task", action)}
}

var (
	errTasksIncomplete = &ValidationError{
		Code:    TasksIncomplete,
		Message: "all tasks in this order must be completed first",
	}
	errSignatureRequired = &ValidationError{
		Code:    SignatureRequired,
		Message: "customer signature is required",
	}
	errOrderRequired = &ValidationError{
		Code:    OrderRequired,
		Message: "this task does not belong to an order",
	}
)

// TransitionError is returned when an action is not allowed from the
// current state.
type TransitionError struct {
	From   State
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a task that is %s", e.Action, e.From)
}
