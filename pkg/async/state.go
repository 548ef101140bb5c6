package async

import "fmt"

// State is the lifecycle state of a Task.
type State int32

const (
	StateCreated    State = iota // built, Start not yet called
	StateRunning                 // background work in flight
	StateCancelling              // cancel requested, background work still running
	StateCompleted               // finished with a result
	StateCancelled               // cancelled or failed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateCancelling:
		return "Cancelling"
	case StateCompleted:
		return "Completed"
	case StateCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}
