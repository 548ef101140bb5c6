package async

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by a Func to signal a cooperative cancel.
// The task then ends in StateCancelled with a nil fault.
var ErrCancelled = errors.New("async: task cancelled")

// InvalidStateError reports an operation invoked in a state that forbids
// it, such as calling Start twice or publishing progress after the
// background function has returned.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("async: %s not allowed in state %s", e.Op, e.State)
}

// BackgroundFault wraps an unrecovered failure of the background
// function: either the error it returned or the value it panicked with.
// It is passed to the cancelled hook so the caller can tell a genuine
// cancellation (nil) from a fatal fault.
type BackgroundFault struct {
	Value any    // recovered panic value, nil if Err is set
	Err   error  // error returned by the background function
	Stack []byte // stack captured at recovery, nil unless panicked
}

func (f *BackgroundFault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("async: background fault: %v", f.Err)
	}
	return fmt.Sprintf("async: background panic: %v", f.Value)
}

func (f *BackgroundFault) Unwrap() error { return f.Err }
