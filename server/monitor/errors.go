package monitor

import (
	"errors"
	"fmt"
)

// Kind says how the process reacts to an error
type Kind int

const (
	KindRecoverable Kind = iota // Skip the rest of this cycle, and carry on with the next
	KindDegraded                // Carry on without the failed component
	KindFatal                   // Exit the process
)

func (k Kind) String() string {
	switch k {
	case KindRecoverable:
		return "recoverable"
	case KindDegraded:
		return "degraded"
	}
	return "fatal"
}

type Error struct {
	Kind Kind
	Op   string // eg "load image"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

func Degraded(op string, err error) error {
	return &Error{Kind: KindDegraded, Op: op, Err: err}
}

func Recoverable(op string, err error) error {
	return &Error{Kind: KindRecoverable, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
// Errors that we did not classify are treated as recoverable.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRecoverable
}
