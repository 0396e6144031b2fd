package ir

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"
)

// ICE is an internal compiler error: the IR is malformed or a precondition of
// the running pass does not hold. An ICE is fatal for the current
// compilation and is never retried.
type ICE struct {
	// Message describes the violated invariant.
	Message string
	// Transform is the name of the pass that was running, if known.
	Transform string
	// Stack is the call stack at the point the error was raised.
	Stack stack.CallStack
}

// Error implements the error interface.
func (e *ICE) Error() string {
	caller := ""
	if len(e.Stack) > 0 {
		caller = fmt.Sprintf(" (at %+v)", e.Stack[0])
	}
	if e.Transform != "" {
		return fmt.Sprintf("internal compiler error in %s: %s%s", e.Transform, e.Message, caller)
	}
	return fmt.Sprintf("internal compiler error: %s%s", e.Message, caller)
}

// NewICE creates an ICE recording the caller of NewICE's caller.
func NewICE(format string, args ...any) *ICE {
	return &ICE{
		Message: fmt.Sprintf(format, args...),
		Stack:   stack.Trace().TrimBelow(stack.Caller(2)).TrimRuntime(),
	}
}

// Panicf raises an ICE. Builder contract violations and broken preconditions
// inside passes use it; Recover turns it back into an error at API
// boundaries.
func Panicf(format string, args ...any) {
	panic(NewICE(format, args...))
}

// Recover converts a panicking *ICE into an error stored in *err. Other
// panics are propagated. It must be called directly by a deferred statement.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	ice, ok := r.(*ICE)
	if !ok {
		panic(r)
	}
	*err = ice
}

// IsICE reports whether err is or wraps an internal compiler error.
func IsICE(err error) bool {
	var ice *ICE
	return errors.As(err, &ice)
}
