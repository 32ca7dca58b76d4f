// Package errors joins the stdlib error chain helpers with pkg/errors stack traces.
package errors

import (
	stderrors "errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

func New(text string) error {
	return stderrors.New(text)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// AsType is the generic form of As.
func AsType[T error](err error) (T, bool) {
	var target T
	ok := stderrors.As(err, &target)

	return target, ok
}

// Wrap annotates err with message and the caller's stack. A nil err stays nil.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...any) error {
	return pkgerrors.Wrapf(err, format, args...)
}

func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}

// Errorf formats a new error carrying the caller's stack.
func Errorf(format string, args ...any) error {
	return pkgerrors.Errorf(format, args...)
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Origin names the function and source line where the deepest stack in err's chain was
// recorded, or "" when no stack was captured.
func Origin(err error) string {
	var deepest pkgerrors.StackTrace
	for cur := err; cur != nil; cur = stderrors.Unwrap(cur) {
		if st, ok := cur.(stackTracer); ok && len(st.StackTrace()) > 0 {
			deepest = st.StackTrace()
		}
	}
	if len(deepest) == 0 {
		return ""
	}

	frame := deepest[0]

	return fmt.Sprintf("%n (%s:%d)", frame, frame, frame)
}
