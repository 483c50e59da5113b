package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// PanicError is the cause attached to errors built from a recovered panic.
// The stack stays on the cause so it is logged but never rendered in
// ToErrorResponse details.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (p *PanicError) Error() string {
	if err, ok := p.Value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", p.Value)
}

func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

// RecoverPanic turns a recover() value into a permanent internal error.
// A nil value yields nil.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}
	return ErrInternal.
		WithCause(&PanicError{Value: r, Stack: debug.Stack()}).
		WithDetail("panic", true).
		AsPermanent()
}

// Guard runs fn and reports a panic inside it as its error.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = RecoverPanic(r)
		}
	}()
	return fn()
}

// PanicStack returns the captured stack if err came from a panic.
func PanicStack(err error) string {
	var p *PanicError
	if errors.As(err, &p) {
		return string(p.Stack)
	}
	return ""
}
