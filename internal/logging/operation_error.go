package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/menta2k/vision-overlay/pkg/types"
)

// OperationError ties a failure to the controller operation and the
// detector invocation it came from.
type OperationError struct {
	Operation    string
	InvocationID string
	Err          error
}

// NewOperationError wraps an error with the operation it occurred in.
func NewOperationError(operation, invocationID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, InvocationID: invocationID, Err: err}
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.InvocationID != "" {
		return fmt.Sprintf("%s (invocation_id=%s): %v", e.Operation, e.InvocationID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind returns the error kind of the wrapped failure (see types.KindOf).
func (e *OperationError) Kind() error {
	if e == nil {
		return nil
	}
	return types.KindOf(e.Err)
}

// MarshalLogObject lets the error be logged with zap.Object.
func (e *OperationError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("operation", e.Operation)
	if e.InvocationID != "" {
		enc.AddString("invocation_id", e.InvocationID)
	}
	if kind := e.Kind(); kind != nil {
		enc.AddString("kind", kind.Error())
	}
	if e.Err != nil {
		enc.AddString("cause", e.Err.Error())
	}
	return nil
}
