package editor

import (
	"errors"
	"fmt"
)

// Errors returned by editor operations.
var (
	// ErrEditorUnavailable indicates no editor instance is connected.
	ErrEditorUnavailable = errors.New("editor unavailable")

	// ErrApplyRejected indicates the editor declined a representation.
	ErrApplyRejected = errors.New("representation rejected")

	// ErrReadFailed indicates a read failed or returned nothing.
	ErrReadFailed = errors.New("read failed")

	// ErrSubscriptionUnsupported indicates a notification strategy cannot
	// be used with this editor.
	ErrSubscriptionUnsupported = errors.New("subscription unsupported")
)

// OpError records a failed editor operation.
type OpError struct {
	Op     string // "apply", "read", "subscribe"
	Detail string // format, version or strategy name
	Err    error
}

func (e *OpError) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail != "" {
		return fmt.Sprintf("editor %s (%s): %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("editor %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
