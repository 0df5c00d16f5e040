package client

import (
	"errors"
	"strings"
)

const errorSuffix = "Please check inputs or contact your site administrator."

// AMSError is the error type for failures raised while talking to an AMS
// instance: authentication failures, unexpected status codes, and responses
// whose shape does not match the requested operation.
type AMSError struct {
	// Parts are the context fragments joined into the message, outermost
	// first.
	Parts []string
	// Err is the underlying cause, when one exists.
	Err error
}

// NewError builds an AMSError from message fragments.
func NewError(parts ...string) *AMSError {
	return &AMSError{Parts: parts}
}

// WrapError builds an AMSError around a cause.
func WrapError(err error, parts ...string) *AMSError {
	return &AMSError{Parts: parts, Err: err}
}

func (e *AMSError) Error() string {
	parts := e.Parts
	if e.Err != nil {
		parts = append(append([]string{}, parts...), e.Err.Error())
	}
	msg := strings.Join(parts, " - ")
	if msg == "" {
		msg = "request failed"
	}
	return msg + ". " + errorSuffix
}

func (e *AMSError) Unwrap() error { return e.Err }

// IsAMSError reports whether err is, or wraps, an AMSError.
func IsAMSError(err error) bool {
	var ae *AMSError
	return errors.As(err, &ae)
}
