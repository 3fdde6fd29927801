// internal/errors/errors.go
package appErrors

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Code classifies an error the way callers are expected to react to it.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidArgument
	CodeUnavailable
	CodeNotFound
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeUnavailable:
		return "unavailable"
	case CodeNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified error. Err is optional.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidArgument(format string, args ...any) error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error, msg string) error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

func Unavailable(err error, msg string) error {
	return &Error{Code: CodeUnavailable, Message: msg, Err: err}
}

func NotFound(format string, args ...any) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// ErrCampaignNotFound is returned when no run is recorded for a campaign id.
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// QueryError wraps a failure of the user statistics executor.
type QueryError struct {
	Query string
	Code  Code
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("user stats query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// NewQueryError classifies executor failures: connection-level problems are
// Unavailable, anything else Internal.
func NewQueryError(query string, err error) *QueryError {
	code := CodeInternal
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		code = CodeUnavailable
	}
	return &QueryError{Query: query, Code: code, Err: err}
}

// CodeOf extracts the code of err. Unclassified errors are Internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	var nf *ErrCampaignNotFound
	if errors.As(err, &nf) {
		return CodeNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeUnavailable
	}
	return CodeInternal
}

// HTTPStatus maps the code of err to a response status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
