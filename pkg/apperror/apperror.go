package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the stable, client-facing identifier of a failure class.
type Code string

const (
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeInvalidState         Code = "INVALID_STATE"
	CodeAlreadyAccepted      Code = "ALREADY_ACCEPTED"
	CodeOverRelease          Code = "OVER_RELEASE"
	CodeProcessorUnavailable Code = "PROCESSOR_UNAVAILABLE"
	CodeProcessorRejected    Code = "PROCESSOR_REJECTED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeForbidden            Code = "FORBIDDEN"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeConflict             Code = "CONFLICT"
	CodeInternal             Code = "INTERNAL"
)

// Error carries a stable code next to the human readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidInput         = &Error{Code: CodeInvalidInput}
	ErrInvalidState         = &Error{Code: CodeInvalidState}
	ErrAlreadyAccepted      = &Error{Code: CodeAlreadyAccepted}
	ErrOverRelease          = &Error{Code: CodeOverRelease}
	ErrProcessorUnavailable = &Error{Code: CodeProcessorUnavailable}
	ErrProcessorRejected    = &Error{Code: CodeProcessorRejected}
	ErrNotFound             = &Error{Code: CodeNotFound}
	ErrForbidden            = &Error{Code: CodeForbidden}
	ErrUnauthorized         = &Error{Code: CodeUnauthorized}
	ErrConflict             = &Error{Code: CodeConflict}
)

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func InvalidInput(format string, args ...any) *Error {
	return New(CodeInvalidInput, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(CodeInvalidState, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(CodeForbidden, format, args...)
}

// CodeOf returns the code of the outermost *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the message meant for clients. Internal errors never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Code)
	}
	return "Internal server error"
}

// Retryable reports whether the same low-level call may be attempted again.
func Retryable(err error) bool {
	return CodeOf(err) == CodeProcessorUnavailable
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeAlreadyAccepted, CodeOverRelease, CodeConflict:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeProcessorRejected:
		return http.StatusPaymentRequired
	case CodeProcessorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
