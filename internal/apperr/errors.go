package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation           Kind = "validation"
	KindConflict             Kind = "conflict"
	KindServiceConfiguration Kind = "service_configuration"
	KindAuth                 Kind = "auth"
	KindForbidden            Kind = "forbidden"
	KindNetwork              Kind = "network"
	KindService              Kind = "service"
	KindPartialFailure       Kind = "partial_failure"
	KindRateLimited          Kind = "rate_limited"
	KindTimeout              Kind = "timeout"
	KindNotFound             Kind = "not_found"
)

// Error is the single error type crossing package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Status  int
	Err     error
	// Details is returned to the client as is.
	Details any
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the kind to the status used by the response envelope.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNetwork, KindService:
		return http.StatusBadGateway
	case KindPartialFailure:
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func Conflict(message string) *Error { return New(KindConflict, message) }

func ServiceConfiguration(message string, err error) *Error {
	return Wrap(KindServiceConfiguration, message, err)
}

func Auth(message string) *Error { return New(KindAuth, message) }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func Network(message string, err error) *Error { return Wrap(KindNetwork, message, err) }

// Service reports a non-2xx upstream reply; status is the upstream status.
func Service(message string, status int) *Error {
	return &Error{Kind: KindService, Message: message, Status: status}
}

func PartialFailure(message string, err error) *Error {
	return Wrap(KindPartialFailure, message, err)
}

func RateLimited(message string) *Error { return New(KindRateLimited, message) }

func Timeout(message string, err error) *Error { return Wrap(KindTimeout, message, err) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
