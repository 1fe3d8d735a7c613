package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for HTTP mapping, logging and webhook retries.
type Code string

// Request codes: the caller sent something this service will never accept.
const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeSignature    Code = "SIGNATURE_INVALID"
)

// CodeStateConflict means the order's lifecycle forbids the operation, such
// as resubmitting an order that already has a provider id.
const CodeStateConflict Code = "STATE_CONFLICT"

// Codes a webhook sender should retry: the same delivery may succeed later.
const (
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
	CodeGatewayRejected    Code = "GATEWAY_REJECTED"
	CodeGatewayUnavailable Code = "GATEWAY_UNAVAILABLE"
)

// Metadata is the fixed policy attached to a Code.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:         {http.StatusBadRequest, false, "validation failed", true},
	CodeUnauthorized:       {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:          {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:           {http.StatusNotFound, false, "resource not found", false},
	CodeSignature:          {http.StatusBadRequest, false, "signature verification failed", false},
	CodeStateConflict:      {http.StatusUnprocessableEntity, false, "order state does not allow this operation", true},
	CodeInternal:           {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:         {http.StatusServiceUnavailable, true, "dependency unavailable", true},
	CodeGatewayRejected:    {http.StatusBadGateway, true, "provider rejected the request", true},
	CodeGatewayUnavailable: {http.StatusServiceUnavailable, true, "provider unavailable", false},
}

// MetadataFor falls back to the internal policy for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error carries a Code, a caller-safe message, optional details and the
// underlying cause.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// Error includes the cause so log lines keep the driver or provider text;
// the HTTP layer only ever shows Message.
func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	return As(err).Code()
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
