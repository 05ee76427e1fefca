// Package apierror defines the error taxonomy shared by the stock engine,
// the order lifecycle and the HTTP layer. Expected business conditions
// (insufficient stock, illegal state transitions, duplicate idempotency keys)
// are returned as typed values so callers can branch on them; only genuinely
// exceptional conditions (store unreachable) travel as opaque wrapped errors.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for programmatic handling and HTTP mapping.
type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeInactive          Code = "inactive"
	CodeInsufficientStock Code = "insufficient_stock"
	CodeInvalidArgument   Code = "invalid_argument"
	CodeInvalidTransition Code = "invalid_transition"
	CodeContention        Code = "contention" // lock-wait timeout — retriable
	CodeConflict          Code = "conflict"   // duplicate unique key — idempotent-success path
	CodeInternal          Code = "internal"
)

// Error is the canonical domain error. Detail is safe for client display.
type Error struct {
	Code   Code   `json:"code"`
	Detail string `json:"detail"`
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// Retriable reports whether the caller may safely retry the operation.
func (e *Error) Retriable() bool { return e.Code == CodeContention }

// HTTPStatus maps the error code to the status the handler layer should write.
func (e *Error) HTTPStatus() int { return httpStatus(e.Code) }

func httpStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInactive, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeInsufficientStock, CodeInvalidTransition, CodeConflict:
		return http.StatusConflict
	case CodeContention:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, detail string) *Error { return &Error{Code: code, Detail: detail} }

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause for logging while keeping Detail client-safe.
func Wrap(code Code, detail string, cause error) *Error {
	return &Error{Code: code, Detail: detail, cause: cause}
}

func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Detail: what + " not found"}
}

func Inactive(what string) *Error {
	return &Error{Code: CodeInactive, Detail: what + " is inactive"}
}

func InvalidArgument(detail string) *Error {
	return &Error{Code: CodeInvalidArgument, Detail: detail}
}

func InvalidTransition(detail string) *Error {
	return &Error{Code: CodeInvalidTransition, Detail: detail}
}

func Contention(detail string, cause error) *Error {
	return &Error{Code: CodeContention, Detail: detail, cause: cause}
}

func Conflict(detail string) *Error {
	return &Error{Code: CodeConflict, Detail: detail}
}

// ShortfallItem describes one cart line that could not be reserved.
type ShortfallItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// InsufficientStockError carries the per-item shortfall so clients can
// correct their cart. It reports every failing line of a batch, not just
// the first one.
type InsufficientStockError struct {
	Items []ShortfallItem `json:"items"`
}

func (e *InsufficientStockError) Error() string {
	if len(e.Items) == 1 {
		it := e.Items[0]
		return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
			it.ProductName, it.Requested, it.Available)
	}
	return fmt.Sprintf("insufficient stock for %d items", len(e.Items))
}

// CodeOf extracts the taxonomy code from any error.
func CodeOf(err error) Code {
	var insuf *InsufficientStockError
	if errors.As(err, &insuf) {
		return CodeInsufficientStock
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code Code) bool { return CodeOf(err) == code }

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Code   Code            `json:"code,omitempty"`
	Detail string          `json:"detail"`
	Items  []ShortfallItem `json:"items,omitempty"`
}

func (e *APIError) HTTPStatus() int { return httpStatus(e.Code) }

// Envelope converts any error into the client-facing envelope. Errors outside
// the taxonomy collapse to a generic internal error so driver and provider
// messages never reach clients.
func Envelope(err error) *APIError {
	var insuf *InsufficientStockError
	if errors.As(err, &insuf) {
		return &APIError{Code: CodeInsufficientStock, Detail: insuf.Error(), Items: insuf.Items}
	}
	var e *Error
	if errors.As(err, &e) {
		return &APIError{Code: e.Code, Detail: e.Detail}
	}
	return &APIError{Code: CodeInternal, Detail: "internal server error"}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Fields: fields}
}
