// Package apperror defines the business error taxonomy shared by services and
// handlers. Errors carry a stable code so callers can branch with errors.Is
// regardless of the message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

const (
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeConflict          = "CONFLICT"
	CodeForbidden         = "FORBIDDEN"
)

// Error is a coded business error
type Error struct {
	Code    string
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

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "resource not found"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrInsufficientStock = &Error{Code: CodeInsufficientStock, Message: "insufficient stock"}
	ErrConflict          = &Error{Code: CodeConflict, Message: "conflict"}
	ErrForbidden         = &Error{Code: CodeForbidden, Message: "forbidden"}
)

// NotFound reports a missing entity, e.g. NotFound("raw material", id)
func NotFound(entity string, id any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStock names the item together with what was available and required
func InsufficientStock(name string, available, required decimal.Decimal, unit string) *Error {
	return &Error{
		Code: CodeInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for %s: available %s %s, required %s %s",
			name, available.String(), unit, required.String(), unit),
	}
}

// Wrap attaches a cause to a coded error
func Wrap(e *Error, err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// CodeOf returns the code of the first *Error in err's chain, or "" when there is none
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatus maps an error to the status code a handler should answer with
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusBadRequest
	case CodeInsufficientStock, CodeConflict:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
