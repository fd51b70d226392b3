// Package apperr defines the error taxonomy shared by the billing core and
// the mapping from error kinds to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies an error for callers that need to react to it.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindExternalService Kind = "external_service"
	KindPersistence     Kind = "persistence"
	KindConsistency     Kind = "consistency"
)

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and message so package-level sentinels
// work with errors.Is even when wrapped with an Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == e.Msg && t.Op == ""
}

func Validation(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: what + " not found"}
}

func ExternalService(op string, err error) error {
	return &Error{Kind: KindExternalService, Op: op, Msg: "external service failed", Err: err}
}

func Persistence(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Msg: "write failed", Err: err}
}

func Consistency(op, format string, args ...interface{}) error {
	return &Error{Kind: KindConsistency, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err
// is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }

// HTTPStatus maps an error to the status code returned by handlers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP wraps err as an echo HTTP error. Server-side failures expose only
// their kind message; the cause stays in Internal for logging.
func ToHTTP(err error) *echo.HTTPError {
	status := HTTPStatus(err)
	if status < http.StatusInternalServerError {
		return echo.NewHTTPError(status, err.Error()).SetInternal(err)
	}
	var e *Error
	if !errors.As(err, &e) {
		return echo.NewHTTPError(status, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(status, e.Msg).SetInternal(err)
}
