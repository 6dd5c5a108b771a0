// ABOUTME: Typed errors shared by the admin pipeline and every transport binding
// ABOUTME: Maps error kinds to HTTP status codes and client-facing detail messages

package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for translation at the transport boundary.
type Kind int

const (
	// KindInternal is anything that is not one of the typed kinds below.
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	// KindConfiguration is a startup-time failure; it never reaches a client.
	KindConfiguration
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// InternalDetail is what clients see for untyped failures.
const InternalDetail = "Internal server error"

// Error is a classified error carrying a client-facing detail message.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Detail + ": " + e.Err.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap classifies err under kind with a client-facing detail.
func Wrap(kind Kind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// Unauthorized means no valid session or bad credentials.
func Unauthorized(detail string) error {
	return New(KindUnauthorized, detail)
}

// Forbidden means the user is known but may not perform the operation.
func Forbidden(detail string) error {
	return New(KindForbidden, detail)
}

// NotFound means the model, record or action does not exist.
func NotFound(detail string) error {
	return New(KindNotFound, detail)
}

// NotFoundf formats a NotFound detail.
func NotFoundf(format string, args ...any) error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Validation means the request was malformed or failed field validation.
func Validation(detail string) error {
	return New(KindValidation, detail)
}

// Validationf formats a Validation detail.
func Validationf(format string, args ...any) error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// Configuration reports an invalid registration or descriptor.
func Configuration(detail string) error {
	return New(KindConfiguration, detail)
}

// Configurationf formats a Configuration detail.
func Configurationf(format string, args ...any) error {
	return New(KindConfiguration, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// IsValidation reports whether err is a Validation error.
func IsValidation(err error) bool { return Is(err, KindValidation) }

// IsConfiguration reports whether err is a Configuration error.
func IsConfiguration(err error) bool { return Is(err, KindConfiguration) }

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the message safe to show a client.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal && e.Kind != KindConfiguration {
		return e.Detail
	}
	return InternalDetail
}
