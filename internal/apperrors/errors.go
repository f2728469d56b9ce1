// Package apperrors classifies failures so that the HTTP layer can map
// them onto a status code and a sanitized message.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the failure category.
type Kind int

const (
	// KindInternal is any failure that was not classified.
	KindInternal Kind = iota
	// KindValidation is malformed or out-of-range client input.
	KindValidation
	// KindConfiguration is a missing key or missing source document.
	KindConfiguration
	// KindRateLimit is a client over its request budget.
	KindRateLimit
	// KindData is a document that yields no usable text or chunks.
	KindData
	// KindUpstream is a failed call to the embedding or completion API.
	KindUpstream
	// KindNotFound is a search with no results.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindRateLimit:
		return "rate_limit"
	case KindData:
		return "data"
	case KindUpstream:
		return "upstream"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Status returns the default HTTP status for the kind. Upstream failures
// from the completion API are mapped by their own status instead; see
// the http package.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Message is safe to show to clients; Err
// carries the detail that only goes to logs.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.describe(), e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.describe(), e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.describe())
	default:
		return e.describe()
	}
}

func (e *Error) describe() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error without a cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err. It returns nil when err is nil.
func Wrap(kind Kind, op string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal.
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

// MessageOf returns the client-safe message of the outermost *Error, or "".
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
