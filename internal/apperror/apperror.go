// Package apperror defines the error taxonomy used across the attempt
// execution core, per spec.md §7. Components return *Error (or wrap one)
// rather than inventing ad-hoc sentinel errors per package, so any future
// transport layer can map a single Kind enum to HTTP-style status codes.
package apperror

import "fmt"

// Kind is a coarse error category, not a specific type.
type Kind string

const (
	NotFound     Kind = "not_found"
	BadRequest   Kind = "bad_request"
	Conflict     Kind = "conflict"
	Blocked      Kind = "blocked"
	Unauthorized Kind = "unauthorized"
	Transient    Kind = "transient"
	Fatal        Kind = "fatal"
)

// Error is the structured envelope described in spec.md §7:
// {success: false, message, error_data?}.
type Error struct {
	Kind    Kind
	Message string
	Data    map[string]any
	Inner   error
}

func (e *Error) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Inner)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping an inner error.
func Wrap(kind Kind, inner error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Inner: inner}
}

// WithData attaches structured error_data and returns the receiver for chaining.
func (e *Error) WithData(key string, value any) *Error {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, defaulting to Fatal for unrecognized errors.
func KindOf(err error) Kind {
	var ae *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			ae = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ae == nil {
		return Fatal
	}
	return ae.Kind
}

// StatusFor maps a Kind to the HTTP-style status code spec.md §7 calls for.
// The mapping is consulted by transport layers outside this module's scope.
func StatusFor(kind Kind) int {
	switch kind {
	case NotFound:
		return 404
	case BadRequest:
		return 400
	case Conflict:
		return 409
	case Blocked:
		return 409
	case Unauthorized:
		return 401
	case Transient, Fatal:
		return 500
	default:
		return 500
	}
}

// Envelope is the JSON shape returned to clients on failure.
type Envelope struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	ErrorData map[string]any `json:"error_data,omitempty"`
}

// ToEnvelope converts err into the structured failure envelope, extracting
// Data if err is (or wraps) an *Error.
func ToEnvelope(err error) Envelope {
	var ae *Error
	cur := err
	for cur != nil {
		if e, ok := cur.(*Error); ok {
			ae = e
			break
		}
		u, ok := cur.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cur = u.Unwrap()
	}
	if ae == nil {
		return Envelope{Success: false, Message: err.Error()}
	}
	return Envelope{Success: false, Message: ae.Message, ErrorData: ae.Data}
}
