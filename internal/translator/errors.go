package translator

import "github.com/pkg/errors"

// ErrorKind classifies why a request could not be answered.
type ErrorKind int

const (
	// MalformedBody means the request body is not valid JSON.
	MalformedBody ErrorKind = iota + 1
	// MissingField means the body lacks a string "input" field.
	MissingField
	// UnsupportedMethod means the request did not use POST.
	UnsupportedMethod
	// RouteMismatch means the request target is not the configured endpoint.
	RouteMismatch
	// EncodeFailure means the result could not be serialized.
	EncodeFailure
)

var messages = map[ErrorKind]string{
	MalformedBody:     "Not json input",
	MissingField:      "Invalid fields in json input",
	UnsupportedMethod: "Unknown HTTP-method",
	RouteMismatch:     "Wrong URI",
	EncodeFailure:     "Internal json error",
}

var names = map[ErrorKind]string{
	MalformedBody:     "malformed_body",
	MissingField:      "missing_field",
	UnsupportedMethod: "unsupported_method",
	RouteMismatch:     "route_mismatch",
	EncodeFailure:     "encode_failure",
}

// Message is the human readable text sent to the client.
func (k ErrorKind) Message() string {
	if msg, ok := messages[k]; ok {
		return msg
	}
	return "Bad request"
}

// String returns a short snake_case name, used in logs and metrics.
func (k ErrorKind) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return "unknown"
}

// Error is returned by Decode and carried by rejected responses.
type Error struct {
	Kind ErrorKind
}

func (e *Error) Error() string {
	return e.Kind.Message()
}

// KindOf extracts the ErrorKind of err, or 0 if err does not wrap an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
