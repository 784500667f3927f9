package powerfox

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed Powerfox call.
type ErrorKind string

const (
	KindInvalidCredentials  ErrorKind = "invalid_credentials"
	KindTransmissionRefused ErrorKind = "transmission_refused"
	KindRateLimited         ErrorKind = "rate_limited"
	KindHTTP                ErrorKind = "http"
	KindNetwork             ErrorKind = "network"
)

// Error is returned for every failed Powerfox call. Use errors.Is with the
// sentinel errors below or errors.As to get the status code.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

var (
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials, StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
	ErrTransmissionRefused = &Error{Kind: KindTransmissionRefused, StatusCode: http.StatusPreconditionFailed, Message: "Data transmission has been refused by the customer"}
	ErrRateLimited         = &Error{Kind: KindRateLimited, StatusCode: http.StatusTooManyRequests, Message: "Too many requests. Please wait and try again."}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// HTTPStatus is the status a caller of this service should see. Transport
// failures become 502.
func (e *Error) HTTPStatus() int {
	if e.Kind == KindNetwork || e.StatusCode == 0 {
		return http.StatusBadGateway
	}
	return e.StatusCode
}

// errorForStatus maps a non-200 vendor status to an Error.
func errorForStatus(code int) *Error {
	switch code {
	case http.StatusUnauthorized:
		return &Error{Kind: KindInvalidCredentials, StatusCode: code, Message: ErrInvalidCredentials.Message}
	case http.StatusPreconditionFailed:
		return &Error{Kind: KindTransmissionRefused, StatusCode: code, Message: ErrTransmissionRefused.Message}
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, StatusCode: code, Message: ErrRateLimited.Message}
	default:
		return &Error{Kind: KindHTTP, StatusCode: code, Message: fmt.Sprintf("API error: %d", code)}
	}
}
