package rest

import (
	"fmt"
	"net/http"
)

// Error is a failed request: the HTTP status and the plain-text message sent
// back to the client.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func errBadRequest(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func errNotFound(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

func errInternal(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: fmt.Sprintf(format, args...)}
}

func errUnavailable(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Message: fmt.Sprintf(format, args...)}
}

func errFormatNotFound(formats string) *Error {
	return errNotFound("output format not found (available: %s)", formats)
}
