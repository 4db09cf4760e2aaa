package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionExpired is returned when a request was rejected as unauthorized
// and the session could not be renewed. Stored tokens have been cleared.
var ErrSessionExpired = errors.New("api: session expired")

// Error is a failure reported by the API, either as a non-2xx status or as an
// envelope with success=false.
type Error struct {
	Status  int    // HTTP status code
	Code    string // envelope "error" field
	Message string // envelope "message" field, optional
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, msg)
}

// IsStatus reports whether err is an *Error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
