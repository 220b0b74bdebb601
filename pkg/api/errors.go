package api

import (
	"errors"
	"fmt"
)

// ErrBaseURL is returned when the configured base URL is unusable.
var ErrBaseURL = errors.New("api: invalid base URL")

// TransportError covers network failures, non-2xx statuses and unparsable
// bodies. It never carries a backend response code.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api: %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError reports a well-formed response whose code is not the
// success sentinel.
type RejectionError struct {
	Op   string
	Code Code
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("api: %s: rejected with code %s", e.Op, e.Code)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
