package scraper

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when a detail call succeeds but carries no payload.
// It is an expected outcome: callers log it and skip the identifier.
var ErrNoData = errors.New("no data for opportunity")

// TransportError covers timeouts, connection failures and non-2xx statuses.
type TransportError struct {
	Op         string // "search" or "detail"
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is returned when a body is present but not the expected JSON.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("%s: decode: %v", e.Op, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// UpstreamError is a non-zero application-level error code from the search
// endpoint. It aborts discovery.
type UpstreamError struct {
	Code int
	Msg  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("grants.gov search2 error %d: %s", e.Code, e.Msg)
}
