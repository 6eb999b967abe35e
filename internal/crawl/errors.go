package crawl

import (
	"errors"
	"fmt"
)

// ErrQueueExhausted is returned when a stage pops from an empty work queue.
// Stage entry logic refills queues before they are popped, so seeing it means
// the listing or gallery produced no work.
var ErrQueueExhausted = errors.New("work queue exhausted")

// NetworkError reports a transport failure or an unexpected HTTP status.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("http status %d: %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError reports a page whose content could not be turned into work.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrorKind groups step failures for logs and metrics.
type ErrorKind string

// Failure groups.
const (
	KindQueueExhausted ErrorKind = "queue_exhausted"
	KindNetwork        ErrorKind = "network"
	KindParse          ErrorKind = "parse"
	KindOther          ErrorKind = "other"
)

// Classify maps a step error onto its ErrorKind.
func Classify(err error) ErrorKind {
	var netErr *NetworkError
	var parseErr *ParseError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQueueExhausted):
		return KindQueueExhausted
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &parseErr):
		return KindParse
	default:
		return KindOther
	}
}
