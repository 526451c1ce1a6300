package httpclient

import (
	"errors"
	"fmt"
)

// ErrUpstreamTimeout is returned once every attempt has timed out.
var ErrUpstreamTimeout = errors.New("upstream timeout")

// UpstreamError is a non-2xx response from the remote side.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *UpstreamError) Retryable() bool {
	return retryableStatus(e.Status)
}

// UnexpectedError wraps anything that is neither an HTTP failure nor a timeout.
type UnexpectedError struct {
	Detail string
	Err    error
}

func (e *UnexpectedError) Error() string {
	return "unexpected error: " + e.Detail
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

const (
	KindOK       = "ok"
	KindUpstream = "upstream_error"
	KindTimeout  = "upstream_timeout"
	KindOther    = "unexpected"
)

// Kind names the failure class of err for logs and metrics.
func Kind(err error) string {
	var ue *UpstreamError
	switch {
	case err == nil:
		return KindOK
	case errors.As(err, &ue):
		return KindUpstream
	case errors.Is(err, ErrUpstreamTimeout):
		return KindTimeout
	}
	return KindOther
}

func retryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
