// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package content

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrNoContent means the response carried no usable text.
var ErrNoContent = errors.New("response has no content")

// APIError is a non-2xx response from a content API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("content API returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("content API returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Kind is the class of a failed content request.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	KindTimeout
	KindTransport
	KindClientError
	KindServerError
	KindParseError
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindClientError:
		return "client error"
	case KindServerError:
		return "server error"
	case KindParseError:
		return "parse error"
	default:
		return "unknown"
	}
}

// Retryable reports whether a request failing this way may succeed when
// repeated.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindTransport, KindServerError:
		return true
	default:
		return false
	}
}

// Classify returns the Kind of err.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if apiErr, ok := errorsAs[*APIError](err); ok {
		switch {
		case apiErr.StatusCode >= 500:
			return KindServerError
		case apiErr.StatusCode == 408:
			return KindTimeout
		case apiErr.StatusCode >= 400:
			return KindClientError
		}
		return KindUnknown
	}
	if errors.Is(err, ErrNoContent) {
		return KindParseError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if netErr, ok := errorsAs[net.Error](err); ok && netErr.Timeout() {
		return KindTimeout
	}
	if _, ok := errorsAs[*net.OpError](err); ok {
		return KindTransport
	}
	if _, ok := errorsAs[*url.Error](err); ok {
		return KindTransport
	}
	if _, ok := errorsAs[*ParseError](err); ok {
		return KindParseError
	}
	return KindUnknown
}

// ParseError wraps a response body that could not be decoded.
type ParseError struct{ Err error }

func (e *ParseError) Error() string { return "decoding response: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// errorsAs is errors.As with a generic target.
func errorsAs[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}
