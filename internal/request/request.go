// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package request provides utilities for making HTTP requests.
package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/greekangels/cryptodigest/internal/version"
)

// DefaultClient is a [http.Client] with nice defaults.
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
}

// DefaultMaxBytes limits the size of a response body read by [Fetch] when
// [Params.MaxBytes] is not set.
const DefaultMaxBytes = 20 << 20 // 20 MiB

// errorBodyLimit limits how much of an unsuccessful response body is kept in
// a [StatusError].
const errorBodyLimit = 16384

// ErrTooLarge is returned by [Fetch] when the response body exceeds the limit.
var ErrTooLarge = errors.New("response body too large")

// Params defines the parameters needed for making an HTTP request.
type Params struct {
	// Method is the HTTP method for the request. Defaults to GET.
	Method string
	// URL is the target URL of the request.
	URL string
	// Headers is a map of key-value pairs for additional request headers.
	Headers map[string]string
	// HTTPClient is an optional custom HTTP client object to use for the request.
	// If not provided, DefaultClient will be used.
	HTTPClient *http.Client
	// Scrubber is an optional strings.Replacer that scrubs unwanted data from
	// error messages.
	Scrubber *strings.Replacer
	// MaxBytes limits the size of the response body. Defaults to
	// DefaultMaxBytes.
	MaxBytes int64
}

// StatusError is returned when the server responds with a non-2xx status code.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("want 2xx, got %d: %s", e.StatusCode, e.Body)
}

type scrubbedError struct {
	err      error
	scrubber *strings.Replacer
}

func (se *scrubbedError) Error() string {
	if se.scrubber != nil {
		return se.scrubber.Replace(se.err.Error())
	}
	return se.err.Error()
}

func (se *scrubbedError) Unwrap() error { return se.err }

// Scrub wraps err so that its message is passed through scrubber. It returns
// nil if err is nil.
func Scrub(err error, scrubber *strings.Replacer) error {
	if err == nil {
		return nil
	}
	return &scrubbedError{err: err, scrubber: scrubber}
}

// Fetch makes an HTTP request with the provided parameters and returns the
// raw response body. Any non-2xx response is reported as a [*StatusError].
func Fetch(ctx context.Context, p Params) ([]byte, error) {
	method := p.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, p.URL, nil)
	if err != nil {
		return nil, Scrub(err, p.Scrubber)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	httpc := DefaultClient
	if p.HTTPClient != nil {
		httpc = p.HTTPClient
	}

	res, err := httpc.Do(req)
	if err != nil {
		return nil, Scrub(err, p.Scrubber)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
		return nil, Scrub(&StatusError{StatusCode: res.StatusCode, Body: body}, p.Scrubber)
	}

	limit := p.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, Scrub(err, p.Scrubber)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%s %q: %w (limit %d bytes)", method, p.URL, ErrTooLarge, limit)
	}
	return b, nil
}
