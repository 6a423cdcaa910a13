// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package httplogger provides a http.RoundTripper middleware that logs
// outgoing HTTP requests and their outcome at debug level.
package httplogger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// New returns a http.RoundTripper that logs every request made through t.
// Each secret is replaced with "[EXPUNGED]" in logged URLs and errors.
func New(t http.RoundTripper, l *slog.Logger, secrets ...string) http.RoundTripper {
	if t == nil {
		t = http.DefaultTransport
	}
	var pairs []string
	for _, s := range secrets {
		if s != "" {
			pairs = append(pairs, s, "[EXPUNGED]")
		}
	}
	return &loggingTransport{
		transport: t,
		slog:      l,
		scrubber:  strings.NewReplacer(pairs...),
		now:       time.Now,
	}
}

type loggingTransport struct {
	transport http.RoundTripper
	slog      *slog.Logger
	scrubber  *strings.Replacer
	now       func() time.Time
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := t.now()
	url := t.scrubber.Replace(r.URL.String())
	t.slog.DebugContext(r.Context(), "http request", "method", r.Method, "url", url)

	resp, err := t.transport.RoundTrip(r)

	attrs := []any{
		"method", r.Method,
		"url", url,
		"duration", t.now().Sub(start).Round(time.Millisecond),
	}
	if resp != nil {
		attrs = append(attrs, "status", resp.StatusCode)
	}
	if err != nil {
		attrs = append(attrs, "err", t.scrubber.Replace(err.Error()))
	}
	t.slog.DebugContext(r.Context(), "http response", attrs...)

	return resp, err
}
