// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package logger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/greekangels/cryptodigest/internal/testutil"
)

func TestLogfWriter(t *testing.T) {
	t.Parallel()

	var (
		logged  bool
		message string
	)
	logf := func(format string, args ...any) {
		logged = true
		message = fmt.Sprintf(format, args...)
	}
	Logf(logf).Write([]byte("hello"))
	testutil.AssertEqual(t, logged, true)
	testutil.AssertEqual(t, message, "hello")
}

func TestContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)
	ctx := Put(context.Background(), l)

	Get(ctx).Debug("hidden")
	Get(ctx).Info("shown", "key", "value")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug record leaked at info level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "key=value") {
		t.Fatalf("info record missing: %q", buf.String())
	}

	Get(ctx).Level.Set(slog.LevelDebug)
	Get(ctx).Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("debug record missing after level change: %q", buf.String())
	}

	// A context without a logger still yields a usable one.
	Get(context.Background()).Info("discarded")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		testutil.AssertEqual(t, ParseLevel(in), want)
	}
}

func TestSecret(t *testing.T) {
	t.Parallel()

	testutil.AssertEqual(t, Secret(""), "NOT SET")
	testutil.AssertEqual(t, Secret("short"), "***")
	testutil.AssertEqual(t, Secret("123456789:ABCDEFGHIJ"), "12345678...GHIJ")
}
