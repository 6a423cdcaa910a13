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
	"strings"
	"testing"
	"time"

	"github.com/greekangels/cryptodigest/internal/testutil"
)

var testNow = time.Date(2026, time.March, 9, 17, 0, 0, 0, time.UTC)

// scripted returns a Generator that replays results in order and records
// every request it receives.
func scripted(results ...func() (string, error)) (Generator, *[]Request) {
	var calls []Request
	return GeneratorFunc(func(_ context.Context, req Request) (string, error) {
		calls = append(calls, req)
		if len(calls) > len(results) {
			return "", errors.New("unexpected call")
		}
		return results[len(calls)-1]()
	}), &calls
}

func ok(s string) func() (string, error)   { return func() (string, error) { return s, nil } }
func fail(err error) func() (string, error) { return func() (string, error) { return "", err } }

type sleeps struct{ waits []time.Duration }

func (s *sleeps) sleep(_ context.Context, d time.Duration) bool {
	s.waits = append(s.waits, d)
	return true
}

func newFetcher(gen Generator, s *sleeps) *Fetcher {
	f := New(Config{Generator: gen, Model: "sonar", MaxTokens: 2000, Temperature: 0.3, TopP: 0.9})
	f.sleep = s.sleep
	return f
}

func TestFetchRetriesTimeouts(t *testing.T) {
	t.Parallel()

	gen, calls := scripted(
		fail(context.DeadlineExceeded),
		fail(fmt.Errorf("post: %w", context.DeadlineExceeded)),
		ok("Bitcoin is up 3%."),
	)
	s := new(sleeps)
	got, err := newFetcher(gen, s).Fetch(t.Context(), "Summarize.", testNow)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, "Bitcoin is up 3%.")
	testutil.AssertEqual(t, len(*calls), 3)
	testutil.AssertEqual(t, s.waits, []time.Duration{10 * time.Second, 20 * time.Second})
}

func TestFetchClientErrorIsDefinitive(t *testing.T) {
	t.Parallel()

	gen, calls := scripted(fail(&APIError{StatusCode: 401, Body: "unauthorized"}))
	s := new(sleeps)
	_, err := newFetcher(gen, s).Fetch(t.Context(), "Summarize.", testNow)

	ff := testutil.AssertErrorAs[*FetchFailure](t, err)
	testutil.AssertEqual(t, ff.Attempts, 1)
	testutil.AssertEqual(t, ff.Kind, KindClientError)
	testutil.AssertEqual(t, len(*calls), 1)
	testutil.AssertEqual(t, len(s.waits), 0)
}

func TestFetchParseErrorIsDefinitive(t *testing.T) {
	t.Parallel()

	gen, calls := scripted(ok("   "))
	_, err := newFetcher(gen, new(sleeps)).Fetch(t.Context(), "Summarize.", testNow)
	ff := testutil.AssertErrorAs[*FetchFailure](t, err)
	testutil.AssertEqual(t, ff.Kind, KindParseError)
	testutil.AssertErrorIs(t, err, ErrNoContent)
	testutil.AssertEqual(t, len(*calls), 1)
}

func TestFetchServerErrorsExhaust(t *testing.T) {
	t.Parallel()

	gen, calls := scripted(
		fail(&APIError{StatusCode: 503}),
		fail(&APIError{StatusCode: 502}),
		fail(&APIError{StatusCode: 500}),
	)
	s := new(sleeps)
	_, err := newFetcher(gen, s).Fetch(t.Context(), "Summarize.", testNow)

	ff := testutil.AssertErrorAs[*FetchFailure](t, err)
	testutil.AssertEqual(t, ff.Attempts, 3)
	testutil.AssertEqual(t, ff.Kind, KindServerError)
	testutil.AssertEqual(t, len(*calls), 3)
	testutil.AssertEqual(t, s.waits, []time.Duration{15 * time.Second, 30 * time.Second})
}

func TestFetchBackoffNeverDecreases(t *testing.T) {
	t.Parallel()

	gen, _ := scripted(
		fail(&APIError{StatusCode: 503}),
		fail(context.DeadlineExceeded),
		fail(&APIError{StatusCode: 500}),
		fail(context.DeadlineExceeded),
		ok("done"),
	)
	s := new(sleeps)
	f := New(Config{Generator: gen, MaxAttempts: 5, TimeoutBackoff: 10 * time.Second, ServerBackoff: 10 * time.Second})
	f.sleep = s.sleep
	if _, err := f.Fetch(t.Context(), "q", testNow); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(s.waits); i++ {
		if s.waits[i] < s.waits[i-1] {
			t.Fatalf("wait decreased: %v", s.waits)
		}
	}
}

func TestFetchBackoffWithUnequalSteps(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		results []func() (string, error)
		want    []time.Duration
	}{
		"timeout then server error": {
			results: []func() (string, error){fail(context.DeadlineExceeded), fail(&APIError{StatusCode: 503}), ok("done")},
			want:    []time.Duration{30 * time.Second, 30 * time.Second},
		},
		"server error then timeout": {
			results: []func() (string, error){fail(&APIError{StatusCode: 503}), fail(context.DeadlineExceeded), ok("done")},
			want:    []time.Duration{5 * time.Second, 60 * time.Second},
		},
		"timeout then server errors": {
			results: []func() (string, error){
				fail(context.DeadlineExceeded),
				fail(&APIError{StatusCode: 502}),
				fail(&APIError{StatusCode: 500}),
				fail(&APIError{StatusCode: 503}),
				fail(&APIError{StatusCode: 504}),
				fail(&APIError{StatusCode: 500}),
				fail(&APIError{StatusCode: 500}),
				ok("done"),
			},
			want: []time.Duration{
				30 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second,
				30 * time.Second, 30 * time.Second, 35 * time.Second,
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			gen, _ := scripted(tc.results...)
			s := new(sleeps)
			f := New(Config{Generator: gen, MaxAttempts: 10, TimeoutBackoff: 30 * time.Second, ServerBackoff: 5 * time.Second})
			f.sleep = s.sleep
			if _, err := f.Fetch(t.Context(), "q", testNow); err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, s.waits, tc.want)
		})
	}
}

func TestFetchCancelledDuringWait(t *testing.T) {
	t.Parallel()

	gen, calls := scripted(fail(context.DeadlineExceeded), ok("late"))
	f := New(Config{Generator: gen})
	f.sleep = func(context.Context, time.Duration) bool { return false }

	_, err := f.Fetch(t.Context(), "q", testNow)
	testutil.AssertErrorAs[*FetchFailure](t, err)
	testutil.AssertEqual(t, len(*calls), 1)
}

func TestFetchBuildsRequest(t *testing.T) {
	t.Parallel()

	gen, calls := scripted(ok("text"))
	f := newFetcher(gen, new(sleeps))
	f.c.Context = func(context.Context, time.Time) ([]string, error) {
		return []string{"ETF inflows hit record"}, nil
	}
	if _, err := f.Fetch(t.Context(), "Give me the market summary.", testNow); err != nil {
		t.Fatal(err)
	}

	req := (*calls)[0]
	testutil.AssertEqual(t, req.Model, "sonar")
	testutil.AssertEqual(t, req.MaxTokens, 2000)
	testutil.AssertEqual(t, req.System, SystemInstruction)
	if !strings.HasPrefix(req.Prompt, "Today's date is March 9, 2026. Give me the market summary.") {
		t.Fatalf("unexpected prompt: %q", req.Prompt)
	}
	if !strings.Contains(req.Prompt, "- ETF inflows hit record") {
		t.Fatalf("headlines missing from prompt: %q", req.Prompt)
	}
}

func TestFetchIgnoresContextFailure(t *testing.T) {
	t.Parallel()

	gen, calls := scripted(ok("text"))
	f := newFetcher(gen, new(sleeps))
	f.c.Context = func(context.Context, time.Time) ([]string, error) {
		return nil, errors.New("feed down")
	}
	if _, err := f.Fetch(t.Context(), "q", testNow); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, (*calls)[0].Prompt, "Today's date is March 9, 2026. q")
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  error
		want Kind
	}{
		"nil":        {nil, KindUnknown},
		"deadline":   {context.DeadlineExceeded, KindTimeout},
		"401":        {&APIError{StatusCode: 401}, KindClientError},
		"429":        {&APIError{StatusCode: 429}, KindClientError},
		"408":        {&APIError{StatusCode: 408}, KindTimeout},
		"503":        {fmt.Errorf("wrapped: %w", &APIError{StatusCode: 503}), KindServerError},
		"no content": {ErrNoContent, KindParseError},
		"parse":      {&ParseError{Err: errors.New("bad json")}, KindParseError},
		"refused": {&url.Error{Op: "Post", URL: "https://api", Err: &net.OpError{
			Op: "dial", Net: "tcp", Err: errors.New("connection refused"),
		}}, KindTransport},
		"canceled": {context.Canceled, KindUnknown},
		"other":    {errors.New("boom"), KindUnknown},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testutil.AssertEqual(t, Classify(tc.err), tc.want)
		})
	}
}
