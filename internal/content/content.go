// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package content obtains the digest text from a hosted language model,
// retrying transient failures.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SystemInstruction is sent with every request.
const SystemInstruction = "You are a professional crypto news analyst. " +
	"Follow user instructions exactly regarding formatting, length, emojis, and hashtags. " +
	"Only report facts about the given day's market. " +
	"Do not mention images or any visual content in your response."

// Request is a single generation request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Generator produces text for a Request. Implementations return *APIError
// for HTTP failures and ErrNoContent when the response has no text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f(ctx, req).
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ContextFunc returns extra grounding lines appended to the prompt, such as
// recent headlines. Errors are logged and ignored.
type ContextFunc func(ctx context.Context, now time.Time) ([]string, error)

// Config configures a Fetcher.
type Config struct {
	Generator Generator
	Model     string
	// MaxTokens, Temperature and TopP are passed to the model as is.
	MaxTokens   int
	Temperature float64
	TopP        float64
	// Timeout bounds a single attempt. Zero means no per-attempt timeout.
	Timeout time.Duration
	// MaxAttempts defaults to 3.
	MaxAttempts int
	// TimeoutBackoff and ServerBackoff are multiplied by the attempt number
	// to get the wait after a timeout and a 5xx response. They default to
	// 10s and 15s.
	TimeoutBackoff time.Duration
	ServerBackoff  time.Duration
	Context        ContextFunc
	Logger         *slog.Logger
}

// Fetcher retrieves digest content.
type Fetcher struct {
	c     Config
	sleep func(context.Context, time.Duration) bool
}

// New returns a Fetcher for c.
func New(c Config) *Fetcher {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.TimeoutBackoff <= 0 {
		c.TimeoutBackoff = 10 * time.Second
	}
	if c.ServerBackoff <= 0 {
		c.ServerBackoff = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{c: c, sleep: sleep}
}

// FetchFailure is returned when no content could be obtained.
type FetchFailure struct {
	Attempts int
	Kind     Kind
	Err      error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetching content failed after %d attempt(s) (%s): %v", e.Attempts, e.Kind, e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// Fetch asks the model to answer prompt for the day of now. Timeouts,
// transport errors and 5xx responses are retried with a growing wait; any
// other failure is returned at once.
func (f *Fetcher) Fetch(ctx context.Context, prompt string, now time.Time) (string, error) {
	req := Request{
		Model:       f.c.Model,
		System:      SystemInstruction,
		Prompt:      f.userPrompt(ctx, prompt, now),
		MaxTokens:   f.c.MaxTokens,
		Temperature: f.c.Temperature,
		TopP:        f.c.TopP,
	}

	var (
		lastErr  error
		lastKind Kind
		lastWait time.Duration
	)
	for attempt := 1; attempt <= f.c.MaxAttempts; attempt++ {
		f.c.Logger.Debug("requesting content", "attempt", attempt, "model", req.Model)

		text, err := f.generate(ctx, req)
		if err == nil {
			f.c.Logger.Info("content received", "attempt", attempt, "chars", len([]rune(text)))
			return text, nil
		}

		lastErr, lastKind = err, Classify(err)
		if ctx.Err() != nil {
			return "", &FetchFailure{Attempts: attempt, Kind: lastKind, Err: ctx.Err()}
		}
		if !lastKind.Retryable() {
			f.c.Logger.Error("content request failed", "attempt", attempt, "kind", lastKind, "err", err)
			return "", &FetchFailure{Attempts: attempt, Kind: lastKind, Err: err}
		}
		if attempt == f.c.MaxAttempts {
			break
		}

		wait := max(lastWait, f.backoff(lastKind, attempt))
		lastWait = wait
		f.c.Logger.Warn("content request failed, retrying", "attempt", attempt, "kind", lastKind, "wait", wait, "err", err)
		if !f.sleep(ctx, wait) {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return "", &FetchFailure{Attempts: attempt, Kind: lastKind, Err: err}
		}
	}
	f.c.Logger.Error("content request failed, giving up", "attempts", f.c.MaxAttempts, "kind", lastKind, "err", lastErr)
	return "", &FetchFailure{Attempts: f.c.MaxAttempts, Kind: lastKind, Err: lastErr}
}

func (f *Fetcher) generate(ctx context.Context, req Request) (string, error) {
	if f.c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.c.Timeout)
		defer cancel()
	}
	text, err := f.c.Generator.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// backoff returns the wait after a failed attempt of the given kind. Fetch
// never waits less than it did after the previous attempt.
func (f *Fetcher) backoff(kind Kind, attempt int) time.Duration {
	if kind == KindServerError {
		return time.Duration(attempt) * f.c.ServerBackoff
	}
	return time.Duration(attempt) * f.c.TimeoutBackoff
}

func (f *Fetcher) userPrompt(ctx context.Context, prompt string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("Today's date is " + now.UTC().Format("January 2, 2006") + ". ")
	sb.WriteString(prompt)

	if f.c.Context == nil {
		return sb.String()
	}
	lines, err := f.c.Context(ctx, now)
	if err != nil {
		f.c.Logger.Warn("fetching prompt context failed, continuing without it", "err", err)
		return sb.String()
	}
	if len(lines) > 0 {
		sb.WriteString("\n\nRecent headlines for reference:\n")
		for _, l := range lines {
			sb.WriteString("- " + l + "\n")
		}
	}
	return sb.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
