// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package delivery sends a digest to every subscribed chat.
//
// For each destination the image is sent with the digest as caption. If that
// fails, the caption alone is sent as a text message. Destinations are
// processed one after another with a fixed pause between them, and a failure
// at one destination never stops the others.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/greekangels/cryptodigest/internal/config"
	"github.com/greekangels/cryptodigest/internal/imageref"
	"github.com/greekangels/cryptodigest/internal/registry"
	"github.com/greekangels/cryptodigest/internal/request"
)

// Caption limits. Telegram allows 1024 characters; the digest is cut to
// MaxCaption and an ellipsis appended.
const (
	MaxCaption = 1020
	Ellipsis   = "..."
)

// Sender is a messaging platform.
type Sender interface {
	SendPhoto(ctx context.Context, chatID string, photo []byte, caption string) error
	SendText(ctx context.Context, chatID, text string) error
}

// ImageFetcher downloads an image.
type ImageFetcher interface {
	FetchImage(ctx context.Context, ref imageref.Ref) ([]byte, error)
}

// Outcome is the result of delivering to one destination.
type Outcome int

// Outcomes.
const (
	Failed Outcome = iota
	Photo
	TextFallback
)

func (o Outcome) String() string {
	switch o {
	case Photo:
		return "photo"
	case TextFallback:
		return "text"
	default:
		return "failed"
	}
}

// Result is the outcome for one destination.
type Result struct {
	Destination registry.ID
	Outcome     Outcome
	// Err is the last error seen for the destination, if any. A
	// TextFallback result carries the photo error.
	Err error
}

// Summary aggregates the results of a delivery run.
type Summary struct {
	Delivered int
	Failed    []registry.ID
	Results   []Result
}

// OK reports whether at least one destination received the digest.
func (s Summary) OK() bool { return s.Delivered > 0 }

// Config configures a Pipeline.
type Config struct {
	Sender Sender
	Images ImageFetcher
	// Delay is the pause between two destinations.
	Delay  time.Duration
	Logger *slog.Logger
}

// Pipeline delivers digests.
type Pipeline struct {
	sender Sender
	images ImageFetcher
	delay  time.Duration
	slog   *slog.Logger
	sleep  func(context.Context, time.Duration) bool
}

// New returns a Pipeline.
func New(c Config) *Pipeline {
	l := c.Logger
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		sender: c.Sender,
		images: c.Images,
		delay:  c.Delay,
		slog:   l,
		sleep:  sleep,
	}
}

// Caption returns content cut to fit a photo caption.
func Caption(content string) string {
	if utf8.RuneCountInString(content) <= MaxCaption {
		return content
	}
	return string([]rune(content)[:MaxCaption]) + Ellipsis
}

// Resolve returns the destinations of a run: the subscribers if there are
// any, otherwise the default chat. With neither it returns a
// *config.ConfigurationError.
func Resolve(subscribers []registry.ID, defaultChat string) ([]registry.ID, error) {
	if len(subscribers) > 0 {
		return subscribers, nil
	}
	if id := registry.Normalize(defaultChat); id != "" {
		return []registry.ID{id}, nil
	}
	return nil, &config.ConfigurationError{Missing: []string{"TELEGRAM_CHAT_ID"}}
}

// Deliver sends content with the image at ref to every destination. It
// returns an error only if the run was cancelled; per-destination failures
// are reported in the Summary.
func (p *Pipeline) Deliver(ctx context.Context, ref imageref.Ref, content string, destinations []registry.ID) (Summary, error) {
	caption := Caption(content)
	if caption != content {
		p.slog.Warn("caption truncated", "chars", utf8.RuneCountInString(content), "max", MaxCaption)
	}

	var (
		sum   Summary
		image []byte
	)
	for i, dest := range destinations {
		if i > 0 && p.delay > 0 {
			if !p.sleep(ctx, p.delay) {
				return sum, ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		res := Result{Destination: dest}
		// The image is downloaded once and reused; a failed download is
		// retried for the next destination.
		if image == nil {
			img, err := p.images.FetchImage(ctx, ref)
			if err != nil {
				res.Err = fmt.Errorf("fetching image: %w", err)
			} else {
				image = img
			}
		}
		if image != nil {
			res.Err = p.sender.SendPhoto(ctx, string(dest), image, caption)
			if res.Err == nil {
				res.Outcome = Photo
			}
		}
		if res.Outcome != Photo {
			p.slog.Warn("photo delivery failed, falling back to text", "chat_id", dest, "err", res.Err)
			if err := p.sender.SendText(ctx, string(dest), caption); err != nil {
				res.Err = err
			} else {
				res.Outcome = TextFallback
			}
		}

		switch res.Outcome {
		case Failed:
			sum.Failed = append(sum.Failed, dest)
			p.slog.Error("delivery failed", "chat_id", dest, "err", res.Err)
		default:
			sum.Delivered++
			p.slog.Info("delivered", "chat_id", dest, "as", res.Outcome)
		}
		sum.Results = append(sum.Results, res)
	}
	return sum, nil
}

// HTTPImages downloads images over HTTP.
type HTTPImages struct {
	Client *http.Client
	// Timeout bounds one download. Defaults to 60s.
	Timeout time.Duration
	// MaxBytes caps the image size. Defaults to 10 MiB.
	MaxBytes int64
}

// FetchImage implements [ImageFetcher].
func (h *HTTPImages) FetchImage(ctx context.Context, ref imageref.Ref) ([]byte, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxBytes := h.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b, err := request.Fetch(ctx, request.Params{
		URL:        string(ref),
		HTTPClient: h.Client,
		Headers:    map[string]string{"Accept": "image/*"},
		MaxBytes:   maxBytes,
	})
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty image from %s", ref)
	}
	return b, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
