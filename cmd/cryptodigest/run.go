// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greekangels/cryptodigest/internal/api/gemini"
	"github.com/greekangels/cryptodigest/internal/api/perplexity"
	"github.com/greekangels/cryptodigest/internal/config"
	"github.com/greekangels/cryptodigest/internal/content"
	"github.com/greekangels/cryptodigest/internal/delivery"
	"github.com/greekangels/cryptodigest/internal/filelock"
	"github.com/greekangels/cryptodigest/internal/headlines"
	"github.com/greekangels/cryptodigest/internal/imageref"
	"github.com/greekangels/cryptodigest/internal/telegram"
)

const runLockName = ".run.lock"

func (a *app) run(ctx context.Context) error {
	runID := uuid.NewString()
	a.slog = a.slog.With("run_id", runID)
	start := a.now()
	a.slog.Info("starting run", "config", a.cfg, "dry", a.dry)

	if err := a.cfg.Validate(); err != nil {
		a.notifyConfigError(ctx, err)
		return err
	}

	lock, err := a.acquireRunLock(runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.slog.Warn("releasing run lock", "err", err)
		}
	}()

	dests, err := delivery.Resolve(a.reg.List(), a.cfg.DefaultChatID)
	if err != nil {
		a.slog.Error("no destinations", "err", err)
		return err
	}
	a.slog.Info("resolved destinations", "count", len(dests))

	text, err := a.fetchContent(ctx, start)
	if err != nil {
		a.notifyFetchError(ctx, start, err)
		return err
	}

	builder := &imageref.Builder{
		BaseURL:  a.cfg.ImageBaseURL,
		Width:    a.cfg.ImageWidth,
		Height:   a.cfg.ImageHeight,
		Styles:   a.cfg.Styles,
		Angles:   a.cfg.Angles,
		Lighting: a.cfg.Lighting,
	}
	ref := builder.Build(a.cfg.ImagePrompt, a.now())
	a.slog.Debug("built image reference", "ref", ref)

	sender, err := a.sender()
	if err != nil {
		return err
	}
	pipeline := delivery.New(delivery.Config{
		Sender: sender,
		Images: &delivery.HTTPImages{Client: a.httpc, Timeout: a.cfg.ImageTimeout},
		Delay:  a.cfg.DeliveryDelay,
		Logger: a.slog,
	})
	sum, err := pipeline.Deliver(ctx, ref, text, dests)
	if err != nil {
		return err
	}

	a.slog.Info("run finished",
		"delivered", sum.Delivered,
		"failed", len(sum.Failed),
		"duration", a.now().Sub(start).Round(time.Millisecond),
	)
	if !sum.OK() {
		return fmt.Errorf("%w (failed: %v)", errNothingDelivered, sum.Failed)
	}
	return nil
}

// acquireRunLock makes sure only one run happens at a time.
func (a *app) acquireRunLock(runID string) (filelock.Lock, error) {
	if err := os.MkdirAll(a.cfg.StateDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(a.cfg.StateDir, runLockName)
	lock, err := filelock.Acquire(path, fmt.Sprintf("pid=%d run_id=%s\n", os.Getpid(), runID))
	if errors.Is(err, filelock.ErrAlreadyLocked) {
		return nil, fmt.Errorf("another run is in progress (%s)", path)
	}
	return lock, err
}

func (a *app) fetchContent(ctx context.Context, now time.Time) (string, error) {
	gen, model, closeFn, err := a.generator(ctx)
	if err != nil {
		return "", err
	}
	defer closeFn()

	c := content.Config{
		Generator:      gen,
		Model:          model,
		MaxTokens:      a.cfg.MaxTokens,
		Temperature:    a.cfg.Temperature,
		TopP:           a.cfg.TopP,
		Timeout:        a.cfg.ContentTimeout,
		MaxAttempts:    a.cfg.FetchAttempts,
		TimeoutBackoff: a.cfg.TimeoutBackoff,
		ServerBackoff:  a.cfg.ServerBackoff,
		Logger:         a.slog,
	}
	if a.cfg.HeadlinesFeedURL != "" {
		c.Context = headlines.New(a.cfg.HeadlinesFeedURL, a.cfg.HeadlinesLimit, a.httpc).Recent
	}
	return content.New(c).Fetch(ctx, a.cfg.Query, now)
}

func (a *app) generator(ctx context.Context) (gen content.Generator, model string, closeFn func(), err error) {
	switch a.cfg.Backend {
	case config.BackendGemini:
		c, err := gemini.New(ctx, gemini.Config{APIKey: a.cfg.GeminiKey})
		if err != nil {
			return nil, "", nil, err
		}
		return c, a.cfg.GeminiModel, func() {
			if err := c.Close(); err != nil {
				a.slog.Warn("closing Gemini client", "err", err)
			}
		}, nil
	default:
		c := perplexity.New(perplexity.Config{
			APIKey:     a.cfg.PerplexityKey,
			BaseURL:    a.cfg.PerplexityURL,
			HTTPClient: a.httpc,
		})
		return c, a.cfg.PerplexityModel, func() {}, nil
	}
}

func (a *app) sender() (delivery.Sender, error) {
	if a.dry {
		return &delivery.DrySender{Logger: a.slog}, nil
	}
	return telegram.New(telegram.Config{
		Token:      a.cfg.BotToken,
		ServerURL:  a.cfg.TelegramURL,
		HTTPClient: a.httpc,
		Logger:     a.slog,
	})
}

func (a *app) notifyConfigError(ctx context.Context, err error) {
	reason := err.Error()
	var cerr *config.ConfigurationError
	if errors.As(err, &cerr) {
		var lines []string
		for _, name := range cerr.Missing {
			lines = append(lines, "- "+name+" (missing)")
		}
		for _, name := range cerr.Invalid {
			lines = append(lines, "- "+name+" (invalid)")
		}
		reason = strings.Join(lines, "\n")
	}
	a.notify(ctx, fmt.Sprintf(configErrorTemplate, reason))
}

func (a *app) notifyFetchError(ctx context.Context, at time.Time, err error) {
	at = at.UTC()
	a.notify(ctx, fmt.Sprintf(fetchErrorTemplate, at.Format("15:04 UTC"), at.Format("2006-01-02"), err))
}

// notify sends an operator notification to the default chat. It is best
// effort: failures are only logged.
func (a *app) notify(ctx context.Context, text string) {
	if !a.cfg.CanNotify() {
		a.slog.Debug("not sending notification, no bot token or default chat")
		return
	}
	sender, err := a.sender()
	if err != nil {
		a.slog.Warn("sending notification", "err", err)
		return
	}
	if err := sender.SendText(ctx, a.cfg.DefaultChatID, text); err != nil {
		a.slog.Warn("sending notification", "err", err)
	}
}
