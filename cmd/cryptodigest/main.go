// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/greekangels/cryptodigest/internal/cli"
	"github.com/greekangels/cryptodigest/internal/config"
	"github.com/greekangels/cryptodigest/internal/httplogger"
	"github.com/greekangels/cryptodigest/internal/logger"
	"github.com/greekangels/cryptodigest/internal/registry"
)

var (
	//go:embed config_error.tmpl
	configErrorTemplate string
	//go:embed fetch_error.tmpl
	fetchErrorTemplate string
)

func main() { cli.Main(new(app)) }

type app struct {
	// configuration, read-only after initialization
	dry     bool
	envFile string
	cfg     *config.Config

	// initialized in Run
	slog *slog.Logger
	reg  *registry.Registry

	// for testing
	httpc *http.Client
	now   func() time.Time
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.BoolVar(&a.dry, "dry", false, "Log deliveries instead of sending them to Telegram.")
	fs.StringVar(&a.envFile, "env-file", "", "Load environment variables from `path` (.env by default, if present).")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)
	l := logger.Get(ctx)
	if a.dry {
		l.Level.Set(slog.LevelDebug)
	}
	a.slog = l.Logger
	if a.now == nil {
		a.now = time.Now
	}

	if len(env.Args) == 0 {
		return fmt.Errorf("%w: command is required", cli.ErrInvalidArgs)
	}

	environ, err := config.WithDotenv(env.Map(), cmp.Or(a.envFile, ".env"), a.envFile != "")
	if err != nil {
		return err
	}
	a.cfg, err = config.Load(environ)
	if err != nil {
		return err
	}
	a.reg = registry.Open(a.cfg.RegistryPath, registry.WithLogger(a.slog))
	if a.httpc == nil && l.Level.Level() <= slog.LevelDebug {
		a.httpc = &http.Client{
			Transport: httplogger.New(nil, a.slog, a.cfg.BotToken, a.cfg.PerplexityKey, a.cfg.GeminiKey),
		}
	}

	cmd, args := env.Args[0], env.Args[1:]
	switch cmd {
	case "run":
		if len(args) != 0 {
			return fmt.Errorf("%w: run takes no arguments", cli.ErrInvalidArgs)
		}
		return a.run(ctx)
	case "subscribers":
		return a.listSubscribers(env.Stdout)
	case "subscribe", "unsubscribe":
		if len(args) != 1 {
			return fmt.Errorf("%w: %s takes exactly one chat ID", cli.ErrInvalidArgs, cmd)
		}
		return a.editSubscribers(ctx, env.Stdout, cmd, registry.Normalize(args[0]))
	case "config":
		for _, line := range a.cfg.Sorted() {
			fmt.Fprintln(env.Stdout, line)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", cli.ErrInvalidArgs, cmd)
	}
}

func (a *app) listSubscribers(w io.Writer) error {
	for _, id := range a.reg.List() {
		fmt.Fprintln(w, id)
	}
	return nil
}

func (a *app) editSubscribers(ctx context.Context, w io.Writer, cmd string, id registry.ID) error {
	if id == "" {
		return fmt.Errorf("%w: %w", cli.ErrInvalidArgs, registry.ErrEmptyID)
	}

	var (
		changed bool
		err     error
	)
	if cmd == "subscribe" {
		changed, err = a.reg.Add(ctx, id)
	} else {
		changed, err = a.reg.Remove(ctx, id)
	}
	if err != nil {
		return err
	}

	switch {
	case changed && cmd == "subscribe":
		fmt.Fprintf(w, "Subscribed %s.\n", id)
	case changed:
		fmt.Fprintf(w, "Unsubscribed %s.\n", id)
	case cmd == "subscribe":
		fmt.Fprintf(w, "%s is already subscribed.\n", id)
	default:
		fmt.Fprintf(w, "%s is not subscribed.\n", id)
	}
	return nil
}

// errNothingDelivered is returned when a run could not reach any destination.
var errNothingDelivered = errors.New("digest was not delivered to any destination")
