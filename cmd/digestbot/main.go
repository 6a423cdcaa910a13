// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/greekangels/cryptodigest/internal/cli"
	"github.com/greekangels/cryptodigest/internal/commands"
	"github.com/greekangels/cryptodigest/internal/config"
	"github.com/greekangels/cryptodigest/internal/logger"
	"github.com/greekangels/cryptodigest/internal/registry"
	"github.com/greekangels/cryptodigest/internal/telegram"
)

func main() { cli.Main(new(listener)) }

type listener struct {
	// configuration, read-only after initialization
	envFile string

	// initialized in Run
	slog *slog.Logger
	disp *commands.Dispatcher
	tg   *telegram.Client

	// for testing
	httpc *http.Client
}

func (l *listener) Flags(fs *flag.FlagSet) {
	fs.StringVar(&l.envFile, "env-file", "", "Load environment variables from `path` (.env by default, if present).")
}

func (l *listener) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)
	l.slog = logger.Get(ctx).Logger

	if len(env.Args) != 0 {
		return fmt.Errorf("%w: no arguments expected", cli.ErrInvalidArgs)
	}

	environ, err := config.WithDotenv(env.Map(), cmp.Or(l.envFile, ".env"), l.envFile != "")
	if err != nil {
		return err
	}
	cfg, err := config.Load(environ)
	if err != nil {
		return err
	}
	if err := cfg.ValidateBot(); err != nil {
		return err
	}

	reg := registry.Open(cfg.RegistryPath, registry.WithLogger(l.slog))
	l.disp = commands.New(reg, l.slog)
	l.tg, err = telegram.New(telegram.Config{
		Token:      cfg.BotToken,
		ServerURL:  cfg.TelegramURL,
		HTTPClient: l.httpc,
		Logger:     l.slog,
		Options:    []tgbot.Option{tgbot.WithDefaultHandler(l.handleOther)},
	})
	if err != nil {
		return err
	}

	b := l.tg.Bot()
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/", tgbot.MatchTypePrefix, l.handleMessage)
	l.setCommands(ctx, b)

	l.slog.Info("listening for commands", "subscribers_file", reg.Path(), "subscribers", reg.Count())
	b.Start(ctx)
	l.slog.Info("stopped listening")
	return nil
}

// setCommands publishes the command menu. Failure is not fatal.
func (l *listener) setCommands(ctx context.Context, b *tgbot.Bot) {
	var cmds []models.BotCommand
	for _, c := range commands.All {
		cmds = append(cmds, models.BotCommand{Command: c.Name, Description: c.Description})
	}
	if _, err := b.SetMyCommands(ctx, &tgbot.SetMyCommandsParams{Commands: cmds}); err != nil {
		l.slog.Warn("setting command menu", "err", err)
	}
}

func (l *listener) handleMessage(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	l.reply(ctx, update.Message)
}

// handleOther receives updates no handler matched. Commands posted in
// channels arrive here.
func (l *listener) handleOther(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.ChannelPost != nil {
		l.reply(ctx, update.ChannelPost)
		return
	}
	l.slog.Debug("ignoring update", "update_id", update.ID)
}

func (l *listener) reply(ctx context.Context, msg *models.Message) {
	if msg == nil || msg.Text == "" {
		return
	}
	text, err := l.disp.Handle(ctx, msg.Chat.ID, msg.Text)
	if err != nil {
		l.slog.Error("handling command", "chat_id", msg.Chat.ID, "text", msg.Text, "err", err)
	}
	if text == "" {
		return
	}
	if err := l.tg.SendText(ctx, string(registry.FromInt(msg.Chat.ID)), text); err != nil {
		l.slog.Error("replying to command", "chat_id", msg.Chat.ID, "err", err)
	}
}
