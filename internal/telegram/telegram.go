// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package telegram delivers digests over the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/greekangels/cryptodigest/internal/request"
)

// MaxMessageLength is the Telegram limit for a text message, in characters.
const MaxMessageLength = 4096

// parseModeMarkdown is the legacy Markdown mode. models.ParseModeMarkdown is
// MarkdownV2, which rejects unescaped punctuation in digests.
const parseModeMarkdown models.ParseMode = "Markdown"

// Config configures a Client.
type Config struct {
	Token string
	// ServerURL overrides the Bot API endpoint.
	ServerURL  string
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Options are passed to the underlying bot, for example to install
	// update handlers.
	Options []tgbot.Option
}

// Client sends messages to Telegram chats.
type Client struct {
	bot      *tgbot.Bot
	scrubber *strings.Replacer
	slog     *slog.Logger
}

// New returns a Client. It calls getMe to check the token.
func New(c Config) (*Client, error) {
	if c.Token == "" {
		return nil, errors.New("telegram: empty bot token")
	}
	scrubber := strings.NewReplacer(c.Token, "[EXPUNGED]")

	// Long polling holds getUpdates open for pollTimeout, so the client
	// timeout must exceed it.
	const pollTimeout = time.Minute
	httpc := c.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: pollTimeout + 10*time.Second}
	}
	opts := []tgbot.Option{tgbot.WithHTTPClient(pollTimeout, httpc)}
	if c.ServerURL != "" {
		opts = append(opts, tgbot.WithServerURL(strings.TrimSuffix(c.ServerURL, "/")))
	}
	opts = append(opts, c.Options...)

	b, err := tgbot.New(c.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", request.Scrub(err, scrubber))
	}

	l := c.Logger
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return &Client{bot: b, scrubber: scrubber, slog: l}, nil
}

// Bot returns the underlying bot, for registering update handlers.
func (c *Client) Bot() *tgbot.Bot { return c.bot }

// SendPhoto uploads photo to chatID with caption, formatted as Markdown.
func (c *Client) SendPhoto(ctx context.Context, chatID string, photo []byte, caption string) error {
	_, err := c.bot.SendPhoto(ctx, &tgbot.SendPhotoParams{
		ChatID:    chatID,
		Photo:     &models.InputFileUpload{Filename: "digest.jpg", Data: bytes.NewReader(photo)},
		Caption:   caption,
		ParseMode: parseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("sendPhoto to %s: %w", chatID, request.Scrub(err, c.scrubber))
	}
	return nil
}

// SendText sends text to chatID, split into several messages if it is too
// long. Each part is sent as Markdown first; if Telegram rejects the markup
// it is resent as plain text.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	chunks := splitMessage(text)
	if len(chunks) == 0 {
		return errors.New("telegram: empty message")
	}
	for _, chunk := range chunks {
		if err := c.sendMessage(ctx, chatID, chunk, parseModeMarkdown); err != nil {
			if !isParseError(err) {
				return err
			}
			c.slog.Warn("markdown rejected, resending as plain text", "chat_id", chatID, "err", err)
			if err := c.sendMessage(ctx, chatID, chunk, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Client) sendMessage(ctx context.Context, chatID, text string, mode models.ParseMode) error {
	_, err := c.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: mode,
	})
	if err != nil {
		return fmt.Errorf("sendMessage to %s: %w", chatID, request.Scrub(err, c.scrubber))
	}
	return nil
}

// isParseError reports whether Telegram refused the message because of
// malformed markup.
func isParseError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}

func splitMessage(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for text != "" {
		if utf8.RuneCountInString(text) <= MaxMessageLength {
			chunks = append(chunks, text)
			break
		}

		var (
			lastNewline    = -1
			lastWhitespace = -1
			byteCap        = len(text)
			runeCount      int
		)
		for i, r := range text {
			if runeCount == MaxMessageLength {
				byteCap = i
				break
			}
			runeCount++

			if r == '\n' {
				lastNewline = i
				continue
			}
			if unicode.IsSpace(r) {
				lastWhitespace = i
			}
		}

		splitAt := byteCap
		switch {
		case lastNewline > 0:
			splitAt = lastNewline
		case lastWhitespace > 0:
			splitAt = lastWhitespace
		}

		if chunk := strings.TrimSpace(text[:splitAt]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[splitAt:])
	}
	return chunks
}
