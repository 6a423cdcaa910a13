// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package delivery

import (
	"context"
	"log/slog"
	"unicode/utf8"
)

// DrySender logs what would be sent instead of sending it.
type DrySender struct {
	Logger *slog.Logger
}

// SendPhoto implements [Sender].
func (d *DrySender) SendPhoto(_ context.Context, chatID string, photo []byte, caption string) error {
	d.Logger.Info("dry run: would send photo", "chat_id", chatID, "bytes", len(photo), "caption_chars", utf8.RuneCountInString(caption))
	return nil
}

// SendText implements [Sender].
func (d *DrySender) SendText(_ context.Context, chatID, text string) error {
	d.Logger.Info("dry run: would send text", "chat_id", chatID, "chars", utf8.RuneCountInString(text))
	return nil
}
