// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Digestbot answers Telegram commands of the crypto digest bot.

It long-polls the Bot API and keeps the subscriber registry shared with
cryptodigest up to date: /subscribe and /unsubscribe add and remove the chat
the command was sent from. It also answers /start, /help, /status,
/schedule, /about, /privacy, /feedback and /subscribers. On startup the
command menu of the bot is replaced with this list.

It runs until interrupted.

# Usage

	$ digestbot [flags...]

# Environment Variables

  - TELEGRAM_BOT_TOKEN (required): Telegram bot token.
  - SUBSCRIBERS_FILE: subscriber registry, "subscribed_groups.json" by default.
  - TELEGRAM_API_URL: Bot API endpoint, for testing.

Variables may also be put in a dotenv file, .env by default (see -env-file).
*/
package main

import (
	_ "embed"

	"github.com/greekangels/cryptodigest/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
