// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Cryptodigest posts a daily crypto market digest with an illustration to
Telegram.

A run asks a language model for the digest, builds an image URL from a prompt
template, downloads the image and sends it with the digest as caption to every
subscribed chat. If the photo cannot be sent, the digest is sent as text. When
nobody is subscribed, the digest goes to TELEGRAM_CHAT_ID.

Runs are meant to be started by an external scheduler such as cron.

# Usage

	$ cryptodigest [flags...] <command> [args...]

# Commands

  - run: fetch, build and deliver today's digest.
  - subscribers: print subscribed chat IDs, one per line.
  - subscribe <chat ID>: add a chat to the subscribers.
  - unsubscribe <chat ID>: remove a chat from the subscribers.
  - config: print the effective configuration with secrets shortened.

# Environment Variables

Required for run:

  - TELEGRAM_BOT_TOKEN: Telegram bot token.
  - PERPLEXITY_API_KEY: Perplexity API key (GEMINI_API_KEY when
    CONTENT_BACKEND is "gemini").
  - PERPLEXITY_QUERY: the digest request sent to the model.
  - IMAGE_PROMPT: the base prompt of the illustration.

Optional:

  - TELEGRAM_CHAT_ID: chat that receives the digest when nobody is
    subscribed, and failure notifications.
  - CONTENT_BACKEND: "perplexity" (default) or "gemini".
  - SUBSCRIBERS_FILE: subscriber registry, "subscribed_groups.json" by default.
  - STATE_DIR: directory of the run lock, "." by default.
  - HEADLINES_FEED_URL: RSS or Atom feed whose recent headlines are added to
    the request; HEADLINES_LIMIT caps them (default 5).
  - DELIVERY_DELAY, IMAGE_TIMEOUT, CONTENT_TIMEOUT, FETCH_ATTEMPTS: tuning.
  - CONFIG_FILE: Starlark file that may set query, image_prompt, styles,
    angles and lighting.

Variables may also be put in a dotenv file, .env by default (see -env-file).
Process environment takes precedence.

# Configuration File

	coins = ["BTC", "ETH", "SOL"]
	query = "Write today's market summary for %s." % ", ".join(coins)
	styles = ["neon cyberpunk", "watercolor"]
*/
package main

import (
	_ "embed"

	"github.com/greekangels/cryptodigest/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
