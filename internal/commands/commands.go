// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package commands maps bot commands to subscription changes and canned
// replies.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/greekangels/cryptodigest/internal/registry"
)

// Command describes a bot command for the Telegram command menu.
type Command struct {
	Name        string
	Description string
}

// All lists the supported commands in menu order.
var All = []Command{
	{"start", "Welcome message"},
	{"help", "List available commands"},
	{"subscribe", "Receive daily reports in this chat"},
	{"unsubscribe", "Stop daily reports in this chat"},
	{"subscribers", "Number of subscribed chats"},
	{"status", "Bot status"},
	{"schedule", "Delivery schedule"},
	{"about", "About this bot"},
	{"privacy", "Privacy policy"},
	{"feedback", "Send feedback"},
}

// Registry is the subscription store the dispatcher changes.
type Registry interface {
	Add(ctx context.Context, id registry.ID) (bool, error)
	Remove(ctx context.Context, id registry.ID) (bool, error)
	Count() int
}

// Dispatcher handles inbound commands.
type Dispatcher struct {
	reg  Registry
	slog *slog.Logger
}

// New returns a Dispatcher backed by reg.
func New(reg Registry, l *slog.Logger) *Dispatcher {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{reg: reg, slog: l}
}

// Handle returns the reply to text sent in chatID. Text that is not a
// command gets an empty reply. The error is set when the registry could not
// be updated; the reply then explains the failure to the user.
func (d *Dispatcher) Handle(ctx context.Context, chatID int64, text string) (string, error) {
	name, ok := Parse(text)
	if !ok {
		return "", nil
	}
	id := registry.FromInt(chatID)
	d.slog.Debug("command received", "command", name, "chat_id", id)

	switch name {
	case "start":
		return startText, nil
	case "help":
		return helpText, nil
	case "status":
		return statusText, nil
	case "schedule":
		return scheduleText, nil
	case "about":
		return aboutText, nil
	case "privacy":
		return privacyText, nil
	case "feedback":
		return feedbackText, nil
	case "subscribe":
		added, err := d.reg.Add(ctx, id)
		if err != nil {
			return storageFailureText, fmt.Errorf("subscribing %s: %w", id, err)
		}
		if !added {
			return "ℹ️ This chat is already subscribed.", nil
		}
		d.slog.Info("chat subscribed", "chat_id", id)
		return "✅ Subscribed! Daily crypto reports will be delivered to this chat.", nil
	case "unsubscribe":
		removed, err := d.reg.Remove(ctx, id)
		if err != nil {
			return storageFailureText, fmt.Errorf("unsubscribing %s: %w", id, err)
		}
		if !removed {
			return "ℹ️ This chat is not subscribed.", nil
		}
		d.slog.Info("chat unsubscribed", "chat_id", id)
		return "👋 Unsubscribed. This chat will no longer receive daily reports.", nil
	case "subscribers":
		return fmt.Sprintf("📊 Subscribed chats: %d", d.reg.Count()), nil
	}
	return "🤔 Unknown command. Use /help to see available commands.", nil
}

// Parse extracts the command name from text: "/Help@DigestBot now" yields
// "help". It reports false if text is not a command.
func Parse(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	cmd, ok := strings.CutPrefix(fields[0], "/")
	if !ok {
		return "", false
	}
	cmd, _, _ = strings.Cut(cmd, "@")
	if cmd == "" {
		return "", false
	}
	return strings.ToLower(cmd), true
}

const storageFailureText = "⚠️ Could not update subscriptions right now. Please try again later."

const startText = "📊 *Welcome to Crypto Market Daily!*\n\n" +
	"Receive professional crypto market reports every weekday at 17:00 UTC.\n\n" +
	"🚀 Features:\n" +
	"• AI-powered market analysis\n" +
	"• Real-time data & percentages\n" +
	"• Institutional sentiment insights\n" +
	"• Key market highlights\n\n" +
	"Use /subscribe to get reports in this chat and /help to see all commands."

const helpText = "❓ *Available Commands:*\n\n" +
	"/start - Welcome message\n" +
	"/help - This help message\n" +
	"/subscribe - Receive daily reports here\n" +
	"/unsubscribe - Stop daily reports here\n" +
	"/subscribers - Number of subscribed chats\n" +
	"/status - Bot status\n" +
	"/schedule - Delivery schedule\n" +
	"/about - About this bot\n" +
	"/privacy - Privacy policy\n" +
	"/feedback - Send feedback\n\n" +
	"📊 Reports are delivered automatically Mon-Fri at 17:00 UTC."

const statusText = "🔄 *Bot Status*\n\n" +
	"✅ Online and operational\n" +
	"📅 Next report: next weekday at 17:00 UTC\n" +
	"🤖 Powered by Perplexity AI\n" +
	"⏰ Schedule: Monday-Friday"

const scheduleText = "⏰ *Delivery Schedule*\n\n" +
	"📅 Days: Monday - Friday\n" +
	"🕐 Time: 17:00 UTC\n\n" +
	"No reports on weekends.\n" +
	"All reports include market data, analysis, and AI-generated images."

const aboutText = "ℹ️ *About Crypto Market Daily*\n\n" +
	"🤖 AI-powered crypto news bot\n" +
	"🧠 Powered by: Perplexity AI\n" +
	"🎨 Images: Pollinations.ai\n\n" +
	"🌐 Open Source:\n" +
	"github.com/greekangels/cryptodigest"

const privacyText = "🔒 *Privacy Policy*\n\n" +
	"✅ No personal data collected\n" +
	"✅ No message history stored\n" +
	"✅ Only chat ID for delivery\n" +
	"✅ Open source & transparent"

const feedbackText = "💬 *Feedback & Support*\n\n" +
	"We'd love to hear from you!\n\n" +
	"🐛 Report issues on GitHub:\n" +
	"github.com/greekangels/cryptodigest/issues"
