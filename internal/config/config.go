// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package config loads the settings shared by cryptodigest and digestbot.
//
// Settings come from three layers, later ones winning: an optional dotenv
// file, the process environment and an optional Starlark file named by
// CONFIG_FILE. Nothing in this package reads the process environment
// directly; callers pass it in.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/greekangels/cryptodigest/internal/logger"
)

// Content backends.
const (
	BackendPerplexity = "perplexity"
	BackendGemini     = "gemini"
)

// Config is the process configuration. It is built once at startup and
// passed to every component that needs it.
type Config struct {
	BotToken      string `env:"TELEGRAM_BOT_TOKEN"`
	DefaultChatID string `env:"TELEGRAM_CHAT_ID"`
	TelegramURL   string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`

	Backend         string        `env:"CONTENT_BACKEND" envDefault:"perplexity"`
	PerplexityKey   string        `env:"PERPLEXITY_API_KEY"`
	PerplexityURL   string        `env:"PERPLEXITY_API_URL" envDefault:"https://api.perplexity.ai"`
	PerplexityModel string        `env:"PERPLEXITY_MODEL" envDefault:"sonar"`
	GeminiKey       string        `env:"GEMINI_API_KEY"`
	GeminiModel     string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	Query           string        `env:"PERPLEXITY_QUERY"`
	MaxTokens       int           `env:"CONTENT_MAX_TOKENS" envDefault:"2000"`
	Temperature     float64       `env:"CONTENT_TEMPERATURE" envDefault:"0.3"`
	TopP            float64       `env:"CONTENT_TOP_P" envDefault:"0.9"`
	ContentTimeout  time.Duration `env:"CONTENT_TIMEOUT" envDefault:"30s"`
	FetchAttempts   int           `env:"FETCH_ATTEMPTS" envDefault:"3"`
	TimeoutBackoff  time.Duration `env:"FETCH_TIMEOUT_BACKOFF" envDefault:"10s"`
	ServerBackoff   time.Duration `env:"FETCH_SERVER_BACKOFF" envDefault:"15s"`

	HeadlinesFeedURL string `env:"HEADLINES_FEED_URL"`
	HeadlinesLimit   int    `env:"HEADLINES_LIMIT" envDefault:"5"`

	ImagePrompt  string        `env:"IMAGE_PROMPT"`
	ImageBaseURL string        `env:"IMAGE_API_URL" envDefault:"https://image.pollinations.ai/prompt/"`
	ImageWidth   int           `env:"IMAGE_WIDTH" envDefault:"1024"`
	ImageHeight  int           `env:"IMAGE_HEIGHT" envDefault:"1024"`
	ImageTimeout time.Duration `env:"IMAGE_TIMEOUT" envDefault:"60s"`

	DeliveryDelay time.Duration `env:"DELIVERY_DELAY" envDefault:"2s"`
	RegistryPath  string        `env:"SUBSCRIBERS_FILE" envDefault:"subscribed_groups.json"`
	StateDir      string        `env:"STATE_DIR" envDefault:"."`

	// ConfigFile is an optional Starlark file, see [Config.applyStarlark].
	ConfigFile string `env:"CONFIG_FILE"`

	// Image style rotation lists. Empty means the built-in defaults. They
	// can only be set from ConfigFile.
	Styles   []string
	Angles   []string
	Lighting []string
}

// ConfigurationError reports settings that are missing or invalid.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

// Load builds a Config from environ. If CONFIG_FILE is set, the Starlark
// file it names is evaluated and its values override environ.
func Load(environ map[string]string) (*Config, error) {
	cfg := new(Config)
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.DefaultChatID = strings.TrimSpace(cfg.DefaultChatID)

	if cfg.ConfigFile != "" {
		if err := cfg.applyStarlark(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WithDotenv returns environ with the variables from the dotenv file at path
// merged underneath it, so values already present in environ win. A missing
// file is ignored unless required is set.
func WithDotenv(environ map[string]string, path string, required bool) (map[string]string, error) {
	if path == "" {
		return environ, nil
	}
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return environ, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	merged := make(map[string]string, len(vars)+len(environ))
	maps.Copy(merged, vars)
	maps.Copy(merged, environ)
	return merged, nil
}

// APIKey returns the key of the selected content backend.
func (c *Config) APIKey() string {
	if c.Backend == BackendGemini {
		return c.GeminiKey
	}
	return c.PerplexityKey
}

func (c *Config) apiKeyVar() string {
	if c.Backend == BackendGemini {
		return "GEMINI_API_KEY"
	}
	return "PERPLEXITY_API_KEY"
}

// Validate reports the settings a digest run cannot do without.
// TELEGRAM_CHAT_ID is not checked here: it is only required when the
// subscriber registry is empty.
func (c *Config) Validate() error {
	e := new(ConfigurationError)
	if c.BotToken == "" {
		e.Missing = append(e.Missing, "TELEGRAM_BOT_TOKEN")
	}
	switch c.Backend {
	case BackendPerplexity, BackendGemini:
		if c.APIKey() == "" {
			e.Missing = append(e.Missing, c.apiKeyVar())
		}
	default:
		e.Invalid = append(e.Invalid, fmt.Sprintf("CONTENT_BACKEND=%q", c.Backend))
	}
	if strings.TrimSpace(c.Query) == "" {
		e.Missing = append(e.Missing, "PERPLEXITY_QUERY")
	}
	if strings.TrimSpace(c.ImagePrompt) == "" {
		e.Missing = append(e.Missing, "IMAGE_PROMPT")
	}
	if c.FetchAttempts < 1 {
		e.Invalid = append(e.Invalid, fmt.Sprintf("FETCH_ATTEMPTS=%d", c.FetchAttempts))
	}
	if len(e.Missing) == 0 && len(e.Invalid) == 0 {
		return nil
	}
	return e
}

// ValidateBot reports the settings the command listener needs.
func (c *Config) ValidateBot() error {
	if c.BotToken == "" {
		return &ConfigurationError{Missing: []string{"TELEGRAM_BOT_TOKEN"}}
	}
	return nil
}

// CanNotify reports whether failures can be reported to the default chat.
func (c *Config) CanNotify() bool {
	return c.BotToken != "" && c.DefaultChatID != ""
}

// LogValue implements [slog.LogValuer]. Secrets are shortened so the
// configuration can be logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("TELEGRAM_BOT_TOKEN", logger.Secret(c.BotToken)),
		slog.String("TELEGRAM_CHAT_ID", orNotSet(c.DefaultChatID)),
		slog.String("CONTENT_BACKEND", c.Backend),
		slog.String(c.apiKeyVar(), logger.Secret(c.APIKey())),
		slog.String("PERPLEXITY_QUERY", shorten(c.Query, 50)),
		slog.String("IMAGE_PROMPT", shorten(c.ImagePrompt, 50)),
		slog.String("SUBSCRIBERS_FILE", c.RegistryPath),
		slog.Bool("headlines", c.HeadlinesFeedURL != ""),
	)
}

// Sorted returns the Config as sorted name=value lines with secrets
// shortened, for printing to a terminal.
func (c *Config) Sorted() []string {
	var lines []string
	for _, a := range c.LogValue().Group() {
		lines = append(lines, a.Key+"="+a.Value.String())
	}
	slices.Sort(lines)
	return lines
}

func orNotSet(s string) string {
	if s == "" {
		return "NOT SET"
	}
	return s
}

func shorten(s string, n int) string {
	if s == "" {
		return "NOT SET"
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
