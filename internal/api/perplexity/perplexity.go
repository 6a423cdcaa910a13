// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package perplexity generates digest content with the Perplexity chat
// completions API, which speaks the OpenAI wire format.
package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/greekangels/cryptodigest/internal/content"
	"github.com/greekangels/cryptodigest/internal/version"
)

// DefaultBaseURL is the Perplexity API endpoint.
const DefaultBaseURL = "https://api.perplexity.ai"

// Client implements [content.Generator].
type Client struct {
	api      openai.Client
	scrubber *strings.Replacer
}

// Config configures a Client.
type Config struct {
	APIKey string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// HTTPClient is optional.
	HTTPClient *http.Client
}

// New returns a Client. Retries are left to [content.Fetcher], so the
// underlying SDK is told not to retry.
func New(c Config) *Client {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
		option.WithBaseURL(strings.TrimSuffix(base, "/") + "/"),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", version.UserAgent()),
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}
	var scrubber *strings.Replacer
	if c.APIKey != "" {
		scrubber = strings.NewReplacer(c.APIKey, "[EXPUNGED]")
	}
	return &Client{api: openai.NewClient(opts...), scrubber: scrubber}
}

// Generate implements [content.Generator].
func (c *Client) Generate(ctx context.Context, req content.Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", c.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", content.ErrNoContent
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", content.ErrNoContent
	}
	return text, nil
}

func (c *Client) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &content.APIError{StatusCode: apiErr.StatusCode, Body: c.scrub(apiErr.Message)}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &content.ParseError{Err: err}
	}
	return err
}

func (c *Client) scrub(s string) string {
	if c.scrubber == nil {
		return s
	}
	return c.scrubber.Replace(s)
}
