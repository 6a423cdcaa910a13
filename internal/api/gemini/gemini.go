// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package gemini generates digest content with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"github.com/greekangels/cryptodigest/internal/content"
	"github.com/greekangels/cryptodigest/internal/version"
)

// Client implements [content.Generator].
type Client struct {
	api      *genai.Client
	scrubber *strings.Replacer
}

// Config configures a Client.
type Config struct {
	APIKey string
	// Endpoint overrides the API endpoint.
	Endpoint string
	// HTTPClient is optional.
	HTTPClient *http.Client
}

// New returns a Client. Call Close when done.
func New(ctx context.Context, c Config) (*Client, error) {
	opts := []option.ClientOption{
		option.WithAPIKey(c.APIKey),
		option.WithUserAgent(version.UserAgent()),
	}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}
	api, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	cl := &Client{api: api}
	if c.APIKey != "" {
		cl.scrubber = strings.NewReplacer(c.APIKey, "[EXPUNGED]")
	}
	return cl, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.api.Close() }

// Generate implements [content.Generator].
func (c *Client) Generate(ctx context.Context, req content.Request) (string, error) {
	m := c.api.GenerativeModel(req.Model)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Temperature > 0 {
		m.SetTemperature(float32(req.Temperature))
	}
	if req.TopP > 0 {
		m.SetTopP(float32(req.TopP))
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", mapError(err, c.scrubber)
	}
	return responseText(resp)
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", content.ErrNoContent
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", content.ErrNoContent
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", content.ErrNoContent
	}
	return sb.String(), nil
}

func mapError(err error, scrubber *strings.Replacer) error {
	scrub := func(s string) string {
		if scrubber == nil {
			return s
		}
		return scrubber.Replace(s)
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %s", content.ErrNoContent, blocked.Error())
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &content.APIError{StatusCode: gerr.Code, Body: scrub(gerr.Message)}
	}
	if ae, ok := apierror.FromError(err); ok {
		code := ae.HTTPCode()
		if code <= 0 && ae.GRPCStatus() != nil {
			code = httpStatus(ae.GRPCStatus().Code())
		}
		if code > 0 {
			msg := ""
			if ae.GRPCStatus() != nil {
				msg = ae.GRPCStatus().Message()
			}
			return &content.APIError{StatusCode: code, Body: scrub(msg)}
		}
	}
	return err
}

// httpStatus maps gRPC codes to the HTTP status the REST API would return.
func httpStatus(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return http.StatusInternalServerError
	}
	return 0
}
