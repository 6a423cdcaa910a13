// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package imageref builds the URL of the image that accompanies a digest.
//
// The prompt is decorated with a style, a camera angle and a lighting
// setting picked by date, so every day gets a different but reproducible
// look. A short hash of the exact build time is added as the seed so that
// two builds never share a cached image.
package imageref

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Ref is an absolute image URL.
type Ref string

// Defaults.
const (
	DefaultBaseURL     = "https://image.pollinations.ai/prompt/"
	DefaultSize        = 1024
	DefaultPlaceholder = Ref("https://via.placeholder.com/1024x1024/1a1a2e/16c79a?text=Crypto+News")
)

var (
	// DefaultStyles are rotated by day of month.
	DefaultStyles = []string{
		"photorealistic 3D render",
		"cinematic digital art",
		"futuristic neon cyberpunk",
		"minimalist flat illustration",
		"dramatic oil painting",
	}
	// DefaultAngles are rotated by month.
	DefaultAngles = []string{
		"wide angle shot",
		"close-up view",
		"isometric perspective",
		"low angle hero shot",
		"top-down view",
	}
	// DefaultLighting is rotated by day of month plus month.
	DefaultLighting = []string{
		"golden hour lighting",
		"soft studio lighting",
		"moody blue lighting",
		"vibrant neon glow",
		"high contrast dramatic lighting",
	}
)

// Builder builds image references. The zero value uses the defaults.
type Builder struct {
	BaseURL     string
	Width       int
	Height      int
	Styles      []string
	Angles      []string
	Lighting    []string
	Placeholder Ref
}

// Build returns the image URL for basePrompt at now. It never fails: if the
// URL cannot be built, the placeholder is returned.
func (b *Builder) Build(basePrompt string, now time.Time) Ref {
	ref, err := b.build(basePrompt, now)
	if err != nil {
		return b.placeholder()
	}
	return ref
}

// Modifiers returns the style, angle and lighting picked for now.
func (b *Builder) Modifiers(now time.Time) (style, angle, lighting string) {
	now = now.UTC()
	day, month := now.Day(), int(now.Month())
	return pick(b.Styles, DefaultStyles, day),
		pick(b.Angles, DefaultAngles, month),
		pick(b.Lighting, DefaultLighting, day+month)
}

// Token returns the uniqueness token for a build at now: the first 8 hex
// digits of the SHA-256 of the second-precision timestamp and basePrompt.
func Token(basePrompt string, now time.Time) string {
	sum := sha256.Sum256([]byte(now.UTC().Truncate(time.Second).Format(time.RFC3339) + basePrompt))
	return hex.EncodeToString(sum[:])[:8]
}

func (b *Builder) build(basePrompt string, now time.Time) (Ref, error) {
	basePrompt = strings.TrimSpace(basePrompt)
	if basePrompt == "" {
		return "", errors.New("empty prompt")
	}
	base := b.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() || u.Host == "" {
		return "", errors.New("base URL must be absolute")
	}

	style, angle, lighting := b.Modifiers(now)
	prompt := strings.Join([]string{
		basePrompt, style, angle, lighting, now.UTC().Format("January 2 2006"),
	}, ", ")

	q := url.Values{}
	q.Set("width", strconv.Itoa(orDefault(b.Width)))
	q.Set("height", strconv.Itoa(orDefault(b.Height)))
	q.Set("nologo", "true")
	q.Set("enhance", "true")
	q.Set("seed", Token(basePrompt, now))

	path := strings.TrimSuffix(u.EscapedPath(), "/") + "/" + url.PathEscape(prompt)
	return Ref(u.Scheme + "://" + u.Host + path + "?" + q.Encode()), nil
}

func (b *Builder) placeholder() Ref {
	if b.Placeholder != "" {
		return b.Placeholder
	}
	return DefaultPlaceholder
}

func pick(list, fallback []string, n int) string {
	if len(list) == 0 {
		list = fallback
	}
	return list[n%len(list)]
}

func orDefault(n int) int {
	if n <= 0 {
		return DefaultSize
	}
	return n
}
