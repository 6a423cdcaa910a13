// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package imageref

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/greekangels/cryptodigest/internal/testutil"
)

const prompt = "bitcoin coin on a trading desk"

var now = time.Date(2026, time.March, 9, 17, 0, 0, 0, time.UTC)

func TestBuild(t *testing.T) {
	t.Parallel()

	ref := new(Builder).Build(prompt, now)
	u, err := url.Parse(string(ref))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, u.Scheme, "https")
	testutil.AssertEqual(t, u.Host, "image.pollinations.ai")

	q := u.Query()
	testutil.AssertEqual(t, q.Get("width"), "1024")
	testutil.AssertEqual(t, q.Get("height"), "1024")
	testutil.AssertEqual(t, q.Get("nologo"), "true")
	testutil.AssertEqual(t, q.Get("enhance"), "true")
	testutil.AssertEqual(t, q.Get("seed"), Token(prompt, now))
	testutil.AssertEqual(t, len(q.Get("seed")), 8)

	// Day 9, month 3: style 9%5=4, angle 3%5=3, lighting 12%5=2.
	wantPath := "/prompt/" + strings.Join([]string{
		prompt, DefaultStyles[4], DefaultAngles[3], DefaultLighting[2], "March 9 2026",
	}, ", ")
	testutil.AssertEqual(t, u.Path, wantPath)
	if strings.Contains(u.RawPath+u.EscapedPath(), " ") {
		t.Fatalf("path is not percent-encoded: %s", ref)
	}
}

func TestBuildUniquePerSecond(t *testing.T) {
	t.Parallel()

	b := new(Builder)
	first := b.Build(prompt, now)
	second := b.Build(prompt, now.Add(time.Second))
	if first == second {
		t.Fatalf("builds one second apart share a URL: %s", first)
	}
	if Token(prompt, now) == Token(prompt, now.Add(time.Second)) {
		t.Fatal("tokens one second apart are equal")
	}
	// Sub-second differences do not change the token.
	testutil.AssertEqual(t, Token(prompt, now), Token(prompt, now.Add(500*time.Millisecond)))
	testutil.AssertEqual(t, b.Build(prompt, now), first)
}

func TestModifiersRotation(t *testing.T) {
	t.Parallel()

	b := &Builder{
		Styles:   []string{"a", "b"},
		Angles:   []string{"x", "y", "z"},
		Lighting: []string{"l"},
	}
	style, angle, lighting := b.Modifiers(time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC))
	testutil.AssertEqual(t, []string{style, angle, lighting}, []string{"b", "y", "l"})

	// Time zones are normalized to UTC before picking.
	loc := time.FixedZone("UTC+3", 3*60*60)
	s1, a1, l1 := b.Modifiers(time.Date(2026, time.February, 1, 1, 0, 0, 0, loc))
	s2, a2, l2 := b.Modifiers(time.Date(2026, time.January, 31, 22, 0, 0, 0, time.UTC))
	testutil.AssertEqual(t, []string{s1, a1, l1}, []string{s2, a2, l2})
}

func TestBuildPlaceholder(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		b      *Builder
		prompt string
		want   Ref
	}{
		"empty prompt":    {b: new(Builder), prompt: "  ", want: DefaultPlaceholder},
		"relative base":   {b: &Builder{BaseURL: "/prompt/"}, prompt: prompt, want: DefaultPlaceholder},
		"invalid base":    {b: &Builder{BaseURL: "http://[::1"}, prompt: prompt, want: DefaultPlaceholder},
		"own placeholder": {b: &Builder{Placeholder: "https://example.com/x.png"}, prompt: "", want: "https://example.com/x.png"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testutil.AssertEqual(t, tc.b.Build(tc.prompt, now), tc.want)
		})
	}
}

func TestBuildCustomBase(t *testing.T) {
	t.Parallel()

	b := &Builder{BaseURL: "http://127.0.0.1:8080/img", Width: 512, Height: 256}
	u, err := url.Parse(string(b.Build(prompt, now)))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, u.Host, "127.0.0.1:8080")
	if !strings.HasPrefix(u.Path, "/img/"+prompt) {
		t.Fatalf("unexpected path %q", u.Path)
	}
	testutil.AssertEqual(t, u.Query().Get("width"), "512")
	testutil.AssertEqual(t, u.Query().Get("height"), "256")
}
