// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package commands

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/greekangels/cryptodigest/internal/registry"
	"github.com/greekangels/cryptodigest/internal/testutil"
)

func newDispatcher(t *testing.T) (*Dispatcher, *registry.Registry) {
	t.Helper()
	reg := registry.Open(filepath.Join(t.TempDir(), "subscribed_groups.json"))
	return New(reg, nil), reg
}

func TestParse(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in     string
		want   string
		wantOK bool
	}{
		"plain":        {in: "/help", want: "help", wantOK: true},
		"bot suffix":   {in: "/Help@DigestBot", want: "help", wantOK: true},
		"with args":    {in: "  /subscribe now please", want: "subscribe", wantOK: true},
		"not command":  {in: "hello there"},
		"empty":        {in: "   "},
		"slash only":   {in: "/"},
		"only botname": {in: "/@DigestBot"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, ok := Parse(tc.in)
			testutil.AssertEqual(t, got, tc.want)
			testutil.AssertEqual(t, ok, tc.wantOK)
		})
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	d, reg := newDispatcher(t)
	ctx := t.Context()

	reply, err := d.Handle(ctx, -100123, "/subscribe")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(reply, "✅") {
		t.Fatalf("unexpected reply %q", reply)
	}
	testutil.AssertEqual(t, reg.List(), []registry.ID{"-100123"})

	reply, err = d.Handle(ctx, -100123, "/subscribe@DigestBot")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, reply, "ℹ️ This chat is already subscribed.")
	testutil.AssertEqual(t, reg.Count(), 1)

	reply, err = d.Handle(ctx, 7, "/subscribers")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, reply, "📊 Subscribed chats: 1")

	reply, err = d.Handle(ctx, -100123, "/unsubscribe")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(reply, "👋") {
		t.Fatalf("unexpected reply %q", reply)
	}
	testutil.AssertEqual(t, reg.Count(), 0)

	reply, err = d.Handle(ctx, -100123, "/unsubscribe")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, reply, "ℹ️ This chat is not subscribed.")
}

func TestCannedReplies(t *testing.T) {
	t.Parallel()

	d, reg := newDispatcher(t)
	for _, cmd := range All {
		if cmd.Name == "subscribe" || cmd.Name == "unsubscribe" {
			continue
		}
		reply, err := d.Handle(t.Context(), 1, "/"+cmd.Name)
		if err != nil {
			t.Fatalf("/%s: %v", cmd.Name, err)
		}
		if reply == "" {
			t.Fatalf("/%s: empty reply", cmd.Name)
		}
	}
	testutil.AssertEqual(t, reg.Count(), 0)

	for _, cmd := range All {
		if !strings.Contains(helpText, "/"+cmd.Name) {
			t.Errorf("help does not mention /%s", cmd.Name)
		}
	}
}

func TestNonCommandAndUnknown(t *testing.T) {
	t.Parallel()

	d, _ := newDispatcher(t)
	reply, err := d.Handle(t.Context(), 1, "gm everyone")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, reply, "")

	reply, err = d.Handle(t.Context(), 1, "/moon")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "/help") {
		t.Fatalf("unknown command reply should point to /help: %q", reply)
	}
}

type brokenRegistry struct{}

var errDisk = errors.New("disk full")

func (brokenRegistry) Add(context.Context, registry.ID) (bool, error)    { return false, errDisk }
func (brokenRegistry) Remove(context.Context, registry.ID) (bool, error) { return false, errDisk }
func (brokenRegistry) Count() int                                        { return 0 }

func TestStorageFailure(t *testing.T) {
	t.Parallel()

	d := New(brokenRegistry{}, nil)
	for _, cmd := range []string{"/subscribe", "/unsubscribe"} {
		reply, err := d.Handle(t.Context(), 1, cmd)
		testutil.AssertErrorIs(t, err, errDisk)
		testutil.AssertEqual(t, reply, storageFailureText)
	}
}
