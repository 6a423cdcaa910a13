// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/greekangels/cryptodigest/internal/testutil"
)

func TestLoadInfo(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		bi   *debug.BuildInfo
		ok   bool
		want Info
	}{
		"no build info": {
			ok:   false,
			want: Info{Version: "devel"},
		},
		"devel with vcs": {
			bi: &debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "abc123"},
					{Key: "vcs.time", Value: "2026-01-02T15:04:05Z"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			ok: true,
			want: Info{
				Version: "devel",
				Commit:  "abc123",
				BuiltAt: "2026-01-02T15:04:05Z",
				Dirty:   true,
			},
		},
		"tagged": {
			bi: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}},
			ok: true,
			want: Info{
				Version: "v1.2.3",
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := loadInfo(func() (*debug.BuildInfo, bool) { return tc.bi, tc.ok })
			// Name and runtime fields depend on the test binary.
			got.Name, got.Go, got.OS, got.Arch = "", "", "", ""
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   Info
		want string
	}{
		"tagged": {
			in:   Info{Name: "cryptodigest", Version: "v1.0.0"},
			want: "cryptodigest/v1.0.0 (+https://github.com/greekangels/cryptodigest)",
		},
		"devel uses commit": {
			in:   Info{Name: "digestbot", Version: "devel", Commit: "deadbeef"},
			want: "digestbot/deadbeef (+https://github.com/greekangels/cryptodigest)",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, userAgent(tc.in), tc.want)
		})
	}
}

func TestInfoString(t *testing.T) {
	t.Parallel()

	s := Info{Name: "cryptodigest", Version: "devel", Commit: "abc", BuiltAt: "now", Dirty: true, Go: "go1.24", OS: "linux", Arch: "amd64"}.String()
	if !strings.Contains(s, "commit abc (dirty)") {
		t.Fatalf("Info.String() = %q, want dirty commit line", s)
	}
}
