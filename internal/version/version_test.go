// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package version

import (
	"runtime/debug"
	"testing"

	"go.gridlink.dev/tools/internal/testutil"
)

func TestLoadInfo(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		bi          *debug.BuildInfo
		ok          bool
		wantName    string
		wantVersion string
		wantCommit  string
	}{
		"release": {
			bi: &debug.BuildInfo{
				Path: "go.gridlink.dev/tools/cmd/mgrsbot",
				Main: debug.Module{Version: "v1.2.3"},
			},
			ok:          true,
			wantName:    "mgrsbot",
			wantVersion: "v1.2.3",
		},
		"devel with vcs": {
			bi: &debug.BuildInfo{
				Path: "go.gridlink.dev/tools/cmd/mgrsbot",
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "abcdef"},
					{Key: "vcs.time", Value: "2025-01-01T00:00:00Z"},
				},
			},
			ok:          true,
			wantName:    "mgrsbot",
			wantVersion: "devel",
			wantCommit:  "abcdef",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			i := loadInfo(func() (*debug.BuildInfo, bool) { return tc.bi, tc.ok })
			testutil.AssertEqual(t, i.Name, tc.wantName)
			testutil.AssertEqual(t, i.Version, tc.wantVersion)
			testutil.AssertEqual(t, i.Commit, tc.wantCommit)
		})
	}
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   Info
		want string
	}{
		"release": {
			in:   Info{Name: "mgrsbot", Version: "v1.0.0"},
			want: "mgrsbot/v1.0.0 (+https://go.gridlink.dev/tools)",
		},
		"devel uses commit": {
			in:   Info{Name: "mgrsbot", Version: "devel", Commit: "abcdef"},
			want: "mgrsbot/abcdef (+https://go.gridlink.dev/tools)",
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

	i := Info{
		Name:    "mgrsbot",
		Version: "v1.0.0",
		Commit:  "abcdef",
		BuiltAt: "2025-01-01T00:00:00Z",
		Go:      "go1.24.0",
		OS:      "linux",
		Arch:    "amd64",
	}
	want := "mgrsbot v1.0.0 (go1.24.0, linux/amd64)\ncommit abcdef\nbuilt at 2025-01-01T00:00:00Z\n"
	testutil.AssertEqual(t, i.String(), want)
}
