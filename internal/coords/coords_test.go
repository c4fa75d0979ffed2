// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package coords

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"go.gridlink.dev/tools/internal/mgrs"
	"go.gridlink.dev/tools/internal/testutil"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in       string
		want     Coordinate
		strategy string
		wantErr  error
	}{
		"at sign": {
			in:       "https://maps.google.com/@50.450100,30.523400,15z",
			want:     Coordinate{50.4501, 30.5234},
			strategy: "at-or-path",
		},
		"search path with plus": {
			in:       "https://maps.google.com/maps/search/50.4,+30.5",
			want:     Coordinate{50.4, 30.5},
			strategy: "search-path",
		},
		"query param": {
			in:       "https://maps.google.com/maps?query=50.45,30.52",
			want:     Coordinate{50.45, 30.52},
			strategy: "query-param:query",
		},
		"no coordinates": {
			in:      "https://example.com/no-coords-here",
			wantErr: ErrNotFound,
		},
		"at sign beats query": {
			in:       "https://www.google.com/maps/place/X/@48.8584,2.2945,17z?query=10.5,20.5",
			want:     Coordinate{48.8584, 2.2945},
			strategy: "at-or-path",
		},
		"bare path pair": {
			in:       "https://www.google.com/maps/dir/50.1,30.2/",
			want:     Coordinate{50.1, 30.2},
			strategy: "at-or-path",
		},
		"leftmost branch wins": {
			in:       "https://www.google.com/maps/dir/1.5,2.5/@3.5,4.5,10z",
			want:     Coordinate{1.5, 2.5},
			strategy: "at-or-path",
		},
		"negative values": {
			in:       "https://www.google.com/maps/@-33.8688,151.2093,12z",
			want:     Coordinate{-33.8688, 151.2093},
			strategy: "at-or-path",
		},
		"search path without plus": {
			in:       "https://www.google.com/maps/search/-12.5,-77.25?entry=ttu",
			want:     Coordinate{-12.5, -77.25},
			strategy: "at-or-path",
		},
		"encoded query": {
			in:       "https://www.google.com/maps/search/?api=1&query=50.45%2C30.52",
			want:     Coordinate{50.45, 30.52},
			strategy: "query-param:query",
		},
		"query with trailing text": {
			in:       "https://www.google.com/maps/search/?api=1&query=50.45,30.52+Kyiv",
			want:     Coordinate{50.45, 30.52},
			strategy: "query-param:query",
		},
		"query in fragment is ignored": {
			in:      "https://www.google.com/maps#query=50.45,30.52",
			wantErr: ErrNotFound,
		},
		"other query params are ignored": {
			in:      "https://www.google.com/maps?q=50.45,30.52",
			wantErr: ErrNotFound,
		},
		"destination is ignored": {
			in:      "https://www.google.com/maps/dir/?api=1&destination=50.45,30.52",
			wantErr: ErrNotFound,
		},
		"integers are not matched": {
			in:      "https://www.google.com/maps/@45,30,10z",
			wantErr: ErrNotFound,
		},
		"out of range falls through": {
			in:       "https://www.google.com/maps/@95.5,30.5,10z?query=50.45,30.52",
			want:     Coordinate{50.45, 30.52},
			strategy: "query-param:query",
		},
		"out of range everywhere": {
			in:      "https://www.google.com/maps/@95.5,200.5,10z",
			wantErr: ErrNotFound,
		},
		"free text": {
			in:      "hello there",
			wantErr: ErrNotFound,
		},
		"empty": {
			in:      "",
			wantErr: ErrNotFound,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, strategy, err := ExtractWith(Strategies, tc.in)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, got, tc.want)
			testutil.AssertEqual(t, strategy, tc.strategy)

			// Extract agrees and is idempotent.
			for range 2 {
				again, err := Extract(tc.in)
				if err != nil {
					t.Fatal(err)
				}
				testutil.AssertEqual(t, again, tc.want)
			}
		})
	}
}

func TestStrategiesInIsolation(t *testing.T) {
	t.Parallel()

	const url = "https://www.google.com/maps/search/50.4,+30.5?query=1.5,2.5"

	cases := map[string]struct {
		strategy Strategy
		want     Coordinate
		ok       bool
	}{
		"at-or-path": {strategy: Strategies[0]},
		"search-path": {
			strategy: Strategies[1],
			want:     Coordinate{50.4, 30.5},
			ok:       true,
		},
		"query-param": {
			strategy: Strategies[2],
			want:     Coordinate{1.5, 2.5},
			ok:       true,
		},
		"custom param": {strategy: QueryParam("ll")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := tc.strategy.Match(url)
			testutil.AssertEqual(t, ok, tc.ok)
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestMapsLink(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   Coordinate
		want string
	}{
		"shortest form": {
			in:   Coordinate{50.45, 30.52},
			want: "https://www.google.com/maps/search/?api=1&query=50.45,30.52",
		},
		"negative": {
			in:   Coordinate{-33.8688, 151.2093},
			want: "https://www.google.com/maps/search/?api=1&query=-33.8688,151.2093",
		},
		"integers": {
			in:   Coordinate{0, 0},
			want: "https://www.google.com/maps/search/?api=1&query=0,0",
		},
		"full precision": {
			in:   Coordinate{41.99999797421985, -93},
			want: "https://www.google.com/maps/search/?api=1&query=41.99999797421985,-93",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, MapsLink(tc.in), tc.want)
		})
	}
}

func TestMapsLinkRoundTrip(t *testing.T) {
	t.Parallel()

	c := Coordinate{50.449994958707, 30.519993287034552}
	got, err := Extract(MapsLink(c))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, c)
}

func TestToMGRS(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   Coordinate
		want string
	}{
		"kyiv":       {in: Coordinate{50.4501, 30.5234}, want: "36UUA2418291607"},
		"arctic":     {in: Coordinate{85, 10}, want: "ZAB9645452981"},
		"near pole":  {in: Coordinate{89.9, 0}, want: "ZAG0000088897"},
		"antarctic":  {in: Coordinate{-85, 20}, want: "BBT8997721959"},
		"north pole": {in: Coordinate{90, 0}, want: "ZAH0000000000"},
		"south pole": {in: Coordinate{-90, 0}, want: "BAN0000000000"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ToMGRS(tc.in)
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, got, tc.want)
		})
	}

	t.Run("out of range", func(t *testing.T) {
		_, err := ToMGRS(Coordinate{10, 190})
		if !errors.Is(err, mgrs.ErrOutOfRange) {
			t.Fatalf("want mgrs.ErrOutOfRange, got %v", err)
		}
	})
}

func TestFromMGRS(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in      string
		want    Coordinate
		wantErr error
	}{
		"valid": {
			in:   "15TWG0000049776",
			want: Coordinate{41.99999797421985, -93},
		},
		"invalid string": {
			in:      "invalid-string-123",
			wantErr: ErrInvalidMGRS,
		},
		"bad zone": {
			in:      "99ZZZ",
			wantErr: ErrInvalidMGRS,
		},
		"odd digits": {
			in:      "31NAA123",
			wantErr: ErrInvalidMGRS,
		},
		"maps link": {
			in:      "https://maps.app.goo.gl/abc",
			wantErr: ErrInvalidMGRS,
		},
		"arctic": {
			in:   "ZGC2677330125",
			want: Coordinate{84.28723229562758, 42.24790201957596},
		},
		"south pole": {
			in:   "BAN0000000000",
			want: Coordinate{-90, 0},
		},
		"polar column outside band": {
			in:      "AAN0000000000",
			wantErr: ErrInvalidMGRS,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := FromMGRS(tc.in)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got.Lat-tc.want.Lat) > 1e-7 || math.Abs(got.Lon-tc.want.Lon) > 1e-7 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRoundTripWithinTolerance(t *testing.T) {
	t.Parallel()

	const tolerance = 1.5 // meters

	r := rand.New(rand.NewPCG(42, 7))
	for range 5000 {
		c := Coordinate{Lat: -90 + r.Float64()*180, Lon: -180 + r.Float64()*360}
		ref, err := ToMGRS(c)
		if err != nil {
			t.Fatalf("ToMGRS(%v): %v", c, err)
		}
		got, err := FromMGRS(ref)
		if err != nil {
			t.Fatalf("FromMGRS(%q): %v", ref, err)
		}
		if d := haversine(c, got); d > tolerance {
			t.Fatalf("%v -> %s -> %v: off by %.3f m", c, ref, got, d)
		}
	}
}

func haversine(a, b Coordinate) float64 {
	const r = 6371000
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat, dLon := rad(b.Lat-a.Lat), rad(b.Lon-a.Lon)
	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Pow(math.Sin(dLon/2), 2)
	return 2 * r * math.Asin(math.Sqrt(h))
}
