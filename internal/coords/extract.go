// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package coords

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Strategy finds a coordinate pair in one particular URL shape.
type Strategy interface {
	// Name identifies the strategy in logs and tests.
	Name() string
	// Match returns the coordinate found in s. It reports false if the shape
	// is absent or the pair is out of range.
	Match(s string) (Coordinate, bool)
}

// Strategies is the ordered list used by [Extract]. The first strategy that
// matches wins.
var Strategies = []Strategy{
	regexpStrategy{
		name: "at-or-path",
		// Either branch may match; the leftmost match wins.
		re: regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)|/(-?\d+\.\d+),(-?\d+\.\d+)`),
	},
	regexpStrategy{
		name: "search-path",
		re:   regexp.MustCompile(`/search/(-?\d+\.\d+),\+?(-?\d+\.\d+)`),
	},
	QueryParam("query"),
}

// Extract returns the first coordinate found in s by [Strategies], or
// [ErrNotFound].
//
// Numbers must have a fractional part: "@45,30" is not a coordinate.
func Extract(s string) (Coordinate, error) {
	c, _, err := ExtractWith(Strategies, s)
	return c, err
}

// ExtractWith is like [Extract] but uses the given strategies and also
// returns the name of the strategy that matched.
func ExtractWith(strategies []Strategy, s string) (Coordinate, string, error) {
	for _, st := range strategies {
		if c, ok := st.Match(s); ok {
			return c, st.Name(), nil
		}
	}
	return Coordinate{}, "", ErrNotFound
}

type regexpStrategy struct {
	name string
	re   *regexp.Regexp
}

func (s regexpStrategy) Name() string { return s.name }

func (s regexpStrategy) Match(in string) (Coordinate, bool) {
	m := s.re.FindStringSubmatch(in)
	if m == nil {
		return Coordinate{}, false
	}
	// Alternations leave the unmatched branch's groups empty; take the first
	// non-empty pair.
	for i := 1; i+1 < len(m); i += 2 {
		if m[i] != "" {
			return parsePair(m[i], m[i+1])
		}
	}
	return Coordinate{}, false
}

var pairPrefixRe = regexp.MustCompile(`^(-?\d+\.\d+),(-?\d+\.\d+)`)

// QueryParam returns a strategy that reads the first value of the named
// query parameter, which must begin with "lat,lon".
func QueryParam(name string) Strategy { return queryStrategy(name) }

type queryStrategy string

func (q queryStrategy) Name() string { return "query-param:" + string(q) }

func (q queryStrategy) Match(in string) (Coordinate, bool) {
	_, query, ok := strings.Cut(in, "?")
	if !ok {
		return Coordinate{}, false
	}
	query, _, _ = strings.Cut(query, "#")

	// Malformed pairs are skipped; the rest are still usable.
	values, _ := url.ParseQuery(query)
	vs := values[string(q)]
	if len(vs) == 0 {
		return Coordinate{}, false
	}
	m := pairPrefixRe.FindStringSubmatch(vs[0])
	if m == nil {
		return Coordinate{}, false
	}
	return parsePair(m[1], m[2])
}

func parsePair(latStr, lonStr string) (Coordinate, bool) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return Coordinate{}, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return Coordinate{}, false
	}
	c := Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return Coordinate{}, false
	}
	return c, true
}
