// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package coords extracts coordinates from Google Maps URLs, builds Maps
// search links and adapts the MGRS codec to the [Coordinate] type.
package coords

import (
	"errors"
	"fmt"
	"strconv"

	"go.gridlink.dev/tools/internal/mgrs"
)

// Coordinate is a point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether c lies within latitude [-90, 90] and longitude
// [-180, 180].
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// String formats c as "lat,lon" using the shortest decimal representation of
// each value.
func (c Coordinate) String() string {
	return formatDegrees(c.Lat) + "," + formatDegrees(c.Lon)
}

func formatDegrees(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

var (
	// ErrNotFound means no coordinates could be found in the input.
	ErrNotFound = errors.New("no coordinates found")
	// ErrInvalidMGRS means the input is not a valid MGRS reference.
	ErrInvalidMGRS = errors.New("invalid MGRS reference")
)

// MapsLinkPrefix is the canonical Google Maps search URL that [MapsLink]
// appends "lat,lon" to.
const MapsLinkPrefix = "https://www.google.com/maps/search/?api=1&query="

// MapsLink returns the Google Maps search URL for c, for example
// "https://www.google.com/maps/search/?api=1&query=50.45,30.52".
func MapsLink(c Coordinate) string { return MapsLinkPrefix + c.String() }

// ToMGRS converts c to a 1 m precision MGRS reference. Polar coordinates get
// a UPS reference such as "ZAH0000000000".
//
// The only error is [mgrs.ErrOutOfRange] for invalid coordinates, which
// [Extract] never produces.
func ToMGRS(c Coordinate) (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("converting %s to MGRS: %w", c, mgrs.ErrOutOfRange)
	}
	s, err := mgrs.Encode(c.Lat, c.Lon)
	if err != nil {
		return "", fmt.Errorf("converting %s to MGRS: %w", c, err)
	}
	return s, nil
}

// FromMGRS parses an MGRS reference and returns the south-west corner of the
// referenced cell. Every failure is reported as [ErrInvalidMGRS].
func FromMGRS(s string) (Coordinate, error) {
	lat, lon, err := mgrs.Decode(s)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrInvalidMGRS, err)
	}
	c := Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("%w: %q decodes outside valid bounds", ErrInvalidMGRS, s)
	}
	return c, nil
}
