// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package mgrs converts between WGS84 latitude/longitude and Military Grid
// Reference System (MGRS) strings.
//
// Latitudes from 80°S to 84°N use the UTM grid with a zone number and
// latitude band, for example "31NAA6602100000". The polar caps use the UPS
// grid with bands A and B in the south and Y and Z in the north, for example
// "ZAH0000000000" for the North Pole.
//
// [Encode] produces 1 m precision (five digits per axis) by truncation, so a
// grid reference always names the cell that contains the point. [Decode]
// accepts any precision from 100 km down to 1 m and returns the south-west
// corner of the cell.
package mgrs

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrInvalid is returned by Decode for malformed grid references.
	ErrInvalid = errors.New("invalid MGRS reference")
	// ErrOutOfRange is returned by Encode for coordinates outside valid
	// latitude/longitude bounds.
	ErrOutOfRange = errors.New("coordinate out of range")
)

const (
	minLat = -80.0
	maxLat = 84.0

	// Band letters from 80°S in 8° steps; X spans 12°.
	bands = "CDEFGHJKLMNPQRSTUVWX"
	// Row letters cycle every 2,000 km of northing.
	rows = "ABCDEFGHJKLMNPQRSTUV"

	gridSquare   = 100_000.0
	rowCycle     = 2_000_000.0
	falseEasting = 500_000.0
	falseNorth   = 10_000_000.0
)

// Column letters, selected by (zone-1)%3.
var columns = [3]string{"ABCDEFGH", "JKLMNPQR", "STUVWXYZ"}

// Encode returns the 1 m precision MGRS reference for the point, for example
// "31NAA6602100000" for (0, 0).
func Encode(lat, lon float64) (string, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("%w: (%v, %v)", ErrOutOfRange, lat, lon)
	}
	if lat < minLat || lat > maxLat {
		return encodePolar(lat, lon)
	}

	if lon == 180 {
		lon = -180
	}
	zone := zoneOf(lat, lon)
	x, y := toUTM(lat, lon, zone)

	col := int(x/gridSquare) - 1
	set := columns[(zone-1)%3]
	if col < 0 || col >= len(set) {
		// Only reachable through numerical edge cases far outside the zone.
		return "", fmt.Errorf("%w: easting %.0f out of zone %d", ErrOutOfRange, x, zone)
	}
	row := int(y/gridSquare) % len(rows)
	if zone%2 == 0 {
		row = (row + 5) % len(rows)
	}

	e := int(math.Floor(x)) % int(gridSquare)
	n := int(math.Floor(y)) % int(gridSquare)

	return fmt.Sprintf("%d%c%c%c%05d%05d", zone, bandOf(lat), set[col], rows[row], e, n), nil
}

var refRe = regexp.MustCompile(`^(\d{1,2})([C-HJ-NP-X])([A-HJ-NP-Z])([A-HJ-NP-V])(\d*)$`)

// Decode parses an MGRS reference and returns the latitude and longitude of
// the south-west corner of the referenced cell. Case and whitespace are
// ignored, so "4q fj 12345 67890" is accepted.
func Decode(s string) (lat, lon float64, err error) {
	ref := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)

	if m := polarRe.FindStringSubmatch(ref); m != nil {
		return decodePolar(ref, m)
	}
	m := refRe.FindStringSubmatch(ref)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	zone, _ := strconv.Atoi(m[1])
	band, colLetter, rowLetter, digits := m[2][0], m[3][0], m[4][0], m[5]

	if zone < 1 || zone > 60 {
		return 0, 0, fmt.Errorf("%w: zone %d", ErrInvalid, zone)
	}

	set := columns[(zone-1)%3]
	col := strings.IndexByte(set, colLetter)
	if col < 0 {
		return 0, 0, fmt.Errorf("%w: column %c is not used in zone %d", ErrInvalid, colLetter, zone)
	}
	row := strings.IndexByte(rows, rowLetter)
	if zone%2 == 0 {
		row = (row - 5 + len(rows)) % len(rows)
	}

	e, n, cell, err := offsets(digits)
	if err != nil {
		return 0, 0, err
	}

	bandIdx := strings.IndexByte(bands, band)
	bandMin := minLat + 8*float64(bandIdx)
	bandMax := bandMin + 8
	if band == 'X' {
		bandMax += 4
	}

	x := float64(col+1)*gridSquare + e
	y := float64(row)*gridSquare + n

	// The row letter only fixes northing modulo 2,000 km; pick the first
	// cycle that reaches the band's southern edge.
	minNorthing := 0.0
	if bandMin != 0 {
		cm := centralMeridian(zone)
		_, n0 := toUTM(bandMin, cm, zone)
		_, n6 := toUTM(bandMin, cm+6, zone)
		minNorthing = min(n0, n6)
	}
	for y+cell <= minNorthing {
		y += rowCycle
	}

	lat, lon = fromUTM(x, y, zone, band >= 'N')

	tol := 0.5 + cell/111_000
	if math.IsNaN(lat) || lat < bandMin-tol || lat > bandMax+tol {
		return 0, 0, fmt.Errorf("%w: %s is outside latitude band %c", ErrInvalid, ref, band)
	}
	return lat, lon, nil
}

// offsets splits the numeric part of a reference into easting and northing
// within the 100 km square, in meters, along with the cell size.
func offsets(digits string) (e, n, cell float64, err error) {
	if len(digits)%2 != 0 || len(digits) > 10 {
		return 0, 0, 0, fmt.Errorf("%w: %d digits", ErrInvalid, len(digits))
	}
	half := len(digits) / 2
	cell = math.Pow10(5 - half)
	if half > 0 {
		ei, _ := strconv.Atoi(digits[:half])
		ni, _ := strconv.Atoi(digits[half:])
		e, n = float64(ei)*cell, float64(ni)*cell
	}
	return e, n, cell, nil
}

func bandOf(lat float64) byte {
	return bands[min(int(math.Floor((lat-minLat)/8)), len(bands)-1)]
}

// zoneOf returns the UTM zone for a point, applying the Norway and Svalbard
// exceptions.
func zoneOf(lat, lon float64) int {
	zone := int(math.Floor((lon+180)/6)) + 1
	if lat >= 56 && lat < 64 && lon >= 3 && lon < 12 {
		return 32
	}
	if lat >= 72 && lat <= 84 && lon >= 0 {
		switch {
		case lon < 9:
			return 31
		case lon < 21:
			return 33
		case lon < 33:
			return 35
		case lon < 42:
			return 37
		}
	}
	return zone
}

func centralMeridian(zone int) float64 { return float64(zone-1)*6 - 180 + 3 }
