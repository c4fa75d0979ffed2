// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package mgrs

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Universal Polar Stereographic on the WGS84 ellipsoid, after Snyder,
// pp. 160-162. Both poles sit at (2,000 km, 2,000 km).

const (
	upsScale  = 0.994
	upsOrigin = 2_000_000.0
)

var (
	ecc  = math.Sqrt(e2)
	upsK = 2 * semiMajor * upsScale / math.Sqrt(math.Pow(1+ecc, 1+ecc)*math.Pow(1-ecc, 1-ecc))
)

// polarSheet is one of the four polar grid areas: west and east of the
// 0°/180° meridian in each hemisphere.
type polarSheet struct {
	band       byte
	columns    string
	rows       string
	minE, minN float64
}

// Columns skip D, E, M, N, O, V and W. Rows skip I and O.
var polarSheets = [...]polarSheet{
	{band: 'A', columns: "JKLPQRSTUXYZ", rows: "ABCDEFGHJKLMNPQRSTUVWXYZ", minE: 800_000, minN: 800_000},
	{band: 'B', columns: "ABCFGHJKLPQR", rows: "ABCDEFGHJKLMNPQRSTUVWXYZ", minE: 2_000_000, minN: 800_000},
	{band: 'Y', columns: "JKLPQRSTUXYZ", rows: "ABCDEFGHJKLMNP", minE: 800_000, minN: 1_300_000},
	{band: 'Z', columns: "ABCFGHJ", rows: "ABCDEFGHJKLMNP", minE: 2_000_000, minN: 1_300_000},
}

func sheetOf(band byte) *polarSheet {
	for i := range polarSheets {
		if polarSheets[i].band == band {
			return &polarSheets[i]
		}
	}
	return nil
}

var polarRe = regexp.MustCompile(`^([ABYZ])([A-Z])([A-Z])(\d*)$`)

// encodePolar formats a point north of 84°N or south of 80°S.
func encodePolar(lat, lon float64) (string, error) {
	x, y := toUPS(lat, lon)

	band := byte('A')
	if lat > 0 {
		band = 'Y'
	}
	if x >= upsOrigin {
		band++
	}
	s := sheetOf(band)

	col := int(math.Floor((x - s.minE) / gridSquare))
	row := int(math.Floor((y - s.minN) / gridSquare))
	if col < 0 || col >= len(s.columns) || row < 0 || row >= len(s.rows) {
		return "", fmt.Errorf("%w: (%.0f, %.0f) outside polar sheet %c", ErrOutOfRange, x, y, band)
	}

	e := int(math.Floor(x)) % int(gridSquare)
	n := int(math.Floor(y)) % int(gridSquare)

	return fmt.Sprintf("%c%c%c%05d%05d", band, s.columns[col], s.rows[row], e, n), nil
}

// decodePolar handles a reference already matched by polarRe.
func decodePolar(ref string, m []string) (lat, lon float64, err error) {
	s := sheetOf(m[1][0])
	col := strings.IndexByte(s.columns, m[2][0])
	if col < 0 {
		return 0, 0, fmt.Errorf("%w: column %c is not used in polar band %c", ErrInvalid, m[2][0], s.band)
	}
	row := strings.IndexByte(s.rows, m[3][0])
	if row < 0 {
		return 0, 0, fmt.Errorf("%w: row %c is not used in polar band %c", ErrInvalid, m[3][0], s.band)
	}
	e, n, _, err := offsets(m[4])
	if err != nil {
		return 0, 0, err
	}

	x := s.minE + float64(col)*gridSquare + e
	y := s.minN + float64(row)*gridSquare + n
	lat, lon = fromUPS(x, y, s.band >= 'Y')
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalid, ref)
	}
	return lat, lon, nil
}

// toUPS projects a point onto the polar sheet of its hemisphere.
func toUPS(lat, lon float64) (easting, northing float64) {
	phi := rad(math.Abs(lat))
	es := ecc * math.Sin(phi)
	t := math.Tan(math.Pi/4-phi/2) / math.Pow((1-es)/(1+es), ecc/2)
	rho := upsK * t

	lam := rad(lon)
	easting = upsOrigin + rho*math.Sin(lam)
	if lat >= 0 {
		northing = upsOrigin - rho*math.Cos(lam)
	} else {
		northing = upsOrigin + rho*math.Cos(lam)
	}
	return easting, northing
}

// fromUPS is the inverse of toUPS. Latitude is found by fixed-point
// iteration, which converges in a handful of steps.
func fromUPS(easting, northing float64, north bool) (lat, lon float64) {
	dx, dy := easting-upsOrigin, northing-upsOrigin
	if north {
		dy = -dy
	}
	rho := math.Hypot(dx, dy)
	if rho == 0 {
		if north {
			return 90, 0
		}
		return -90, 0
	}

	t := rho / upsK
	phi := math.Pi/2 - 2*math.Atan(t)
	for range 10 {
		es := ecc * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), ecc/2))
		done := math.Abs(next-phi) < 1e-12
		phi = next
		if done {
			break
		}
	}

	lat, lon = deg(phi), deg(math.Atan2(dx, dy))
	if !north {
		lat = -lat
	}
	return lat, lon
}
