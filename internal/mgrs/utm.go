// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package mgrs

import "math"

// Transverse Mercator on the WGS84 ellipsoid, using the series expansions
// from Snyder, "Map Projections: A Working Manual" (USGS 1395), pp. 61-64.

const (
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563
	scale      = 0.9996
)

var (
	e2  = flattening * (2 - flattening)
	ep2 = e2 / (1 - e2)
	e4  = e2 * e2
	e6  = e4 * e2

	m1 = 1 - e2/4 - 3*e4/64 - 5*e6/256
	m2 = 3*e2/8 + 3*e4/32 + 45*e6/1024
	m3 = 15*e4/256 + 45*e6/1024
	m4 = 35 * e6 / 3072

	e1 = (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	p2 = 3.0/2*e1 - 27.0/32*math.Pow(e1, 3)
	p3 = 21.0/16*e1*e1 - 55.0/32*math.Pow(e1, 4)
	p4 = 151.0 / 96 * math.Pow(e1, 3)
	p5 = 1097.0 / 512 * math.Pow(e1, 4)
)

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(rad float64) float64 { return rad * 180 / math.Pi }

// toUTM projects a point into the given zone. Southern hemisphere northings
// carry the 10,000 km false northing.
func toUTM(lat, lon float64, zone int) (easting, northing float64) {
	phi := rad(lat)
	sin, cos, tan := math.Sin(phi), math.Cos(phi), math.Tan(phi)

	t := tan * tan
	c := ep2 * cos * cos
	n := semiMajor / math.Sqrt(1-e2*sin*sin)
	a := cos * (rad(lon) - rad(centralMeridian(zone)))
	m := semiMajor * (m1*phi - m2*math.Sin(2*phi) + m3*math.Sin(4*phi) - m4*math.Sin(6*phi))

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	easting = scale*n*(a+(1-t+c)*a3/6+(5-18*t+t*t+72*c-58*ep2)*a5/120) + falseEasting
	northing = scale * (m + n*tan*(a2/2+(5-t+9*c+4*c*c)*a4/24+(61-58*t+t*t+600*c-330*ep2)*a6/720))
	if lat < 0 {
		northing += falseNorth
	}
	return easting, northing
}

// fromUTM is the inverse of toUTM.
func fromUTM(easting, northing float64, zone int, north bool) (lat, lon float64) {
	x := easting - falseEasting
	y := northing
	if !north {
		y -= falseNorth
	}

	mu := y / scale / (semiMajor * m1)
	phi := mu + p2*math.Sin(2*mu) + p3*math.Sin(4*mu) + p4*math.Sin(6*mu) + p5*math.Sin(8*mu)

	sin, cos, tan := math.Sin(phi), math.Cos(phi), math.Tan(phi)
	t := tan * tan
	c := ep2 * cos * cos
	es := 1 - e2*sin*sin
	n := semiMajor / math.Sqrt(es)
	r := semiMajor * (1 - e2) / math.Pow(es, 1.5)
	d := x / (n * scale)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	latRad := phi - (n*tan/r)*(d2/2-(5+3*t+10*c-4*c*c-9*ep2)*d4/24+(61+90*t+298*c+45*t*t-252*ep2-3*c*c)*d6/720)
	lonRad := (d - (1+2*t+c)*d3/6 + (5-2*c+28*t-3*c*c+8*ep2+24*t*t)*d5/120) / cos

	return deg(latRad), deg(lonRad) + centralMeridian(zone)
}
