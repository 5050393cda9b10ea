package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6_371_000.0

// greatCircleRadiusMeters is the IUGG mean Earth radius. Street graphs built
// by osmnx measure edge lengths with it, so partial edges summed with
// GreatCircle stay comparable with stored edge lengths.
const greatCircleRadiusMeters = 6_371_009.0

const degToRad = math.Pi / 180

// DistanceFunc returns the distance in meters between two lat/lon points.
type DistanceFunc func(lat1, lon1, lat2, lon2 float64) float64

// Names accepted by DistanceByName.
const (
	DistanceGreatCircle     = "great_circle"
	DistanceHaversine       = "haversine"
	DistanceEquirectangular = "equirectangular"
)

// DistanceByName resolves a configured distance strategy.
func DistanceByName(name string) (DistanceFunc, error) {
	switch name {
	case DistanceGreatCircle, "":
		return GreatCircle, nil
	case DistanceHaversine:
		return Haversine, nil
	case DistanceEquirectangular:
		return EquirectangularDist, nil
	}
	return nil, fmt.Errorf("unknown distance function %q", name)
}

// GreatCircle returns the spherical distance in meters between two points
// using the arcsine form of the haversine formula.
func GreatCircle(lat1, lon1, lat2, lon2 float64) float64 {
	y1 := lat1 * degToRad
	y2 := lat2 * degToRad
	dy := y2 - y1
	dx := lon2*degToRad - lon1*degToRad

	h := math.Sin(dy/2)*math.Sin(dy/2) +
		math.Cos(y1)*math.Cos(y2)*math.Sin(dx/2)*math.Sin(dx/2)
	h = math.Min(1, h)

	return 2 * math.Asin(math.Sqrt(h)) * greatCircleRadiusMeters
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// EquirectangularDist returns an approximate distance in meters.
// Accurate to <0.1% for spans of a few kilometers away from the poles.
func EquirectangularDist(lat1, lon1, lat2, lon2 float64) float64 {
	x := (lon2 - lon1) * math.Cos((lat1+lat2)/2*math.Pi/180) * math.Pi / 180
	y := (lat2 - lat1) * math.Pi / 180
	return math.Sqrt(x*x+y*y) * earthRadiusMeters
}

// degToMeters converts degree-scaled equirectangular distances to meters.
const degToMeters = math.Pi / 180 * earthRadiusMeters

// PointToSegmentDist computes the perpendicular distance from point P to segment AB,
// and returns the projection ratio along AB (clamped to [0,1]).
// dist is in meters, ratio is in [0.0, 1.0].
func PointToSegmentDist(pLat, pLon, aLat, aLon, bLat, bLon float64) (dist float64, ratio float64) {
	cosLat := math.Cos((aLat + bLat) / 2 * math.Pi / 180)

	ax := aLon * cosLat
	ay := aLat
	bx := bLon * cosLat
	by := bLat
	px := pLon * cosLat
	py := pLat

	// Compare original coordinates: cosLat noise can make identical
	// coordinates differ by ~1e-15 once projected.
	if aLat == bLat && aLon == bLon {
		ex := px - ax
		ey := py - ay
		return math.Sqrt(ex*ex+ey*ey) * degToMeters, 0
	}

	dx := bx - ax
	dy := by - ay
	lenSq := dx*dx + dy*dy

	var t float64
	if lenSq > 0 {
		t = ((px-ax)*dx + (py-ay)*dy) / lenSq
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}

	ex := px - (ax + t*dx)
	ey := py - (ay + t*dy)
	return math.Sqrt(ex*ex+ey*ey) * degToMeters, t
}
