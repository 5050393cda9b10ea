package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrDegenerateGeometry is returned for lines that cannot be projected onto:
// fewer than two points, or zero total length.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// The helpers below treat (lon, lat) degrees as a plane. That holds for the
// span of a single street edge (a few hundred meters); the error grows with
// edge length and latitude, so they must not be used for long lines.

// Length returns the planar length of ls in coordinate units.
func Length(ls orb.LineString) float64 {
	var l float64
	for i := 1; i < len(ls); i++ {
		l += planar.Distance(ls[i-1], ls[i])
	}
	return l
}

// Project returns the normalized position in [0, 1] along ls of the point
// on ls closest to p.
func Project(ls orb.LineString, p orb.Point) (float64, error) {
	if len(ls) < 2 {
		return 0, fmt.Errorf("%w: line has %d points", ErrDegenerateGeometry, len(ls))
	}

	bestDist := math.Inf(1)
	var along, total float64
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		segLen := planar.Distance(a, b)

		if d := planar.DistanceFromSegment(a, b, p); d < bestDist {
			bestDist = d
			along = total + segLen*projectionFactor(a, b, p)
		}
		total += segLen
	}

	if total == 0 {
		return 0, fmt.Errorf("%w: zero-length line", ErrDegenerateGeometry)
	}

	t := along / total
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("%w: projection parameter undefined", ErrDegenerateGeometry)
	}
	return math.Max(0, math.Min(1, t)), nil
}

// projectionFactor returns the clamped position of p's projection on AB.
func projectionFactor(a, b, p orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return 0
	}

	r := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	if r <= 0 {
		return 0
	}
	if r >= 1 {
		return 1
	}
	return r
}

// Interpolate returns the point at planar distance d along ls.
// Distances outside [0, Length(ls)] clamp to the endpoints.
func Interpolate(ls orb.LineString, d float64) orb.Point {
	if len(ls) == 0 {
		return orb.Point{}
	}
	if d <= 0 {
		return ls[0]
	}

	var cum float64
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		segLen := planar.Distance(a, b)
		if cum+segLen >= d && segLen > 0 {
			f := (d - cum) / segLen
			return orb.Point{a[0] + f*(b[0]-a[0]), a[1] + f*(b[1]-a[1])}
		}
		cum += segLen
	}
	return ls[len(ls)-1]
}

// Substring returns the part of ls between normalized positions t0 and t1.
// The result runs from t0 towards t1, so t0 > t1 yields a reversed
// substring. It returns nil when both positions resolve to the same point.
func Substring(ls orb.LineString, t0, t1 float64) (orb.LineString, error) {
	if len(ls) < 2 {
		return nil, fmt.Errorf("%w: line has %d points", ErrDegenerateGeometry, len(ls))
	}
	total := Length(ls)
	if total == 0 {
		return nil, fmt.Errorf("%w: zero-length line", ErrDegenerateGeometry)
	}

	start := math.Max(0, math.Min(1, t0)) * total
	end := math.Max(0, math.Min(1, t1)) * total
	if start == end {
		return nil, nil
	}

	reverse := start > end
	if reverse {
		start, end = end, start
	}

	out := orb.LineString{Interpolate(ls, start)}
	var cum float64
	for i := 0; i < len(ls)-1; i++ {
		if start < cum && cum < end {
			out = append(out, ls[i])
		} else if cum >= end {
			break
		}
		cum += planar.Distance(ls[i], ls[i+1])
	}
	out = append(out, Interpolate(ls, end))

	if reverse {
		out.Reverse()
	}
	return out, nil
}
