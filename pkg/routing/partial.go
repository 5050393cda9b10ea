package routing

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"taxi_router/pkg/geo"
)

// Mode fixes the traversal direction of a partial edge relative to the
// main route.
type Mode int

const (
	// Towards runs from the anchor point to the route.
	Towards Mode = iota
	// Away runs from the route to the anchor point.
	Away
)

func (m Mode) String() string {
	switch m {
	case Towards:
		return "towards"
	case Away:
		return "away"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ResolvePartialEdge returns the piece of edge between anchor's projection
// and the end of edge adjacent to terminus, oriented by mode. It returns nil
// when anchor projects onto an endpoint of edge.
//
// All comparisons are planar in (lon, lat) degrees.
func ResolvePartialEdge(terminus, anchor orb.Point, edge orb.LineString, mode Mode) (orb.LineString, error) {
	t, err := geo.Project(edge, anchor)
	if err != nil {
		return nil, err
	}
	if t == 0 || t == 1 {
		return nil, nil
	}

	upper, err := geo.Substring(edge, t, 1)
	if err != nil {
		return nil, err
	}
	lower, err := geo.Substring(edge, 0, t)
	if err != nil {
		return nil, err
	}
	if len(upper) < 2 || len(lower) < 2 {
		return nil, fmt.Errorf("%w: split at %v collapsed", geo.ErrDegenerateGeometry, t)
	}

	upperFirst, upperLast := endDistances(terminus, upper)
	lowerFirst, lowerLast := endDistances(terminus, lower)

	picked, first, last := upper, upperFirst, upperLast
	if min(upperFirst, upperLast) > min(lowerFirst, lowerLast) {
		picked, first, last = lower, lowerFirst, lowerLast
	}

	if (first < last && mode == Towards) || (first > last && mode == Away) {
		picked.Reverse()
	}
	return picked, nil
}

func endDistances(p orb.Point, ls orb.LineString) (first, last float64) {
	return planar.Distance(p, ls[0]), planar.Distance(p, ls[len(ls)-1])
}
