package routing

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"taxi_router/pkg/geo"
	"taxi_router/pkg/graph"
)

// ErrEmptyGraph is returned when the graph has no edges to snap to.
var ErrEmptyGraph = errors.New("graph has no edges")

// Snap is the nearest edge to a query point.
type Snap struct {
	EdgeIdx uint32        // index into the graph edge arrays
	Edge    graph.EdgeRef // (u, v, key) of EdgeIdx
	Dist    float64       // meters from the query point to the edge
}

// EdgeIndex answers nearest-edge queries over edge geometries with an
// R-tree of edge bounding boxes. Distances used for ranking are planar in
// (lon, lat) degrees, the graph's own coordinate space.
type EdgeIndex struct {
	g     *graph.Graph
	geoms []orb.LineString // per edge, cached from the graph
	tr    rtree.RTreeG[uint32]
}

// NewEdgeIndex indexes every edge of g.
func NewEdgeIndex(g *graph.Graph) *EdgeIndex {
	idx := &EdgeIndex{
		g:     g,
		geoms: make([]orb.LineString, g.NumEdges),
	}
	for e := uint32(0); e < g.NumEdges; e++ {
		ls := g.EdgeGeometry(e)
		idx.geoms[e] = ls
		b := ls.Bound()
		idx.tr.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, e)
	}
	return idx
}

// Len returns the number of indexed edges.
func (idx *EdgeIndex) Len() int { return idx.tr.Len() }

// Geometry returns the cached shape of edge e. Callers must not modify it.
func (idx *EdgeIndex) Geometry(e uint32) orb.LineString { return idx.geoms[e] }

// Nearest returns the edge closest to p, a (lon, lat) point. Equidistant
// edges resolve to the lowest edge index.
func (idx *EdgeIndex) Nearest(p orb.Point) (Snap, error) {
	if idx.tr.Len() == 0 {
		return Snap{}, ErrEmptyGraph
	}

	best := graph.NoEdge
	bestDist := math.Inf(1)

	idx.tr.Nearby(
		func(min, max [2]float64, e uint32, item bool) float64 {
			if item {
				return lineDistSq(idx.geoms[e], p)
			}
			return boxDistSq(min, max, p)
		},
		func(_, _ [2]float64, e uint32, dist float64) bool {
			if dist > bestDist {
				return false
			}
			if dist < bestDist || e < best {
				best, bestDist = e, dist
			}
			return true
		},
	)

	return Snap{
		EdgeIdx: best,
		Edge:    idx.g.Ref(best),
		Dist:    metersToLine(idx.geoms[best], p),
	}, nil
}

// NearestEdges resolves the nearest edge for each point in order.
func (idx *EdgeIndex) NearestEdges(points []orb.Point) ([]Snap, error) {
	snaps := make([]Snap, len(points))
	for i, p := range points {
		s, err := idx.Nearest(p)
		if err != nil {
			return nil, err
		}
		snaps[i] = s
	}
	return snaps, nil
}

func lineDistSq(ls orb.LineString, p orb.Point) float64 {
	best := math.Inf(1)
	for i := 1; i < len(ls); i++ {
		// Canonical endpoint order, so both directions of a street tie exactly.
		a, b := ls[i-1], ls[i]
		if b[0] < a[0] || (b[0] == a[0] && b[1] < a[1]) {
			a, b = b, a
		}
		if d := planar.DistanceFromSegmentSquared(a, b, p); d < best {
			best = d
		}
	}
	return best
}

// boxDistSq is the squared planar distance from p to the box, 0 inside it.
func boxDistSq(min, max [2]float64, p orb.Point) float64 {
	var d float64
	for i := 0; i < 2; i++ {
		switch {
		case p[i] < min[i]:
			d += (min[i] - p[i]) * (min[i] - p[i])
		case p[i] > max[i]:
			d += (p[i] - max[i]) * (p[i] - max[i])
		}
	}
	return d
}

// metersToLine returns the geographic distance in meters from p to ls.
func metersToLine(ls orb.LineString, p orb.Point) float64 {
	best := math.Inf(1)
	for i := 1; i < len(ls); i++ {
		d, _ := geo.PointToSegmentDist(p[1], p[0], ls[i-1][1], ls[i-1][0], ls[i][1], ls[i][0])
		if d < best {
			best = d
		}
	}
	return best
}
