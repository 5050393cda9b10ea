package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// ErrGraphMalformed is returned when required node or edge attributes are
// missing or inconsistent.
var ErrGraphMalformed = errors.New("graph malformed")

// NoEdge marks a missing edge index.
const NoEdge = ^uint32(0)

// Graph is a directed street multigraph in CSR (Compressed Sparse Row) format.
// Several edges may connect the same node pair; they are told apart by Key.
type Graph struct {
	NumNodes uint32
	NumEdges uint32
	NodeID   []osm.NodeID // len: NumNodes; external node identifier
	NodeLat  []float64    // len: NumNodes
	NodeLon  []float64    // len: NumNodes
	FirstOut []uint32     // len: NumNodes + 1; FirstOut[i]..FirstOut[i+1] are edges from node i
	Head     []uint32     // len: NumEdges; target node for each edge
	Key      []uint32     // len: NumEdges; parallel-edge key, unique per (tail, head)
	Length   []float64    // len: NumEdges; meters

	// Edge geometry including both endpoints, (lon, lat) order.
	// GeoFirstOut[i]..GeoFirstOut[i+1] indexes into GeoShapeLat/Lon for edge i;
	// an empty range means the edge is a straight line between its nodes.
	GeoFirstOut []uint32 // len: NumEdges + 1
	GeoShapeLat []float64
	GeoShapeLon []float64
}

// EdgeRef identifies a directed edge by its endpoints and parallel-edge key.
type EdgeRef struct {
	U, V uint32
	Key  uint32
}

// SameNodes reports whether r and o connect the same unordered node pair.
func (r EdgeRef) SameNodes(o EdgeRef) bool {
	return (r.U == o.U && r.V == o.V) || (r.U == o.V && r.V == o.U)
}

func (r EdgeRef) String() string {
	return fmt.Sprintf("(%d, %d, %d)", r.U, r.V, r.Key)
}

// EdgesFrom returns the range of edge indices for edges originating from node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// Tail returns the source node of edge e.
func (g *Graph) Tail(e uint32) uint32 {
	// First node whose range ends past e.
	u := sort.Search(int(g.NumNodes), func(i int) bool {
		return g.FirstOut[i+1] > e
	})
	return uint32(u)
}

// Ref returns the EdgeRef of edge e.
func (g *Graph) Ref(e uint32) EdgeRef {
	return EdgeRef{U: g.Tail(e), V: g.Head[e], Key: g.Key[e]}
}

// FindEdge returns the index of edge (u, v, key), or NoEdge.
func (g *Graph) FindEdge(ref EdgeRef) uint32 {
	if ref.U >= g.NumNodes {
		return NoEdge
	}
	start, end := g.EdgesFrom(ref.U)
	for e := start; e < end; e++ {
		if g.Head[e] == ref.V && g.Key[e] == ref.Key {
			return e
		}
	}
	return NoEdge
}

// MinEdge returns the shortest of the parallel edges u→v, or NoEdge.
func (g *Graph) MinEdge(u, v uint32) uint32 {
	best := NoEdge
	start, end := g.EdgesFrom(u)
	for e := start; e < end; e++ {
		if g.Head[e] != v {
			continue
		}
		if best == NoEdge || g.Length[e] < g.Length[best] {
			best = e
		}
	}
	return best
}

// NodePoint returns the planar (lon, lat) position of node u.
func (g *Graph) NodePoint(u uint32) orb.Point {
	return orb.Point{g.NodeLon[u], g.NodeLat[u]}
}

// EdgeGeometry returns a copy of the shape of edge e in (lon, lat) order.
// Edges without stored geometry are the straight line between their nodes.
func (g *Graph) EdgeGeometry(e uint32) orb.LineString {
	if g.GeoFirstOut != nil {
		start, end := g.GeoFirstOut[e], g.GeoFirstOut[e+1]
		if end > start {
			ls := make(orb.LineString, 0, end-start)
			for k := start; k < end; k++ {
				ls = append(ls, orb.Point{g.GeoShapeLon[k], g.GeoShapeLat[k]})
			}
			return ls
		}
	}
	return orb.LineString{g.NodePoint(g.Tail(e)), g.NodePoint(g.Head[e])}
}

// PathGeometry returns the shape of the node path, using the shortest
// parallel edge between each consecutive pair.
func (g *Graph) PathGeometry(nodes []uint32) (orb.LineString, error) {
	if len(nodes) < 2 {
		return nil, nil
	}

	ls := orb.LineString{g.NodePoint(nodes[0])}
	for i := 0; i < len(nodes)-1; i++ {
		e := g.MinEdge(nodes[i], nodes[i+1])
		if e == NoEdge {
			return nil, fmt.Errorf("%w: no edge %d -> %d", ErrGraphMalformed, nodes[i], nodes[i+1])
		}
		// The first point repeats the previous node.
		ls = append(ls, g.EdgeGeometry(e)[1:]...)
	}
	return ls, nil
}

// Validate checks that the attributes routing depends on are present.
func (g *Graph) Validate() error {
	if err := validateCSR(g.FirstOut, g.Head, g.NumNodes); err != nil {
		return fmt.Errorf("%w: %v", ErrGraphMalformed, err)
	}
	if g.NumEdges != uint32(len(g.Head)) {
		return fmt.Errorf("%w: NumEdges %d != len(Head) %d", ErrGraphMalformed, g.NumEdges, len(g.Head))
	}
	n := int(g.NumNodes)
	if len(g.NodeLat) != n || len(g.NodeLon) != n || len(g.NodeID) != n {
		return fmt.Errorf("%w: node attribute lengths do not match %d nodes", ErrGraphMalformed, n)
	}
	for i := 0; i < n; i++ {
		if !finite(g.NodeLat[i]) || !finite(g.NodeLon[i]) {
			return fmt.Errorf("%w: node %d has no coordinates", ErrGraphMalformed, g.NodeID[i])
		}
	}

	m := int(g.NumEdges)
	if len(g.Length) != m || len(g.Key) != m {
		return fmt.Errorf("%w: edge attribute lengths do not match %d edges", ErrGraphMalformed, m)
	}
	for e, l := range g.Length {
		if !finite(l) || l < 0 {
			return fmt.Errorf("%w: edge %d has invalid length %v", ErrGraphMalformed, e, l)
		}
	}

	if g.GeoFirstOut == nil {
		return nil
	}
	if len(g.GeoFirstOut) != m+1 {
		return fmt.Errorf("%w: GeoFirstOut length %d != NumEdges+1", ErrGraphMalformed, len(g.GeoFirstOut))
	}
	if len(g.GeoShapeLat) != len(g.GeoShapeLon) || int(g.GeoFirstOut[m]) != len(g.GeoShapeLat) {
		return fmt.Errorf("%w: geometry arrays inconsistent", ErrGraphMalformed)
	}
	for e := 0; e < m; e++ {
		start, end := g.GeoFirstOut[e], g.GeoFirstOut[e+1]
		if end < start || end-start == 1 {
			return fmt.Errorf("%w: edge %d has %d geometry points", ErrGraphMalformed, e, int(end)-int(start))
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
