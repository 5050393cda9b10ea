package routing

import (
	"fmt"

	"github.com/paulmach/orb"

	"taxi_router/pkg/geo"
	"taxi_router/pkg/graph"
)

// LineLength sums dist over consecutive points of a (lon, lat) line.
// A nil line has length 0.
func LineLength(ls orb.LineString, dist geo.DistanceFunc) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += dist(ls[i-1][1], ls[i-1][0], ls[i][1], ls[i][0])
	}
	return total
}

// PathLength sums stored edge lengths along a node path, taking the shortest
// parallel edge between each pair. Paths with fewer than two nodes have
// length 0.
func PathLength(g *graph.Graph, nodes []uint32) (float64, error) {
	var total float64
	for i := 1; i < len(nodes); i++ {
		e := g.MinEdge(nodes[i-1], nodes[i])
		if e == graph.NoEdge {
			return 0, fmt.Errorf("%w: no edge %d -> %d", graph.ErrGraphMalformed, g.NodeID[nodes[i-1]], g.NodeID[nodes[i]])
		}
		total += g.Length[e]
	}
	return total, nil
}

// routeLength is the total length of a route: its node path plus any
// partial edges.
func routeLength(g *graph.Graph, dist geo.DistanceFunc, nodes []uint32, partials ...orb.LineString) (float64, error) {
	total, err := PathLength(g, nodes)
	if err != nil {
		return 0, err
	}
	for _, ls := range partials {
		total += LineLength(ls, dist)
	}
	return total, nil
}
