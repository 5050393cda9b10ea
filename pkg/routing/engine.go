package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"golang.org/x/exp/slog"

	"taxi_router/pkg/ch"
	"taxi_router/pkg/geo"
	"taxi_router/pkg/graph"
)

// ErrPointTooFar is returned when the query point is too far from any road.
var ErrPointTooFar = errors.New("point too far from road")

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// Point returns p as a planar (lon, lat) point.
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// RouteResult is the output of a route query.
type RouteResult struct {
	LengthMeters float64

	// Nodes is the node-to-node part of the route as graph indices; empty
	// when both points lie on one edge. NodeIDs holds the same nodes as
	// OSM identifiers.
	Nodes   []uint32
	NodeIDs []osm.NodeID

	// Partial edges in (lon, lat) order, nil when absent. OrigPartialEdge
	// runs towards the route, DestPartialEdge away from it. On a same-edge
	// route OrigPartialEdge runs from origin to destination.
	OrigPartialEdge orb.LineString
	DestPartialEdge orb.LineString

	OrigEdge graph.EdgeRef
	DestEdge graph.EdgeRef
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, start, end LatLng) (*RouteResult, error)
}

// EngineConfig tunes an Engine.
type EngineConfig struct {
	// Distance measures partial edges. Defaults to geo.GreatCircle.
	Distance geo.DistanceFunc
	// MaxSnapMeters rejects points farther than this from their nearest
	// edge. Zero disables the check.
	MaxSnapMeters float64
	// Hierarchy, when set, answers node-to-node searches instead of plain
	// Dijkstra. It must be contracted from the same graph.
	Hierarchy *ch.Hierarchy
}

// Engine implements Router over a street multigraph.
type Engine struct {
	g       *graph.Graph
	index   *EdgeIndex
	paths   PathSearcher
	dist    geo.DistanceFunc
	maxSnap float64
}

// NewEngine validates g and builds its spatial index.
func NewEngine(g *graph.Graph, cfg EngineConfig) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", graph.ErrGraphMalformed)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	dist := cfg.Distance
	if dist == nil {
		dist = geo.GreatCircle
	}

	var paths PathSearcher = NewPathFinder(g)
	if cfg.Hierarchy != nil {
		if cfg.Hierarchy.NumNodes != g.NumNodes {
			return nil, fmt.Errorf("%w: hierarchy has %d nodes, graph has %d",
				graph.ErrGraphMalformed, cfg.Hierarchy.NumNodes, g.NumNodes)
		}
		paths = NewHierarchyFinder(cfg.Hierarchy)
	}

	return &Engine{
		g:       g,
		index:   NewEdgeIndex(g),
		paths:   paths,
		dist:    dist,
		maxSnap: cfg.MaxSnapMeters,
	}, nil
}

// Graph returns the graph the engine routes over.
func (e *Engine) Graph() *graph.Graph { return e.g }

// Route computes the exact route between two arbitrary points: the shortest
// node path between their nearest edges plus the partial edges that connect
// each point to it.
func (e *Engine) Route(ctx context.Context, start, end LatLng) (*RouteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orig, dest := start.Point(), end.Point()
	snaps, err := e.index.NearestEdges([]orb.Point{orig, dest})
	if err != nil {
		return nil, err
	}
	origSnap, destSnap := snaps[0], snaps[1]
	if e.maxSnap > 0 {
		if origSnap.Dist > e.maxSnap {
			return nil, fmt.Errorf("%w: origin is %.0f m from the nearest road", ErrPointTooFar, origSnap.Dist)
		}
		if destSnap.Dist > e.maxSnap {
			return nil, fmt.Errorf("%w: destination is %.0f m from the nearest road", ErrPointTooFar, destSnap.Dist)
		}
	}

	var result *RouteResult
	if origSnap.Edge.SameNodes(destSnap.Edge) {
		result, err = e.routeSameEdge(origSnap, orig, dest)
	} else {
		result, err = e.routeCrossEdge(ctx, origSnap, destSnap, orig, dest)
	}
	if err != nil {
		return nil, err
	}

	result.OrigEdge = origSnap.Edge
	result.DestEdge = destSnap.Edge
	result.NodeIDs = make([]osm.NodeID, len(result.Nodes))
	for i, n := range result.Nodes {
		result.NodeIDs[i] = e.g.NodeID[n]
	}

	slog.Debug("Route computed",
		"orig_edge", origSnap.Edge.String(),
		"dest_edge", destSnap.Edge.String(),
		"nodes", len(result.Nodes),
		"length_m", result.LengthMeters,
	)
	return result, nil
}

// routeSameEdge handles two points whose nearest edges join the same node
// pair: the route is the stretch of the origin edge between them.
func (e *Engine) routeSameEdge(snap Snap, orig, dest orb.Point) (*RouteResult, error) {
	edge := e.index.Geometry(snap.EdgeIdx)

	tOrig, err := geo.Project(edge, orig)
	if err != nil {
		return nil, err
	}
	tDest, err := geo.Project(edge, dest)
	if err != nil {
		return nil, err
	}

	partial, err := geo.Substring(edge, tOrig, tDest)
	if err != nil {
		return nil, err
	}

	return &RouteResult{
		LengthMeters:    LineLength(partial, e.dist),
		OrigPartialEdge: partial,
	}, nil
}

// routeCrossEdge searches from each end of the origin edge to the opposite
// end of the destination edge and routes along the nodes both paths share.
func (e *Engine) routeCrossEdge(ctx context.Context, origSnap, destSnap Snap, orig, dest orb.Point) (*RouteResult, error) {
	r1, _, err := e.paths.ShortestPath(ctx, origSnap.Edge.U, destSnap.Edge.V)
	if err != nil {
		return nil, err
	}
	r2, _, err := e.paths.ShortestPath(ctx, origSnap.Edge.V, destSnap.Edge.U)
	if err != nil {
		return nil, err
	}

	origEdge := e.index.Geometry(origSnap.EdgeIdx)
	destEdge := e.index.Geometry(destSnap.EdgeIdx)

	if shared := sharedRoute(r1, r2); len(shared) > 0 {
		return e.resolveRoute(shared, orig, dest, origEdge, destEdge)
	}

	// The two searches share no node: take whichever full path is shorter.
	first, err := e.resolveRoute(r1, orig, dest, origEdge, destEdge)
	if err != nil {
		return nil, err
	}
	second, err := e.resolveRoute(r2, orig, dest, origEdge, destEdge)
	if err != nil {
		return nil, err
	}
	if second.LengthMeters < first.LengthMeters {
		return second, nil
	}
	return first, nil
}

// resolveRoute attaches partial edges to both ends of a node path.
func (e *Engine) resolveRoute(nodes []uint32, orig, dest orb.Point, origEdge, destEdge orb.LineString) (*RouteResult, error) {
	origPartial, err := ResolvePartialEdge(e.g.NodePoint(nodes[0]), orig, origEdge, Towards)
	if err != nil {
		return nil, err
	}
	destPartial, err := ResolvePartialEdge(e.g.NodePoint(nodes[len(nodes)-1]), dest, destEdge, Away)
	if err != nil {
		return nil, err
	}

	length, err := routeLength(e.g, e.dist, nodes, origPartial, destPartial)
	if err != nil {
		return nil, err
	}
	return &RouteResult{
		LengthMeters:    length,
		Nodes:           nodes,
		OrigPartialEdge: origPartial,
		DestPartialEdge: destPartial,
	}, nil
}

// sharedRoute returns the nodes of r1 that also appear in r2, in r1 order.
func sharedRoute(r1, r2 []uint32) []uint32 {
	in := make(map[uint32]struct{}, len(r2))
	for _, n := range r2 {
		in[n] = struct{}{}
	}
	var shared []uint32
	for _, n := range r1 {
		if _, ok := in[n]; ok {
			shared = append(shared, n)
		}
	}
	return shared
}
