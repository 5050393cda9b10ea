package osm

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"golang.org/x/exp/slog"

	"taxi_router/pkg/geo"
)

// RawEdge represents a directed edge parsed from OSM data.
type RawEdge struct {
	FromNodeID osm.NodeID
	ToNodeID   osm.NodeID
	Length     float64        // meters
	Geometry   orb.LineString // full shape in (lon, lat) order; nil for a straight segment
}

// ParseResult holds the output of parsing an OSM file.
type ParseResult struct {
	Edges   []RawEdge
	NodeLat map[osm.NodeID]float64
	NodeLon map[osm.NodeID]float64
}

// carHighways lists highway tag values accessible by car.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if !carHighways[hw] {
		return false
	}

	// Skip area highways (pedestrian plazas).
	if tags.Find("area") == "yes" {
		return false
	}

	// Skip restricted access.
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}

	return true
}

// directionFlags returns (forward, backward) based on highway type and oneway tags.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	// Default: bidirectional.
	forward = true
	backward = true

	hw := tags.Find("highway")

	// Implied oneway for motorways and roundabouts.
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	// Explicit oneway tag overrides.
	oneway := tags.Find("oneway")
	switch oneway {
	case "yes", "true", "1":
		forward = true
		backward = false
	case "-1", "reverse":
		forward = false
		backward = true
	case "no":
		forward = true
		backward = true
	case "reversible":
		// Time-dependent; skip entirely.
		forward = false
		backward = false
	}

	return forward, backward
}

// wayInfo holds parsed way data collected during Pass 1.
type wayInfo struct {
	NodeIDs  []osm.NodeID
	Forward  bool
	Backward bool
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only edges lying entirely inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Format is the encoding of the OSM input.
type Format int

const (
	FormatPBF Format = iota
	FormatXML
)

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	Format   Format
	BBox     BBox             // if non-zero, filter edges to this bounding box
	Distance geo.DistanceFunc // edge length measure; nil means geo.Haversine
}

func newScanner(ctx context.Context, r io.Reader, format Format, skipNodes, skipWays bool) osm.Scanner {
	if format == FormatXML {
		return osmxml.New(ctx, r)
	}
	s := osmpbf.New(ctx, r, 1)
	s.SkipNodes = skipNodes
	s.SkipWays = skipWays
	s.SkipRelations = true
	return s
}

// Parse reads OSM data and returns directed edges for car routing.
// Ways are split at intersections (nodes shared between ways, and way
// endpoints); the nodes in between become the edge's geometry.
// The reader is consumed twice (seeks back to start for the second pass),
// so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	dist := opt.Distance
	if dist == nil {
		dist = geo.Haversine
	}
	useBBox := !opt.BBox.IsZero()

	// Pass 1: Scan ways to collect node reference counts and way info.
	refCount := make(map[osm.NodeID]int)
	var ways []wayInfo

	scanner := newScanner(ctx, rs, opt.Format, true, false)
	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}

		if !isCarAccessible(w.Tags) {
			continue
		}

		if len(w.Nodes) < 2 {
			continue
		}

		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			refCount[wn.ID]++
		}
		// Way endpoints always terminate an edge.
		refCount[nodeIDs[0]]++
		refCount[nodeIDs[len(nodeIDs)-1]]++

		ways = append(ways, wayInfo{
			NodeIDs:  nodeIDs,
			Forward:  fwd,
			Backward: bwd,
		})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	slog.Info("Pass 1 complete", "ways", len(ways), "referenced_nodes", len(refCount))

	// Pass 2: Scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	nodeLat := make(map[osm.NodeID]float64, len(refCount))
	nodeLon := make(map[osm.NodeID]float64, len(refCount))

	scanner = newScanner(ctx, rs, opt.Format, false, true)
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}

		if _, needed := refCount[n.ID]; !needed {
			continue
		}

		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	slog.Info("Pass 2 complete", "node_coordinates", len(nodeLat))

	var edges []RawEdge
	var skippedEdges int
	var bboxFiltered int

	for _, w := range ways {
		for _, seg := range splitWay(w.NodeIDs, refCount) {
			line, ok := segmentLine(seg, nodeLat, nodeLon)
			if !ok {
				skippedEdges++
				continue
			}

			if useBBox && !lineInside(line, opt.BBox) {
				bboxFiltered++
				continue
			}

			length := lineLength(line, dist)
			from, to := seg[0], seg[len(seg)-1]

			if w.Forward {
				edges = append(edges, RawEdge{
					FromNodeID: from,
					ToNodeID:   to,
					Length:     length,
					Geometry:   shapeOf(line),
				})
			}
			if w.Backward {
				rev := line.Clone()
				rev.Reverse()
				edges = append(edges, RawEdge{
					FromNodeID: to,
					ToNodeID:   from,
					Length:     length,
					Geometry:   shapeOf(rev),
				})
			}
		}
	}

	if skippedEdges > 0 {
		slog.Warn("Skipped edges due to missing node coordinates", "edges", skippedEdges)
	}
	if bboxFiltered > 0 {
		slog.Info("Filtered edges outside bounding box", "edges", bboxFiltered)
	}
	slog.Info("Built directed edges", "edges", len(edges))

	return &ParseResult{
		Edges:   edges,
		NodeLat: nodeLat,
		NodeLon: nodeLon,
	}, nil
}

// splitWay cuts a way's node list at every node referenced more than once.
// Consecutive segments share their boundary node.
func splitWay(nodeIDs []osm.NodeID, refCount map[osm.NodeID]int) [][]osm.NodeID {
	var segs [][]osm.NodeID
	start := 0
	for i := 1; i < len(nodeIDs); i++ {
		if i == len(nodeIDs)-1 || refCount[nodeIDs[i]] > 1 {
			segs = append(segs, nodeIDs[start:i+1])
			start = i
		}
	}
	return segs
}

// segmentLine resolves node IDs to a (lon, lat) line.
func segmentLine(seg []osm.NodeID, nodeLat, nodeLon map[osm.NodeID]float64) (orb.LineString, bool) {
	line := make(orb.LineString, len(seg))
	for i, id := range seg {
		lat, ok := nodeLat[id]
		if !ok {
			return nil, false
		}
		line[i] = orb.Point{nodeLon[id], lat}
	}
	return line, true
}

func lineInside(line orb.LineString, b BBox) bool {
	for _, p := range line {
		if !b.Contains(p[1], p[0]) {
			return false
		}
	}
	return true
}

func lineLength(line orb.LineString, dist geo.DistanceFunc) float64 {
	var l float64
	for i := 1; i < len(line); i++ {
		l += dist(line[i-1][1], line[i-1][0], line[i][1], line[i][0])
	}
	return l
}

// shapeOf drops the geometry of straight two-node segments; the graph
// rebuilds those from node coordinates.
func shapeOf(line orb.LineString) orb.LineString {
	if len(line) <= 2 {
		return nil
	}
	return line
}
