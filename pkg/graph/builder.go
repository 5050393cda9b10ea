package graph

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	osmparser "taxi_router/pkg/osm"
)

// Build creates a CSR Graph from parsed edges. Parallel edges between the
// same ordered node pair get keys 0, 1, ... in input order.
func Build(result *osmparser.ParseResult) *Graph {
	edges := result.Edges
	if len(edges) == 0 {
		return &Graph{FirstOut: []uint32{0}, GeoFirstOut: []uint32{0}}
	}

	// Step 1: Collect all unique node IDs and build a compact mapping.
	nodeSet := make(map[osm.NodeID]uint32)
	var nodeIDs []osm.NodeID

	addNode := func(id osm.NodeID) uint32 {
		if idx, ok := nodeSet[id]; ok {
			return idx
		}
		idx := uint32(len(nodeIDs))
		nodeSet[id] = idx
		nodeIDs = append(nodeIDs, id)
		return idx
	}

	for i := range edges {
		addNode(edges[i].FromNodeID)
		addNode(edges[i].ToNodeID)
	}

	numNodes := uint32(len(nodeIDs))

	// Step 2: Build compact edge list with remapped indices.
	type compactEdge struct {
		from     uint32
		to       uint32
		length   float64
		geometry orb.LineString
	}

	compact := make([]compactEdge, len(edges))
	for i, e := range edges {
		compact[i] = compactEdge{
			from:     nodeSet[e.FromNodeID],
			to:       nodeSet[e.ToNodeID],
			length:   e.Length,
			geometry: e.Geometry,
		}
	}

	// Step 3: Sort edges by source node. Stable, so parallel edges keep
	// their input order and therefore their keys.
	sort.SliceStable(compact, func(i, j int) bool {
		if compact[i].from != compact[j].from {
			return compact[i].from < compact[j].from
		}
		return compact[i].to < compact[j].to
	})

	// Step 4: Build CSR arrays.
	numEdges := uint32(len(compact))
	firstOut := make([]uint32, numNodes+1)
	head := make([]uint32, numEdges)
	key := make([]uint32, numEdges)
	length := make([]float64, numEdges)

	geoFirstOut := make([]uint32, numEdges+1)
	var geoShapeLat, geoShapeLon []float64

	for i, e := range compact {
		head[i] = e.to
		length[i] = e.length
		if i > 0 && compact[i-1].from == e.from && compact[i-1].to == e.to {
			key[i] = key[i-1] + 1
		}

		geoFirstOut[i] = uint32(len(geoShapeLat))
		if len(e.geometry) >= 2 {
			for _, p := range e.geometry {
				geoShapeLon = append(geoShapeLon, p[0])
				geoShapeLat = append(geoShapeLat, p[1])
			}
		}
	}
	geoFirstOut[numEdges] = uint32(len(geoShapeLat))

	for _, e := range compact {
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	// Step 5: Populate node coordinates.
	nodeLat := make([]float64, numNodes)
	nodeLon := make([]float64, numNodes)
	for id, idx := range nodeSet {
		lat, ok := result.NodeLat[id]
		if !ok {
			lat = math.NaN()
		}
		lon, ok := result.NodeLon[id]
		if !ok {
			lon = math.NaN()
		}
		nodeLat[idx] = lat
		nodeLon[idx] = lon
	}

	return &Graph{
		NumNodes:    numNodes,
		NumEdges:    numEdges,
		NodeID:      nodeIDs,
		NodeLat:     nodeLat,
		NodeLon:     nodeLon,
		FirstOut:    firstOut,
		Head:        head,
		Key:         key,
		Length:      length,
		GeoFirstOut: geoFirstOut,
		GeoShapeLat: geoShapeLat,
		GeoShapeLon: geoShapeLon,
	}
}
