package graph

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	osmparser "taxi_router/pkg/osm"
)

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind(5)

	for i := uint32(0); i < 5; i++ {
		assert.Equal(t, i, uf.Find(i))
	}

	uf.Union(0, 1)
	assert.Equal(t, uf.Find(0), uf.Find(1))

	uf.Union(2, 3)
	assert.Equal(t, uf.Find(2), uf.Find(3))
	assert.NotEqual(t, uf.Find(0), uf.Find(2))

	assert.True(t, uf.Union(1, 3))
	assert.Equal(t, uf.Find(0), uf.Find(3))
	assert.False(t, uf.Union(0, 2), "already joined")
}

func TestLargestComponent(t *testing.T) {
	// Component 1: 10 <-> 20 <-> 30
	// Component 2: 40 <-> 50
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 10, ToNodeID: 20, Length: 100},
			{FromNodeID: 20, ToNodeID: 10, Length: 100},
			{FromNodeID: 20, ToNodeID: 30, Length: 200},
			{FromNodeID: 30, ToNodeID: 20, Length: 200},
			{FromNodeID: 40, ToNodeID: 50, Length: 300},
			{FromNodeID: 50, ToNodeID: 40, Length: 300},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.0, 20: 1.1, 30: 1.2, 40: 2.0, 50: 2.1},
		NodeLon: map[osm.NodeID]float64{10: 103.0, 20: 103.1, 30: 103.2, 40: 104.0, 50: 104.1},
	}

	g := Build(result)
	nodes := LargestComponent(g)
	assert.Len(t, nodes, 3)
}

func TestFilterToComponent(t *testing.T) {
	curve := orb.LineString{{103.1, 1.1}, {103.15, 1.12}, {103.2, 1.2}}
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			// Component 1: triangle, with a curved edge 20 -> 30.
			{FromNodeID: 10, ToNodeID: 20, Length: 100},
			{FromNodeID: 20, ToNodeID: 30, Length: 200, Geometry: curve},
			{FromNodeID: 30, ToNodeID: 10, Length: 300},
			// Component 2: isolated pair.
			{FromNodeID: 40, ToNodeID: 50, Length: 400},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.0, 20: 1.1, 30: 1.2, 40: 2.0, 50: 2.1},
		NodeLon: map[osm.NodeID]float64{10: 103.0, 20: 103.1, 30: 103.2, 40: 104.0, 50: 104.1},
	}

	g := Build(result)
	filtered := FilterToComponent(g, LargestComponent(g))
	require.NoError(t, filtered.Validate())

	require.Equal(t, uint32(3), filtered.NumNodes)
	require.Equal(t, uint32(3), filtered.NumEdges)
	assert.ElementsMatch(t, []osm.NodeID{10, 20, 30}, filtered.NodeID)

	var total float64
	for _, l := range filtered.Length {
		total += l
	}
	assert.Equal(t, 600.0, total)

	// Geometry survives the remap.
	var found bool
	for e := uint32(0); e < filtered.NumEdges; e++ {
		ref := filtered.Ref(e)
		if filtered.NodeID[ref.U] == 20 && filtered.NodeID[ref.V] == 30 {
			assert.Equal(t, curve, filtered.EdgeGeometry(e))
			found = true
		}
	}
	assert.True(t, found, "edge 20 -> 30 missing after filter")
}

func TestFilterToComponentEmptyGraph(t *testing.T) {
	g := &Graph{FirstOut: []uint32{0}}
	nodes := LargestComponent(g)
	assert.Nil(t, nodes)

	filtered := FilterToComponent(g, nil)
	assert.Zero(t, filtered.NumNodes)
	assert.Zero(t, filtered.NumEdges)
	assert.NoError(t, filtered.Validate())
}
