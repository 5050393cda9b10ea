package graph

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	osmparser "taxi_router/pkg/osm"
)

// lineGraph is 1 <-> 2 <-> 3 with a curved 2 -> 3 edge and a shorter
// parallel straight 2 -> 3.
func lineGraph(t *testing.T) *Graph {
	t.Helper()
	g := Build(&osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 1, ToNodeID: 2, Length: 10},
			{FromNodeID: 2, ToNodeID: 1, Length: 10},
			{FromNodeID: 2, ToNodeID: 3, Length: 25, Geometry: orb.LineString{{1, 0}, {1.5, 0.5}, {2, 0}}},
			{FromNodeID: 2, ToNodeID: 3, Length: 20},
			{FromNodeID: 3, ToNodeID: 2, Length: 20},
		},
		NodeLat: map[osm.NodeID]float64{1: 0, 2: 0, 3: 0},
		NodeLon: map[osm.NodeID]float64{1: 0, 2: 1, 3: 2},
	})
	require.NoError(t, g.Validate())
	return g
}

func TestTail(t *testing.T) {
	g := lineGraph(t)
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			assert.Equal(t, u, g.Tail(e), "edge %d", e)
		}
	}
}

func TestEdgeRefSameNodes(t *testing.T) {
	a := EdgeRef{U: 1, V: 2, Key: 0}
	assert.True(t, a.SameNodes(EdgeRef{U: 2, V: 1, Key: 0}))
	assert.True(t, a.SameNodes(EdgeRef{U: 1, V: 2, Key: 3}))
	assert.False(t, a.SameNodes(EdgeRef{U: 1, V: 3, Key: 0}))
	assert.Equal(t, "(1, 2, 0)", a.String())
}

func TestMinEdgeAndPathGeometry(t *testing.T) {
	g := lineGraph(t)

	e := g.MinEdge(1, 2)
	require.NotEqual(t, NoEdge, e)
	assert.Equal(t, 20.0, g.Length[e])
	assert.Equal(t, uint32(1), g.Key[e])
	assert.Equal(t, NoEdge, g.MinEdge(0, 2))

	ls, err := g.PathGeometry([]uint32{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, orb.LineString{{0, 0}, {1, 0}, {2, 0}}, ls)

	ls, err = g.PathGeometry([]uint32{0})
	require.NoError(t, err)
	assert.Nil(t, ls)

	_, err = g.PathGeometry([]uint32{0, 2})
	assert.ErrorIs(t, err, ErrGraphMalformed)
}

func TestEdgeGeometryIsCopy(t *testing.T) {
	g := lineGraph(t)
	e := g.FindEdge(EdgeRef{U: 1, V: 2, Key: 0})
	require.NotEqual(t, NoEdge, e)

	ls := g.EdgeGeometry(e)
	ls[1] = orb.Point{9, 9}
	assert.Equal(t, orb.Point{1.5, 0.5}, g.EdgeGeometry(e)[1])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *Graph)
	}{
		{"length count", func(g *Graph) { g.Length = g.Length[:1] }},
		{"negative length", func(g *Graph) { g.Length[0] = -1 }},
		{"key count", func(g *Graph) { g.Key = nil }},
		{"node count", func(g *Graph) { g.NodeLat = g.NodeLat[:2] }},
		{"head out of range", func(g *Graph) { g.Head[0] = 99 }},
		{"geometry offsets", func(g *Graph) { g.GeoFirstOut = g.GeoFirstOut[:2] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := lineGraph(t)
			tt.mutate(g)
			assert.ErrorIs(t, g.Validate(), ErrGraphMalformed)
		})
	}
}
