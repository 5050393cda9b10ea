package routing

import (
	"context"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi_router/pkg/ch"
	"taxi_router/pkg/graph"
	osmparser "taxi_router/pkg/osm"
)

func TestHierarchyFinderMatchesDijkstra(t *testing.T) {
	g := buildGridGraph(t)
	pf := NewPathFinder(g)
	hf := NewHierarchyFinder(ch.Contract(g))
	ctx := context.Background()

	for s := uint32(0); s < g.NumNodes; s++ {
		for d := uint32(0); d < g.NumNodes; d++ {
			wantPath, wantDist, err := pf.ShortestPath(ctx, s, d)
			require.NoError(t, err)
			gotPath, gotDist, err := hf.ShortestPath(ctx, s, d)
			require.NoError(t, err)

			assert.InDelta(t, wantDist, gotDist, 1e-9, "%d -> %d", s, d)
			require.NotEmpty(t, gotPath)
			assert.Equal(t, s, gotPath[0])
			assert.Equal(t, d, gotPath[len(gotPath)-1])

			wantLen, err := PathLength(g, wantPath)
			require.NoError(t, err)
			gotLen, err := PathLength(g, gotPath)
			require.NoError(t, err)
			assert.InDelta(t, wantLen, gotLen, 1e-9, "%d -> %d", s, d)
		}
	}
}

func TestHierarchyFinderNoRoute(t *testing.T) {
	g := graph.Build(&osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 1, ToNodeID: 2, Length: 10},
			{FromNodeID: 2, ToNodeID: 3, Length: 10},
		},
		NodeLat: map[osm.NodeID]float64{1: 0, 2: 0, 3: 0},
		NodeLon: map[osm.NodeID]float64{1: 0, 2: 0.0001, 3: 0.0002},
	})
	hf := NewHierarchyFinder(ch.Contract(g))

	path, dist, err := hf.ShortestPath(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, path)
	assert.Equal(t, 20.0, dist)

	_, _, err = hf.ShortestPath(context.Background(), 2, 0)
	assert.ErrorIs(t, err, ErrNoRoute)

	_, _, err = hf.ShortestPath(context.Background(), 0, 9)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestEngineWithHierarchy(t *testing.T) {
	g := equatorGraph(t)
	plain := newTestEngine(t, g)
	contracted, err := NewEngine(g, EngineConfig{Hierarchy: ch.Contract(g)})
	require.NoError(t, err)

	pairs := [][2]LatLng{
		{{Lat: 0.0001, Lng: 0.0005}, {Lat: 0.0005, Lng: 0.0021}},
		{{Lat: 0.0001, Lng: 0.0002}, {Lat: -0.0001, Lng: 0.0007}},
		{{Lat: -0.0001, Lng: 0.0003}, {Lat: 0.0001, Lng: 0.0016}},
		{{Lat: 0.0009, Lng: 0.0019}, {Lat: 0.0001, Lng: 0.0001}},
	}
	for _, pair := range pairs {
		want, err := plain.Route(context.Background(), pair[0], pair[1])
		require.NoError(t, err)
		got, err := contracted.Route(context.Background(), pair[0], pair[1])
		require.NoError(t, err)

		assert.InDelta(t, want.LengthMeters, got.LengthMeters, 1e-9, "%v", pair)
		assert.Equal(t, want.Nodes, got.Nodes, "%v", pair)
	}
}

func TestNewEngineRejectsForeignHierarchy(t *testing.T) {
	other := ch.Contract(buildGridGraph(t))
	_, err := NewEngine(equatorGraph(t), EngineConfig{Hierarchy: other})
	assert.ErrorIs(t, err, graph.ErrGraphMalformed)
}
