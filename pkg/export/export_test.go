package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi_router/pkg/graph"
	osmparser "taxi_router/pkg/osm"
	"taxi_router/pkg/routing"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.Build(&osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 1, ToNodeID: 2, Length: 200, Geometry: orb.LineString{{0, 0}, {0.001, 0.0005}, {0.002, 0}}},
			{FromNodeID: 1, ToNodeID: 2, Length: 150},
			{FromNodeID: 2, ToNodeID: 3, Length: 100},
		},
		NodeLat: map[osm.NodeID]float64{1: 0, 2: 0, 3: 0.001},
		NodeLon: map[osm.NodeID]float64{1: 0, 2: 0.002, 3: 0.002},
	})
	require.NoError(t, g.Validate())
	return g
}

func testResult() *routing.RouteResult {
	return &routing.RouteResult{
		LengthMeters:    400,
		Nodes:           []uint32{0, 1, 2},
		OrigPartialEdge: orb.LineString{{-0.0005, 0}, {0, 0}},
		DestPartialEdge: orb.LineString{{0.002, 0.001}, {0.002, 0.0015}},
	}
}

func TestBuild(t *testing.T) {
	geom, err := Build(testGraph(t), testResult())
	require.NoError(t, err)

	// The straight parallel edge is shorter than the curved one.
	assert.Equal(t, orb.LineString{{0, 0}, {0.002, 0}, {0.002, 0.001}}, geom.Route)
	assert.Equal(t, orb.LineString{{-0.0005, 0}, {0, 0}}, geom.OrigPartialEdge)
	assert.Equal(t, orb.LineString{{0.002, 0.001}, {0.002, 0.0015}}, geom.DestPartialEdge)
}

func TestBuildSameEdge(t *testing.T) {
	res := &routing.RouteResult{OrigPartialEdge: orb.LineString{{0, 0}, {0.001, 0}}}
	geom, err := Build(testGraph(t), res)
	require.NoError(t, err)
	assert.Nil(t, geom.Route)
	assert.Len(t, geom.parts(), 1)
}

type failingGeometer struct{}

func (failingGeometer) PathGeometry([]uint32) (orb.LineString, error) {
	return nil, graph.ErrGraphMalformed
}

func TestBuildError(t *testing.T) {
	_, err := Build(failingGeometer{}, testResult())
	assert.True(t, errors.Is(err, graph.ErrGraphMalformed))
}

func TestFeatureCollection(t *testing.T) {
	geom, err := Build(testGraph(t), testResult())
	require.NoError(t, err)

	data, err := json.Marshal(FeatureCollection(geom))
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	var parts []string
	for _, f := range fc.Features {
		parts = append(parts, f.Properties.MustString("part"))
		assert.IsType(t, orb.LineString{}, f.Geometry)
	}
	assert.Equal(t, []string{PartOrigPartialEdge, PartRoute, PartDestPartialEdge}, parts)
	assert.Equal(t, geom.Route, fc.Features[1].Geometry)
}

func TestFeatureCollectionSkipsEmptyParts(t *testing.T) {
	fc := FeatureCollection(Geometry{Route: orb.LineString{{0, 0}, {1, 1}}})
	require.Len(t, fc.Features, 1)
	assert.Equal(t, PartRoute, fc.Features[0].Properties["part"])
}

func TestWriteKML(t *testing.T) {
	geom, err := Build(testGraph(t), testResult())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteKML(&buf, "test route", geom))
	out := buf.String()

	assert.Contains(t, out, "<kml")
	assert.Equal(t, 3, strings.Count(out, "<Placemark>"))
	assert.Equal(t, 3, strings.Count(out, "<LineString>"))
	assert.Contains(t, out, "<name>test route</name>")
	for _, name := range []string{PartRoute, PartOrigPartialEdge, PartDestPartialEdge} {
		assert.Contains(t, out, "<name>"+name+"</name>")
	}
}

func TestEncodePolyline(t *testing.T) {
	// Example from the encoded polyline algorithm format documentation.
	ls := orb.LineString{{-120.2, 38.5}, {-120.95, 40.7}, {-126.453, 43.252}}
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", EncodePolyline(ls))
	assert.Equal(t, "", EncodePolyline(nil))
}

func TestEncodePolylines(t *testing.T) {
	geom := Geometry{Route: orb.LineString{{-120.2, 38.5}, {-120.95, 40.7}, {-126.453, 43.252}}}
	got := EncodePolylines(geom)
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", got.Route)
	assert.Empty(t, got.OrigPartialEdge)
	assert.Empty(t, got.DestPartialEdge)
}
