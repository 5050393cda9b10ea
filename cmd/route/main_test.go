package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi_router/pkg/api"
	"taxi_router/pkg/export"
	"taxi_router/pkg/routing"
)

func TestParseLatLng(t *testing.T) {
	got, err := parseLatLng("39.0884, -84.3232")
	require.NoError(t, err)
	assert.Equal(t, routing.LatLng{Lat: 39.0884, Lng: -84.3232}, got)

	for _, bad := range []string{"", "39.0884", "a,1", "1,b", "91,0", "0,181"} {
		_, err := parseLatLng(bad)
		assert.Error(t, err, bad)
	}
}

func TestWrite(t *testing.T) {
	result := &routing.RouteResult{
		LengthMeters:    12.5,
		OrigPartialEdge: orb.LineString{{-84.3232, 39.0884}, {-84.3231, 39.0884}},
	}
	geom := export.Geometry{OrigPartialEdge: result.OrigPartialEdge}

	var buf bytes.Buffer
	require.NoError(t, write(&buf, "json", result, geom))
	var resp api.RouteResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, 12.5, resp.LengthMeters)

	buf.Reset()
	require.NoError(t, write(&buf, "geojson", result, geom))
	assert.Contains(t, buf.String(), `"orig_partial_edge"`)

	buf.Reset()
	require.NoError(t, write(&buf, "kml", result, geom))
	assert.Contains(t, buf.String(), "<Placemark>")

	assert.ErrorContains(t, write(&buf, "svg", result, geom), "unknown format")
}
