package routing

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi_router/pkg/graph"
)

// referenceGraph is an osmnx drive network around (39.0884, -84.3232)
// exported with ox.save_graphml.
var referenceGraph = filepath.Join("..", "..", "testdata", "reference.graphml")

func TestRouteReferenceScenarios(t *testing.T) {
	g, err := graph.ReadGraphML(referenceGraph)
	if errors.Is(err, fs.ErrNotExist) {
		t.Skipf("reference graph %s not present", referenceGraph)
	}
	require.NoError(t, err)

	eng, err := NewEngine(g, EngineConfig{})
	require.NoError(t, err)

	tests := []struct {
		name       string
		orig, dest LatLng
		want       float64
		epsilon    float64
	}{
		{
			name:    "same edge",
			orig:    LatLng{Lat: 39.0884, Lng: -84.3232},
			dest:    LatLng{Lat: 39.08843038088047, Lng: -84.32261113356783},
			want:    50.61630824638745,
			epsilon: 1e-6,
		},
		{
			name:    "short cross edge",
			orig:    LatLng{Lat: 39.08734, Lng: -84.32400},
			dest:    LatLng{Lat: 39.08840, Lng: -84.32307},
			want:    180.58915031422694,
			epsilon: 1e-6,
		},
		{
			name:    "far nearest edge",
			orig:    LatLng{Lat: 39.08710, Lng: -84.31050},
			dest:    LatLng{Lat: 39.08800, Lng: -84.32000},
			want:    848.8428082642993,
			epsilon: 1e-6,
		},
		{
			name:    "adjacent nodes",
			orig:    LatLng{Lat: 39.089, Lng: -84.319},
			dest:    LatLng{Lat: 39.088, Lng: -84.320},
			want:    878.027,
			epsilon: 1e-6 + 5e-4/878.027,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := eng.Route(context.Background(), tt.orig, tt.dest)
			require.NoError(t, err)
			assert.InEpsilon(t, tt.want, res.LengthMeters, tt.epsilon)

			for _, pe := range []orb.LineString{res.OrigPartialEdge, res.DestPartialEdge} {
				if pe != nil {
					assert.GreaterOrEqual(t, len(pe), 2)
				}
			}
		})
	}
}
