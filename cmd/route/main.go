package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"taxi_router/pkg/api"
	"taxi_router/pkg/export"
	"taxi_router/pkg/geo"
	"taxi_router/pkg/graph"
	"taxi_router/pkg/logging"
	"taxi_router/pkg/routing"
)

func main() {
	graphPath := flag.String("graph", "graph.bin", "Path to graph binary or osmnx GraphML")
	from := flag.String("from", "", "Origin as lat,lng")
	to := flag.String("to", "", "Destination as lat,lng")
	format := flag.String("format", "json", "Output format: json, geojson or kml")
	distance := flag.String("distance", geo.DistanceGreatCircle, "Partial edge measure: great_circle, haversine or equirectangular")
	maxSnap := flag.Float64("max-snap", 0, "Reject points farther than this many meters from a road (0 = no limit)")
	timeout := flag.Duration("timeout", 30*time.Second, "Query timeout")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		usage(err)
	}
	slog.SetDefault(logging.New(os.Stderr, level))

	orig, err := parseLatLng(*from)
	if err != nil {
		usage(fmt.Errorf("-from: %w", err))
	}
	dest, err := parseLatLng(*to)
	if err != nil {
		usage(fmt.Errorf("-to: %w", err))
	}
	dist, err := geo.DistanceByName(*distance)
	if err != nil {
		usage(err)
	}

	g, err := graph.Load(*graphPath)
	if err != nil {
		fatal("Failed to load graph", err)
	}
	slog.Info("Graph loaded", "nodes", g.NumNodes, "edges", g.NumEdges)

	engine, err := routing.NewEngine(g, routing.EngineConfig{Distance: dist, MaxSnapMeters: *maxSnap})
	if err != nil {
		fatal("Failed to build routing engine", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := engine.Route(ctx, orig, dest)
	if err != nil {
		fatal("Route failed", err)
	}
	geom, err := export.Build(g, result)
	if err != nil {
		fatal("Building route geometry failed", err)
	}

	if err := write(os.Stdout, *format, result, geom); err != nil {
		fatal("Writing output failed", err)
	}
}

func write(w io.Writer, format string, result *routing.RouteResult, geom export.Geometry) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewRouteResponse(result, geom))
	case "geojson":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(export.FeatureCollection(geom))
	case "kml":
		return export.WriteKML(w, "route", geom)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// parseLatLng parses "lat,lng".
func parseLatLng(s string) (routing.LatLng, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return routing.LatLng{}, errors.New("expected lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return routing.LatLng{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return routing.LatLng{}, fmt.Errorf("longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return routing.LatLng{}, fmt.Errorf("%g,%g out of range", lat, lng)
	}
	return routing.LatLng{Lat: lat, Lng: lng}, nil
}

func usage(err error) {
	fmt.Fprintln(os.Stderr, err)
	fmt.Fprintln(os.Stderr, "Usage: route -graph graph.bin -from lat,lng -to lat,lng [-format json|geojson|kml]")
	os.Exit(2)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
