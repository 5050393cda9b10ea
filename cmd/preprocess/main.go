package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"taxi_router/pkg/geo"
	"taxi_router/pkg/graph"
	"taxi_router/pkg/logging"
	osmparser "taxi_router/pkg/osm"
)

func main() {
	input := flag.String("input", "", "Path to .osm.pbf or .osm (XML) file")
	output := flag.String("output", "graph.bin", "Output binary graph file path")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 39.05,-84.40,39.15,-84.25)")
	distance := flag.String("distance", geo.DistanceHaversine, "Edge length measure: great_circle, haversine or equirectangular")
	keepAll := flag.Bool("keep-all", false, "Keep every component instead of only the largest")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logging.New(os.Stderr, level))

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess -input <file.osm.pbf|file.osm> [-output graph.bin] [-bbox minLat,minLng,maxLat,maxLng]")
		os.Exit(1)
	}

	dist, err := geo.DistanceByName(*distance)
	if err != nil {
		fatal("Invalid distance", err)
	}
	opts := osmparser.ParseOptions{Format: formatOf(*input), Distance: dist}

	if *bbox != "" {
		var minLat, minLng, maxLat, maxLng float64
		if _, err := fmt.Sscanf(*bbox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
			fatal("Invalid bbox format (expected minLat,minLng,maxLat,maxLng)", err)
		}
		opts.BBox = osmparser.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
		slog.Info("Using bounding box filter", "lat", [2]float64{minLat, maxLat}, "lng", [2]float64{minLng, maxLng})
	}

	start := time.Now()

	// Step 1: Parse OSM data.
	f, err := os.Open(*input)
	if err != nil {
		fatal("Failed to open input file", err)
	}
	defer f.Close()

	slog.Info("Parsing OSM data", "input", *input)
	parseResult, err := osmparser.Parse(context.Background(), f, opts)
	if err != nil {
		fatal("Failed to parse OSM data", err)
	}
	slog.Info("Parsed", "edges", len(parseResult.Edges), "nodes", len(parseResult.NodeLat))

	// Step 2: Build graph.
	g := graph.Build(parseResult)
	slog.Info("Graph built", "nodes", g.NumNodes, "edges", g.NumEdges)

	// Step 3: Extract largest connected component.
	if !*keepAll && g.NumNodes > 0 {
		componentNodes := graph.LargestComponent(g)
		slog.Info("Largest component",
			"nodes", len(componentNodes),
			"percent", fmt.Sprintf("%.1f", float64(len(componentNodes))/float64(g.NumNodes)*100),
		)
		g = graph.FilterToComponent(g, componentNodes)
		slog.Info("Filtered graph", "nodes", g.NumNodes, "edges", g.NumEdges)
	}

	if err := g.Validate(); err != nil {
		fatal("Graph failed validation", err)
	}

	// Step 4: Serialize to binary.
	if err := graph.WriteBinary(*output, g); err != nil {
		fatal("Failed to write binary", err)
	}

	info, _ := os.Stat(*output)
	slog.Info("Done",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"output", *output,
		"size_mb", fmt.Sprintf("%.1f", float64(info.Size())/(1024*1024)),
	)
}

// formatOf picks the OSM encoding from the file name.
func formatOf(path string) osmparser.Format {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".osm") || strings.HasSuffix(name, ".xml") {
		return osmparser.FormatXML
	}
	return osmparser.FormatPBF
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
