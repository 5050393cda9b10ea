package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/exp/slog"

	"taxi_router/pkg/api"
	"taxi_router/pkg/ch"
	"taxi_router/pkg/config"
	"taxi_router/pkg/geo"
	"taxi_router/pkg/graph"
	"taxi_router/pkg/logging"
	"taxi_router/pkg/routing"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	graphPath := flag.String("graph", "", "Path to graph binary or osmnx GraphML (overrides config)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	contract := flag.Bool("contract", false, "Build a contraction hierarchy at startup (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	// Flags override the file only when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "graph":
			cfg.GraphPath = *graphPath
		case "addr":
			cfg.Addr = *addr
		case "cors-origin":
			cfg.CORSOrigin = *corsOrigin
		case "log-level":
			cfg.LogLevel = *logLevel
		case "contract":
			cfg.Contract = *contract
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	slog.SetDefault(logging.New(os.Stderr, level))

	start := time.Now()

	// Load graph.
	slog.Info("Loading graph", "path", cfg.GraphPath)
	g, err := graph.Load(cfg.GraphPath)
	if err != nil {
		fatal("Failed to load graph", err)
	}
	slog.Info("Graph loaded", "nodes", g.NumNodes, "edges", g.NumEdges)

	dist, _ := geo.DistanceByName(cfg.Distance)
	engineCfg := routing.EngineConfig{
		Distance:      dist,
		MaxSnapMeters: cfg.MaxSnapMeters,
	}
	stats := api.StatsResponse{NumNodes: g.NumNodes, NumEdges: g.NumEdges}

	if cfg.Contract {
		h := ch.Contract(g)
		engineCfg.Hierarchy = h
		stats.Contracted = true
		stats.NumOverlayEdges = len(h.FwdHead) + len(h.BwdHead)
	}

	// Build routing engine.
	engine, err := routing.NewEngine(g, engineCfg)
	if err != nil {
		fatal("Failed to build routing engine", err)
	}
	slog.Info("Ready", "elapsed", time.Since(start).Round(time.Millisecond))

	// Setup HTTP server.
	srvCfg := api.DefaultConfig(cfg.Addr)
	srvCfg.ReadTimeout = cfg.ReadTimeout
	srvCfg.WriteTimeout = cfg.WriteTimeout
	srvCfg.RequestTimeout = cfg.RequestTimeout
	srvCfg.MaxConcurrent = cfg.MaxConcurrent
	srvCfg.CORSOrigin = cfg.CORSOrigin

	handlers := api.NewHandlers(engine, g, stats)
	srv := api.NewServer(srvCfg, handlers)

	if err := api.ListenAndServe(srv); err != nil {
		fatal("Server stopped", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
