package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/azybler/osmroute/pkg/api"
	"github.com/azybler/osmroute/pkg/config"
	osmparse "github.com/azybler/osmroute/pkg/osm"
	"github.com/azybler/osmroute/pkg/query"
)

func main() {
	pbfPath := flag.String("pbf", "map.osm.pbf", "Path to an OSM PBF extract")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	networkType := flag.String("network-type", string(config.Drive), "Network type: drive, drive_service, walk, bike, all, all_private, rail, drive_mainroads, none")
	weightType := flag.String("weight-type", string(config.WeightDistance), "Edge weight: distance, time, lane_efficiency")
	largestComponentOnly := flag.Bool("largest-component-only", true, "Trim the graph down to its largest weakly connected component")
	maxSnapDistanceKm := flag.Float64("max-snap-distance-km", 1.0, "Reject a route endpoint farther than this from any road")
	flag.Parse()

	start := time.Now()

	f, err := os.Open(*pbfPath)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *pbfPath, err)
	}
	defer f.Close()

	log.Printf("Parsing %s...", *pbfPath)
	raw, err := osmparse.Parse(context.Background(), f)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", *pbfPath, err)
	}
	log.Printf("Parsed: %d nodes, %d ways, %d relations", len(raw.Nodes), len(raw.Ways), len(raw.Relations))

	log.Println("Building graph, weights, and spatial indices...")
	g, err := query.BuildGraph(raw, query.BuildOptions{
		NetworkType:          config.NetworkType(*networkType),
		WeightType:           config.WeightType(*weightType),
		LargestComponentOnly: *largestComponentOnly,
	})
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}
	log.Printf("Graph ready: %d vertices, %d ways, %d restrictions", g.NumVertices, len(g.Ways), len(g.Restrictions))

	// Reclaim memory from parse/build-time temporaries; without this Go's
	// heap retains peak RSS from construction (GC doubles heap each cycle).
	runtime.GC()
	debug.FreeOSMemory()

	loadTime := time.Since(start)
	log.Printf("Ready in %s", loadTime.Round(time.Millisecond))

	addr := fmt.Sprintf(":%d", *port)
	cfg := api.DefaultConfig(addr)
	cfg.CORSOrigin = *corsOrigin

	stats := api.StatsResponse{
		NumNodes:        g.NumVertices,
		NumWays:         len(g.Ways),
		NumEdges:        len(g.Weights),
		NumRestrictions: len(g.Restrictions),
	}

	routeOpts := query.Options{CostAdjustment: "restriction"}
	handlers := api.NewHandlers(g, routeOpts, *maxSnapDistanceKm, stats)
	srv := api.NewServer(cfg, handlers)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}
