package spatial

import (
	"testing"

	"github.com/paulmach/osm"

	"github.com/azybler/osmroute/pkg/config"
	"github.com/azybler/osmroute/pkg/graph"
	rawosm "github.com/azybler/osmroute/pkg/osm"
)

// buildReferenceGraph mirrors the spec's reference network (same
// coordinates as pkg/graph and pkg/restriction's reference fixtures) minus
// way 2004 and restriction 3001, so node 1008 is not retained.
func buildReferenceGraph(t *testing.T) *graph.Graph {
	t.Helper()

	coords := map[osm.NodeID][2]float64{
		1001: {-38.0751637, 145.3326838},
		1002: {-38.0752637, 145.3326838},
		1003: {-38.0753637, 145.3326838},
		1004: {-38.0754637, 145.3326838},
		1005: {-38.0755637, 145.3326838},
		1006: {-38.0752637, 145.3327838},
		1007: {-38.0753637, 145.3327838},
		1008: {-38.0753637, 145.3328838},
	}
	nodes := make(map[osm.NodeID]*rawosm.RawNode, len(coords))
	for id, ll := range coords {
		nodes[id] = &rawosm.RawNode{ID: id, Lat: ll[0], Lon: ll[1]}
	}

	ways := map[osm.WayID]*rawosm.RawWay{
		2001: {ID: 2001, Nodes: []osm.NodeID{1001, 1002, 1003, 1004}, Tags: map[string]any{
			"highway": "residential", "maxspeed": "50", "lanes": 2,
		}},
		2002: {ID: 2002, Nodes: []osm.NodeID{1001, 1006, 1007, 1004}, Tags: map[string]any{
			"highway": "primary", "maxspeed": "100", "lanes": 4,
		}},
		2003: {ID: 2003, Nodes: []osm.NodeID{1004, 1005}, Tags: map[string]any{
			"highway": "residential", "maxspeed": "50", "lanes": 2,
		}},
	}

	raw := &rawosm.RawOSM{Nodes: nodes, Ways: ways, Relations: map[osm.RelationID]*rawosm.RawRelation{}}
	g, err := graph.Build(raw, graph.BuildOptions{NetworkType: config.Drive, Config: config.Default()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestNearestNode(t *testing.T) {
	g := buildReferenceGraph(t)
	kd := BuildKD(g)

	// Query very close to node 1003.
	idx, dist, ok := NearestNode(g, kd, -38.0753637, 145.3326838)
	if !ok {
		t.Fatal("NearestNode returned ok=false")
	}
	if idx != g.NodeToIndex[1003] {
		t.Errorf("nearest index = %d, want index of node 1003 (%d)", idx, g.NodeToIndex[1003])
	}
	if dist > 0.01 {
		t.Errorf("distance = %v km, want ~0", dist)
	}
}

func TestNearestNodeFilteredExcludesSkipped(t *testing.T) {
	g := buildReferenceGraph(t)
	kd := BuildKD(g)

	origin := g.NodeToIndex[1003]
	idx, _, ok := NearestNodeFiltered(g, kd, -38.0753637, 145.3326838, func(i uint32) bool {
		return i == origin
	})
	if !ok {
		t.Fatal("NearestNodeFiltered returned ok=false")
	}
	if idx == origin {
		t.Error("NearestNodeFiltered returned the skipped vertex")
	}
}

func TestNearestNodesOrdersByDistance(t *testing.T) {
	g := buildReferenceGraph(t)
	kd := BuildKD(g)

	results := NearestNodes(g, kd, -38.0753637, 145.3326838, 3)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].DistanceKm < results[i-1].DistanceKm {
			t.Errorf("results not sorted by distance: %v then %v", results[i-1], results[i])
		}
	}
}

func TestNearestWay(t *testing.T) {
	g := buildReferenceGraph(t)
	rt := BuildRTree(g)

	// Query a point just east of the 1002-1003 segment of way 2001, well
	// within a 200m search cube.
	ep, ok := NearestWay(g, rt, -38.0753137, 145.3326938, 200)
	if !ok {
		t.Fatal("NearestWay returned ok=false")
	}
	if ep.WayID != 2001 {
		t.Errorf("WayID = %d, want 2001", ep.WayID)
	}
	if ep.Ratio < 0 || ep.Ratio > 1 {
		t.Errorf("Ratio = %v, want in [0,1]", ep.Ratio)
	}
	if ep.DistanceM <= 0 {
		t.Errorf("DistanceM = %v, want > 0", ep.DistanceM)
	}
}

func TestNearestWayRadiusExcludesDistantWays(t *testing.T) {
	g := buildReferenceGraph(t)
	rt := BuildRTree(g)

	// A one-meter search cube around a point far from every way's bounding
	// box must find nothing.
	_, ok := NearestWay(g, rt, -38.09, 145.40, 1)
	if ok {
		t.Error("NearestWay found a candidate outside its search radius")
	}
}

func TestNearestWaysReturnsAllWithinRadius(t *testing.T) {
	g := buildReferenceGraph(t)
	rt := BuildRTree(g)

	// A 300m cube around this point should catch both way 2001 and way
	// 2002's bounding boxes (the two ways span the same intersections).
	results := NearestWays(g, rt, -38.0753137, 145.3327338, 300)
	if len(results) < 2 {
		t.Fatalf("len(results) = %d, want >= 2", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].DistanceM < results[i-1].DistanceM {
			t.Error("results not sorted nearest-first")
		}
	}

	// A 1-meter cube should find nothing at all.
	if empty := NearestWays(g, rt, -38.09, 145.40, 1); len(empty) != 0 {
		t.Errorf("len(empty) = %d, want 0", len(empty))
	}
}
