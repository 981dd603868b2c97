package simplify

import (
	"testing"

	"github.com/paulmach/osm"

	"github.com/azybler/osmroute/pkg/config"
	"github.com/azybler/osmroute/pkg/graph"
	rawosm "github.com/azybler/osmroute/pkg/osm"
	"github.com/azybler/osmroute/pkg/routing"
)

// buildChainGraph builds a single through-road of five nodes (1-2-3-4-5),
// with only the two ends meeting another road — a straight degree-2 chain
// in between that must fully contract.
func buildChainGraph(t *testing.T) *graph.Graph {
	t.Helper()

	coords := map[osm.NodeID][2]float64{
		1: {0, 0}, 2: {0, 0.0001}, 3: {0, 0.0002}, 4: {0, 0.0003}, 5: {0, 0.0004},
		6: {0.0001, 0.0002}, // branches off node 3, making it a true intersection
	}
	nodes := make(map[osm.NodeID]*rawosm.RawNode, len(coords))
	for id, ll := range coords {
		nodes[id] = &rawosm.RawNode{ID: id, Lat: ll[0], Lon: ll[1]}
	}

	ways := map[osm.WayID]*rawosm.RawWay{
		100: {ID: 100, Nodes: []osm.NodeID{1, 2, 3, 4, 5}, Tags: map[string]any{"highway": "residential"}},
		200: {ID: 200, Nodes: []osm.NodeID{3, 6}, Tags: map[string]any{"highway": "residential"}},
	}

	raw := &rawosm.RawOSM{Nodes: nodes, Ways: ways, Relations: map[osm.RelationID]*rawosm.RawRelation{}}
	g, err := graph.Build(raw, graph.BuildOptions{NetworkType: config.Drive, Config: config.Default()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	graph.ComputeWeights(g, config.WeightDistance, config.Default())
	return g
}

func TestSimplifyEndpointsOnly(t *testing.T) {
	g := buildChainGraph(t)
	sg := Simplify(g)

	// Endpoints: 1 (dead-end), 5 (dead-end), 6 (dead-end), 3 (true
	// intersection, 3 distinct neighbors: 2, 4, 6). Nodes 2 and 4 are degree-2 through-nodes and must
	// not appear in NewToOld.
	wantEndpoints := map[osm.NodeID]bool{1: true, 3: true, 5: true, 6: true, 2: false, 4: false}
	for nid, want := range wantEndpoints {
		_, isNew := sg.OldToNew[g.NodeToIndex[nid]]
		if isNew != want {
			t.Errorf("node %d: OldToNew present = %v, want %v", nid, isNew, want)
		}
	}
}

func findSimplifiedEdge(sg *SimplifiedGraph, from, to uint32) *SimplifiedEdge {
	for i := range sg.Edges {
		if sg.Edges[i].From == from && sg.Edges[i].To == to && sg.Edges[i].ParallelKey == 0 {
			return &sg.Edges[i]
		}
	}
	return nil
}

func TestSimplifyPreservesPathWeight(t *testing.T) {
	// P7: routing endpoint-to-endpoint on the original graph costs the
	// same as summing the simplified edges covering the same route. Node
	// 3 is itself an endpoint (it branches to node 6), so the 1->5 route
	// contracts into two simplified edges (1->3, 3->5), not one.
	g := buildChainGraph(t)
	sg := Simplify(g)

	origin, mid, dest := g.NodeToIndex[1], g.NodeToIndex[3], g.NodeToIndex[5]

	originalPath, err := routing.ShortestPath(routing.DijkstraVector, g, origin, dest, routing.Options{})
	if err != nil || originalPath == nil {
		t.Fatalf("original ShortestPath: path=%v err=%v", originalPath, err)
	}
	originalWeight := routing.TotalPathWeight(g, originalPath, nil)

	newOrigin, newMid, newDest := sg.OldToNew[origin], sg.OldToNew[mid], sg.OldToNew[dest]

	first := findSimplifiedEdge(sg, newOrigin, newMid)
	if first == nil {
		t.Fatalf("no simplified edge from %d to %d", newOrigin, newMid)
	}
	second := findSimplifiedEdge(sg, newMid, newDest)
	if second == nil {
		t.Fatalf("no simplified edge from %d to %d", newMid, newDest)
	}

	combined := first.Weight + second.Weight
	if diff := combined - originalWeight; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("combined simplified weight = %v, want %v", combined, originalWeight)
	}
	if len(first.Path) != 3 {
		t.Errorf("len(first.Path) = %d, want 3 (nodes 1,2,3)", len(first.Path))
	}
	if len(first.Ways) != 1 {
		t.Errorf("len(first.Ways) = %d, want 1 (only way 100 is traversed)", len(first.Ways))
	}
}
