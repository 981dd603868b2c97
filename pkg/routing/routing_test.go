package routing

import (
	"math"
	"testing"

	"github.com/paulmach/osm"

	"github.com/azybler/osmroute/pkg/config"
	"github.com/azybler/osmroute/pkg/graph"
	rawosm "github.com/azybler/osmroute/pkg/osm"
	"github.com/azybler/osmroute/pkg/restriction"
)

// buildScenarioGraph builds the spec's eight-node reference network with
// weights computed, for a given weight type, restrictions indexed.
func buildScenarioGraph(t *testing.T, weightType config.WeightType) *graph.Graph {
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
		2004: {ID: 2004, Nodes: []osm.NodeID{1008, 1007}, Tags: map[string]any{
			"highway": "residential", "maxspeed": "50", "lanes": 1, "oneway": "yes",
		}},
	}

	relations := map[osm.RelationID]*rawosm.RawRelation{
		3001: {ID: 3001, Tags: map[string]any{"type": "restriction", "restriction": "no_right_turn"},
			Members: []rawosm.RawMember{
				{Type: osm.TypeWay, Ref: 2002, Role: "from"},
				{Type: osm.TypeWay, Ref: 2001, Role: "to"},
				{Type: osm.TypeNode, Ref: 1004, Role: "via"},
			},
		},
	}

	raw := &rawosm.RawOSM{Nodes: nodes, Ways: ways, Relations: relations}
	g, err := graph.Build(raw, graph.BuildOptions{NetworkType: config.Drive, Config: config.Default()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	graph.ComputeWeights(g, weightType, config.Default())
	if err := restriction.Index(g); err != nil {
		t.Logf("restriction.Index: %v", err)
	}
	return g
}

func nodePath(g *graph.Graph, path []uint32) []osm.NodeID {
	out := make([]osm.NodeID, len(path))
	for i, idx := range path {
		out[i] = g.IndexToNode[idx]
	}
	return out
}

func idxPath(g *graph.Graph, nodeIDs ...osm.NodeID) []uint32 {
	out := make([]uint32, len(nodeIDs))
	for i, n := range nodeIDs {
		out[i] = g.NodeToIndex[n]
	}
	return out
}

func equalPath(a, b []osm.NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestShortestPathDistance(t *testing.T) {
	// S1: distance shortest takes the direct residential road.
	g := buildScenarioGraph(t, config.WeightDistance)
	path, err := ShortestPath(DijkstraVector, g, g.NodeToIndex[1001], g.NodeToIndex[1004], Options{})
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	want := []osm.NodeID{1001, 1002, 1003, 1004}
	if got := nodePath(g, path); !equalPath(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
}

func TestShortestPathTime(t *testing.T) {
	// S2: time shortest picks the faster but longer primary road.
	g := buildScenarioGraph(t, config.WeightTime)
	path, err := ShortestPath(DijkstraVector, g, g.NodeToIndex[1001], g.NodeToIndex[1004], Options{})
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	want := []osm.NodeID{1001, 1006, 1007, 1004}
	if got := nodePath(g, path); !equalPath(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
}

func TestShortestPathNoRestrictionBaseline(t *testing.T) {
	// S3: with no cost adjustment, the direct via-1004 route is shortest.
	g := buildScenarioGraph(t, config.WeightDistance)
	path, err := ShortestPath(DijkstraVector, g, g.NodeToIndex[1007], g.NodeToIndex[1003], Options{})
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	want := []osm.NodeID{1007, 1004, 1003}
	if got := nodePath(g, path); !equalPath(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
}

func TestShortestPathRestrictionActive(t *testing.T) {
	// S4: with the turn-restriction adjustment, the direct route is
	// blocked and the detour via 1006/1001/1002 is taken instead.
	g := buildScenarioGraph(t, config.WeightDistance)
	opts := Options{CostAdjustment: RestrictionCostAdjustment(g)}
	path, err := ShortestPath(DijkstraVector, g, g.NodeToIndex[1007], g.NodeToIndex[1003], opts)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	want := []osm.NodeID{1007, 1006, 1001, 1002, 1003}
	if got := nodePath(g, path); !equalPath(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
}

func TestShortestPathNoPath(t *testing.T) {
	// S5: way 2004 is one-way 1008->1007 only, so there is no path back.
	g := buildScenarioGraph(t, config.WeightDistance)
	path, err := ShortestPath(DijkstraVector, g, g.NodeToIndex[1007], g.NodeToIndex[1008], Options{})
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if path != nil {
		t.Errorf("path = %v, want nil (no route)", path)
	}
}

func TestShortestPathTimeDistanceRatioMatchesMaxspeed(t *testing.T) {
	// S6.
	gd := buildScenarioGraph(t, config.WeightDistance)
	gt := buildScenarioGraph(t, config.WeightTime)

	pd, _ := ShortestPath(DijkstraVector, gd, gd.NodeToIndex[1001], gd.NodeToIndex[1003], Options{})
	pt, _ := ShortestPath(DijkstraVector, gt, gt.NodeToIndex[1001], gt.NodeToIndex[1003], Options{})

	totalD := TotalPathWeight(gd, pd, nil)
	totalT := TotalPathWeight(gt, pt, nil)
	if totalT == 0 {
		t.Fatal("zero time weight")
	}
	ratio := totalD / totalT
	if ratio < 49 || ratio > 51 {
		t.Errorf("distance/time ratio = %v, want ~50", ratio)
	}
}

func TestAlgorithmAgreement(t *testing.T) {
	// P3: all four algorithm variants agree on total cost.
	g := buildScenarioGraph(t, config.WeightDistance)
	origin, dest := g.NodeToIndex[1001], g.NodeToIndex[1004]

	distHeuristic := DistanceHeuristic(g)
	algos := []struct {
		name string
		algo Algorithm
		opts Options
	}{
		{"DijkstraVector", DijkstraVector, Options{}},
		{"DijkstraDict", DijkstraDict, Options{}},
		{"AStarVector", AStarVector, Options{Heuristic: distHeuristic}},
		{"AStarDict", AStarDict, Options{Heuristic: distHeuristic}},
	}

	var want float64 = -1
	for _, tc := range algos {
		path, err := ShortestPath(tc.algo, g, origin, dest, tc.opts)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if path == nil {
			t.Fatalf("%s: no path found", tc.name)
		}
		if path[0] != origin || path[len(path)-1] != dest {
			t.Errorf("%s: path endpoints = %d..%d, want %d..%d", tc.name, path[0], path[len(path)-1], origin, dest)
		}
		total := TotalPathWeight(g, path, nil)
		if want < 0 {
			want = total
		} else if math.Abs(total-want) > 1e-9 {
			t.Errorf("%s: total weight = %v, want %v", tc.name, total, want)
		}
	}
}

func TestWeightConsistency(t *testing.T) {
	// P2.
	g := buildScenarioGraph(t, config.WeightDistance)
	path, err := ShortestPath(DijkstraVector, g, g.NodeToIndex[1001], g.NodeToIndex[1005], Options{})
	if err != nil || path == nil {
		t.Fatalf("ShortestPath: path=%v err=%v", path, err)
	}
	weights := WeightsFromPath(g, path, nil)
	var sum float64
	for _, w := range weights {
		sum += w
	}
	total := TotalPathWeight(g, path, nil)
	if math.Abs(sum-total) > 1e-9 {
		t.Errorf("sum(weights_from_path) = %v, total_path_weight = %v", sum, total)
	}
}

func TestRestrictionEnforcementForbidsExactSubsequence(t *testing.T) {
	// P5.
	g := buildScenarioGraph(t, config.WeightDistance)
	opts := Options{CostAdjustment: RestrictionCostAdjustment(g)}
	path, err := ShortestPath(DijkstraVector, g, g.NodeToIndex[1007], g.NodeToIndex[1003], opts)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	forbidden := idxPath(g, 1007, 1004, 1003)
	if containsSubsequence(path, forbidden) {
		t.Errorf("path %v contains the forbidden turn subsequence %v", path, forbidden)
	}
}

func containsSubsequence(path, sub []uint32) bool {
	if len(sub) == 0 || len(path) < len(sub) {
		return false
	}
	for i := 0; i+len(sub) <= len(path); i++ {
		match := true
		for j := range sub {
			if path[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestSetDijkstraStateMatchesDirectSearch(t *testing.T) {
	g := buildScenarioGraph(t, config.WeightDistance)
	origin := g.NodeToIndex[1001]
	dest := g.NodeToIndex[1004]

	SetDijkstraState(g, []uint32{origin}, Options{})
	fromState, err := ShortestPathFromState(g, origin, dest)
	if err != nil {
		t.Fatalf("ShortestPathFromState: %v", err)
	}
	direct, err := ShortestPath(DijkstraVector, g, origin, dest, Options{})
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if TotalPathWeight(g, fromState, nil) != TotalPathWeight(g, direct, nil) {
		t.Errorf("cached-state path weight %v != direct search weight %v",
			TotalPathWeight(g, fromState, nil), TotalPathWeight(g, direct, nil))
	}
}

func TestShortestPathFromStateUndefinedOrigin(t *testing.T) {
	g := buildScenarioGraph(t, config.WeightDistance)
	_, err := ShortestPathFromState(g, g.NodeToIndex[1001], g.NodeToIndex[1004])
	if _, ok := err.(*UndefinedCachedStateError); !ok {
		t.Errorf("err = %v, want *UndefinedCachedStateError", err)
	}
}

func TestPrecomputeStatesCoversEverySource(t *testing.T) {
	g := buildScenarioGraph(t, config.WeightDistance)
	sources := []uint32{g.NodeToIndex[1001], g.NodeToIndex[1004], g.NodeToIndex[1007]}

	PrecomputeStates(g, sources, Options{}, 2)

	for _, src := range sources {
		if _, err := ShortestPathFromState(g, src, g.NodeToIndex[1005]); err != nil {
			if _, ok := err.(*UndefinedCachedStateError); ok {
				t.Errorf("source %d missing a precomputed state", src)
			}
		}
	}
}
