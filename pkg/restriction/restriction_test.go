package restriction

import (
	"testing"

	"github.com/paulmach/osm"

	"github.com/azybler/osmroute/pkg/config"
	"github.com/azybler/osmroute/pkg/graph"
	rawosm "github.com/azybler/osmroute/pkg/osm"
)

// buildReferenceGraph builds the eight-node, four-way reference network
// from the spec's end-to-end scenarios (S1-S6), including restriction
// 3001 (no_right_turn via 1004 from 2002 to 2001).
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
	return g
}

func TestIndexReferenceRestriction(t *testing.T) {
	g := buildReferenceGraph(t)

	if err := Index(g); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(g.Restrictions) != 1 {
		t.Fatalf("expected restriction 3001 to survive validation, got %d restrictions", len(g.Restrictions))
	}

	viaIdx := g.NodeToIndex[1004]
	seqs, ok := g.IndexedRestrictions[viaIdx]
	if !ok || len(seqs) != 1 {
		t.Fatalf("IndexedRestrictions[%d] = %v, want exactly 1 sequence", viaIdx, seqs)
	}

	// no_right_turn from 2002 (via 1007) to 2001 (via 1003): the sequence
	// must be [to=1003, via=1004, from=1007].
	want := []osm.NodeID{1003, 1004, 1007}
	seq := seqs[0]
	if len(seq) != 3 {
		t.Fatalf("sequence length = %d, want 3", len(seq))
	}
	for i, nid := range want {
		if seq[i] != g.NodeToIndex[nid] {
			t.Errorf("seq[%d] = %d, want index of node %d (%d)", i, seq[i], nid, g.NodeToIndex[nid])
		}
	}
}

func TestIndexDropsUnresolvableRestriction(t *testing.T) {
	g := buildReferenceGraph(t)

	// Corrupt the restriction so its via-node is not trailing on from_way.
	g.Restrictions[3001].ViaNode = 1002 // interior node of way 2001, not trailing

	if err := Index(g); err == nil {
		t.Fatal("expected an error reporting the dropped restriction")
	}
	if len(g.Restrictions) != 0 {
		t.Errorf("expected the invalid restriction to be dropped, got %d remaining", len(g.Restrictions))
	}
	if len(g.IndexedRestrictions) != 0 {
		t.Errorf("expected no indexed sequences, got %d", len(g.IndexedRestrictions))
	}
}
