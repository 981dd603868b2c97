// Package osm ingests raw OSM extracts (PBF files) into the generic
// attribute trees the rest of the pipeline consumes: node/way/relation
// entries carrying id, geometry, and a raw tag dictionary (§6 input
// contract). It deliberately stops short of edge emission — tag
// normalization (pkg/tags) decides each way's oneway/reverseway flags and
// must run before any directed edge is built, so that work now lives in
// pkg/graph.Build instead of here (restrictions are parsed and validated
// there too, after the edges exist), unlike the teacher's single-pass parser
// which built edges directly off a hard-coded car-only accessibility table.
package osm

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// RawNode is one parsed OSM node: coordinates plus its raw tag dictionary.
type RawNode struct {
	ID   osm.NodeID
	Lat  float64
	Lon  float64
	Tags map[string]any
}

// RawWay is one parsed OSM way, member nodes kept in their original order.
type RawWay struct {
	ID    osm.WayID
	Nodes []osm.NodeID
	Tags  map[string]any
}

// RawMember is one member of a relation, typed by the referenced element.
type RawMember struct {
	Type osm.Type
	Ref  int64
	Role string
}

// RawRelation is one parsed OSM relation (turn restrictions are the only
// relation kind this pipeline cares about, but all are retained — kind
// filtering is pkg/graph.Build's job, not the parser's).
type RawRelation struct {
	ID      osm.RelationID
	Members []RawMember
	Tags    map[string]any
}

// RawOSM is the generic attribute tree produced by Parse and consumed by
// pkg/graph.Build.
type RawOSM struct {
	Nodes     map[osm.NodeID]*RawNode
	Ways      map[osm.WayID]*RawWay
	Relations map[osm.RelationID]*RawRelation
}

func tagDict(t osm.Tags) map[string]any {
	if len(t) == 0 {
		return nil
	}
	m := make(map[string]any, len(t))
	for _, tag := range t {
		m[tag.Key] = tag.Value
	}
	return m
}

// Parse reads an OSM PBF extract and returns its raw node/way/relation
// trees. It scans the stream twice, mirroring the teacher's two-pass
// approach: a first pass collects ways and relations (and, from the ways,
// the set of node ids actually referenced), then a seek-back pass collects
// coordinates only for those referenced nodes. rs must support seeking
// back to the start between passes.
func Parse(ctx context.Context, rs io.ReadSeeker) (*RawOSM, error) {
	ways := make(map[osm.WayID]*RawWay)
	relations := make(map[osm.RelationID]*RawRelation)

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Way:
			if len(o.Nodes) < 2 {
				continue
			}
			nodeIDs := make([]osm.NodeID, len(o.Nodes))
			for i, wn := range o.Nodes {
				nodeIDs[i] = wn.ID
			}
			ways[o.ID] = &RawWay{ID: o.ID, Nodes: nodeIDs, Tags: tagDict(o.Tags)}
		case *osm.Relation:
			members := make([]RawMember, len(o.Members))
			for i, m := range o.Members {
				members[i] = RawMember{Type: m.Type, Ref: m.Ref, Role: m.Role}
			}
			relations[o.ID] = &RawRelation{ID: o.ID, Members: members, Tags: tagDict(o.Tags)}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("osm: pass 1 (ways, relations): %w", err)
	}
	scanner.Close()

	log.Printf("osm: pass 1 complete: %d ways, %d relations", len(ways), len(relations))

	referenced := make(map[osm.NodeID]struct{})
	for _, w := range ways {
		for _, id := range w.Nodes {
			referenced[id] = struct{}{}
		}
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("osm: seeking back for pass 2: %w", err)
	}

	nodes := make(map[osm.NodeID]*RawNode, len(referenced))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referenced[n.ID]; !needed {
			continue
		}
		nodes[n.ID] = &RawNode{ID: n.ID, Lat: n.Lat, Lon: n.Lon, Tags: tagDict(n.Tags)}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("osm: pass 2 (nodes): %w", err)
	}
	scanner.Close()

	log.Printf("osm: pass 2 complete: %d node coordinates collected (of %d referenced)", len(nodes), len(referenced))

	return &RawOSM{Nodes: nodes, Ways: ways, Relations: relations}, nil
}
