package graph

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/paulmach/osm"

	"github.com/azybler/osmroute/pkg/config"
	rawosm "github.com/azybler/osmroute/pkg/osm"
	"github.com/azybler/osmroute/pkg/tags"
)

// DataQualityError reports invariant I1's violation: a retained way
// references a node id absent from the raw node set. Unlike BadTagError/
// BadRestrictionError this is not locally recoverable — it is returned to
// the caller as a fatal construction failure (§7).
type DataQualityError struct {
	WayID  osm.WayID
	NodeID osm.NodeID
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: way %d references node %d, which is missing from the input", e.WayID, e.NodeID)
}

// BuildOptions configures Build (§4.2, §6 build_graph).
type BuildOptions struct {
	NetworkType config.NetworkType
	Config      *config.Config // nil uses config.Current()
}

// Build assembles a Graph from a raw OSM attribute tree: way retention and
// tag normalization (step 1), the node-keep set (step 2-3), directed edge
// emission honoring oneway/reverseway (step 4), restriction parsing
// (step 5), and dense vertex indexing (step 6). It does not compute
// weights or spatial indices — see ComputeWeights and pkg/spatial.
func Build(raw *rawosm.RawOSM, opts BuildOptions) (*Graph, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Current()
	}
	isRail := opts.NetworkType == config.Rail

	g := &Graph{
		Nodes:        make(map[osm.NodeID]*Node),
		Ways:         make(map[osm.WayID]*Way, len(raw.Ways)),
		Restrictions: make(map[osm.RelationID]*Restriction),
		NodeToWay:    make(map[osm.NodeID]map[osm.WayID]struct{}),
		EdgeToWay:    make(map[EdgeKey]osm.WayID),
	}

	// Step 1: retain ways passing the network-type exclusion rules, then
	// normalize their tags.
	nodeKeep := make(map[osm.NodeID]struct{})
	for id, rw := range raw.Ways {
		class, ok := wayClass(rw.Tags, isRail)
		if !ok {
			continue
		}
		strTags := stringTags(rw.Tags)
		if cfg.Excluded(opts.NetworkType, strTags) {
			continue
		}

		isRoundabout := strTags["junction"] == "roundabout"
		n, err := tags.Normalize(rw.Tags, class, isRoundabout, isRail, cfg)
		if err != nil {
			// Recoverable: Normalize already fell back to the class
			// default for the offending field.
			log.Printf("graph: way %d: %v", id, err)
		}

		way := &Way{
			ID:      id,
			NodeIDs: rw.Nodes,
			Tags:    rw.Tags,
			Class:   class,
			IsRail:  isRail,

			Maxspeed:   n.Maxspeed,
			Lanes:      n.Lanes,
			Oneway:     n.Oneway,
			Reverseway: n.Reverseway,

			RailType:    n.RailType,
			Electrified: n.Electrified,
			Gauge:       n.Gauge,
			Usage:       n.Usage,
			Name:        n.Name,
		}
		g.Ways[id] = way

		for _, nid := range rw.Nodes {
			nodeKeep[nid] = struct{}{}
		}
	}

	// Step 2-3: retain nodes referenced by retained ways.
	for nid := range nodeKeep {
		rn, ok := raw.Nodes[nid]
		if !ok {
			// Caught below per-way, with the offending way id attached.
			continue
		}
		g.Nodes[nid] = &Node{ID: nid, Loc: GeoLocation{Lat: rn.Lat, Lon: rn.Lon}, Tags: rn.Tags}
	}

	// I1: every node referenced by a retained way must exist in the input.
	for wid, w := range g.Ways {
		for _, nid := range w.NodeIDs {
			if _, ok := g.Nodes[nid]; !ok {
				return nil, &DataQualityError{WayID: wid, NodeID: nid}
			}
		}
	}

	// Step 4 + 6: edge emission, node->way index, and dense vertex
	// indexing — shared with Subgraph and the connectivity trimmer, which
	// both re-derive these from an already-typed node/way set instead of
	// a raw OSM tree.
	assemble(g)

	// Step 5: parse turn-restriction relations (structural validity only;
	// the adjacency-chain validity of §4.4 is pkg/restriction's job, run
	// after the CSR adjacency above exists).
	for id, rel := range raw.Relations {
		if r, ok := parseRestriction(id, rel, g.Ways); ok {
			g.Restrictions[id] = r
		}
	}

	return g, nil
}

// assemble derives NodeToWay, EdgeToWay, the dense vertex-index bijection,
// and the CSR Adjacency from g.Nodes/g.Ways, which must already be
// populated. Build calls this once from a raw OSM tree; Subgraph and the
// connectivity trimmer call it again after filtering an existing graph's
// typed node/way maps, to restore invariant I4 (§4.5).
func assemble(g *Graph) {
	g.NodeToWay = make(map[osm.NodeID]map[osm.WayID]struct{})
	g.EdgeToWay = make(map[EdgeKey]osm.WayID)

	// EdgeToWay ties break by smallest way id (§10 Open Question
	// resolution (c)); iterating ways in descending id order and letting
	// putEdge only overwrite on a strictly smaller id makes the result
	// independent of map iteration order.
	orderedWayIDs := make([]osm.WayID, 0, len(g.Ways))
	for wid := range g.Ways {
		orderedWayIDs = append(orderedWayIDs, wid)
	}
	sort.Slice(orderedWayIDs, func(i, j int) bool { return orderedWayIDs[i] > orderedWayIDs[j] })

	for _, wid := range orderedWayIDs {
		w := g.Ways[wid]
		for _, nid := range w.NodeIDs {
			set, ok := g.NodeToWay[nid]
			if !ok {
				set = make(map[osm.WayID]struct{})
				g.NodeToWay[nid] = set
			}
			set[wid] = struct{}{}
		}

		for i := 0; i < len(w.NodeIDs)-1; i++ {
			a, b := w.NodeIDs[i], w.NodeIDs[i+1]
			primaryFrom, primaryTo := a, b
			if w.Reverseway {
				primaryFrom, primaryTo = b, a
			}
			g.putEdge(primaryFrom, primaryTo, wid)
			if !w.Oneway {
				g.putEdge(primaryTo, primaryFrom, wid)
			}
		}
	}

	// Dense vertex indexing. Go map iteration has no stable order, so node
	// ids are sorted first to make index assignment reproducible across
	// runs (the spec only requires dense contiguous indexing, not a
	// particular order).
	indexToNode := make([]osm.NodeID, 0, len(g.Nodes))
	for nid := range g.Nodes {
		indexToNode = append(indexToNode, nid)
	}
	sort.Slice(indexToNode, func(i, j int) bool { return indexToNode[i] < indexToNode[j] })

	g.IndexToNode = indexToNode
	g.NodeToIndex = make(map[osm.NodeID]uint32, len(indexToNode))
	g.NodeCoordinates = make([][2]float64, len(indexToNode))
	for idx, nid := range indexToNode {
		g.NodeToIndex[nid] = uint32(idx)
		n := g.Nodes[nid]
		g.NodeCoordinates[idx] = [2]float64{n.Loc.Lat, n.Loc.Lon}
	}
	g.NumVertices = uint32(len(indexToNode))

	g.buildAdjacency()
}

// putEdge records a directed edge in EdgeToWay, keeping the existing entry
// unless the new way id is smaller (deterministic tie-break).
func (g *Graph) putEdge(from, to osm.NodeID, wid osm.WayID) {
	key := EdgeKey{From: from, To: to}
	if existing, ok := g.EdgeToWay[key]; !ok || wid < existing {
		g.EdgeToWay[key] = wid
	}
}

// buildAdjacency derives the CSR Adjacency from EdgeToWay plus NodeToIndex,
// once vertex indices are assigned.
func (g *Graph) buildAdjacency() {
	type idxEdge struct{ from, to uint32 }
	edges := make([]idxEdge, 0, len(g.EdgeToWay))
	for k := range g.EdgeToWay {
		edges = append(edges, idxEdge{from: g.NodeToIndex[k.From], to: g.NodeToIndex[k.To]})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})

	firstOut := make([]uint32, g.NumVertices+1)
	head := make([]uint32, len(edges))
	for i, e := range edges {
		head[i] = e.to
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= g.NumVertices; i++ {
		firstOut[i] += firstOut[i-1]
	}
	g.Adjacency = &Adjacency{FirstOut: firstOut, Head: head}
}

// wayClass returns the highway (or, for rail networks, railway) class of a
// way's raw tags, and whether the relevant tag was present at all (§4.2
// step 1's "carry highway (or railway)" test).
func wayClass(t map[string]any, isRail bool) (string, bool) {
	key := "highway"
	if isRail {
		key = "railway"
	}
	v, ok := t[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// stringTags narrows a raw any-valued tag dict to strings, for the
// exclusion-rule matcher which only ever compares tag values as strings.
func stringTags(t map[string]any) map[string]string {
	out := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// parseRestriction builds a Restriction from a raw relation, applying the
// structural half of §4.4's validity check (member shape, way existence,
// via-node XOR via-way). The adjacency-chain half (trailing-node checks,
// via-way chaining) runs later in pkg/restriction, once the CSR adjacency
// is available.
func parseRestriction(id osm.RelationID, rel *rawosm.RawRelation, ways map[osm.WayID]*Way) (*Restriction, bool) {
	typeTag, _ := rel.Tags["type"].(string)
	if typeTag != "restriction" {
		return nil, false
	}
	restrictionTag, _ := rel.Tags["restriction"].(string)
	if restrictionTag == "" {
		return nil, false
	}
	isExclusion := strings.HasPrefix(restrictionTag, "no_")
	isExclusive := strings.HasPrefix(restrictionTag, "only_")
	if !isExclusion && !isExclusive {
		return nil, false
	}

	var fromWay, toWay osm.WayID
	var haveFrom, haveTo bool
	var viaNode osm.NodeID
	var haveViaNode bool
	var viaWays []osm.WayID

	for _, m := range rel.Members {
		switch m.Role {
		case "from":
			if haveFrom || m.Type != osm.TypeWay {
				return nil, false
			}
			fromWay = osm.WayID(m.Ref)
			haveFrom = true
		case "to":
			if haveTo || m.Type != osm.TypeWay {
				return nil, false
			}
			toWay = osm.WayID(m.Ref)
			haveTo = true
		case "via":
			switch m.Type {
			case osm.TypeNode:
				if haveViaNode || len(viaWays) > 0 {
					return nil, false
				}
				viaNode = osm.NodeID(m.Ref)
				haveViaNode = true
			case osm.TypeWay:
				if haveViaNode {
					return nil, false
				}
				viaWays = append(viaWays, osm.WayID(m.Ref))
			}
		}
	}

	if !haveFrom || !haveTo {
		return nil, false
	}
	if haveViaNode == (len(viaWays) > 0) {
		return nil, false // exactly one of via-node / via-way(s), never both or neither
	}
	if _, ok := ways[fromWay]; !ok {
		return nil, false
	}
	if _, ok := ways[toWay]; !ok {
		return nil, false
	}
	if fromWay == toWay {
		return nil, false
	}
	seen := map[osm.WayID]struct{}{fromWay: {}, toWay: {}}
	for _, vw := range viaWays {
		if _, ok := ways[vw]; !ok {
			return nil, false
		}
		if _, dup := seen[vw]; dup {
			return nil, false
		}
		seen[vw] = struct{}{}
	}

	kind := ViaNode
	if len(viaWays) > 0 {
		kind = ViaWay
	}

	return &Restriction{
		ID:          id,
		Kind:        kind,
		FromWay:     fromWay,
		ToWay:       toWay,
		ViaNode:     viaNode,
		ViaWays:     viaWays,
		IsExclusion: isExclusion,
		IsExclusive: isExclusive,
		Tags:        stringTags(rel.Tags),
	}, true
}
