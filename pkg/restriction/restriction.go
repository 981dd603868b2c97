// Package restriction converts validated turn-restriction relations into
// the via-vertex-indexed sequences the routing core's turn-restriction
// cost adjustment consumes (§4.4). It has no teacher analog — the
// teacher's domain (contraction-hierarchy car routing) never modeled OSM
// turn restrictions at all — so this package is grounded directly on
// spec.md §4.4's algorithm description, reusing the teacher's adjacency
// (CSR) and map-of-slices idioms from pkg/graph.
package restriction

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/paulmach/osm"

	"github.com/azybler/osmroute/pkg/graph"
)

// BadRestrictionError reports a relation that failed §4.4's validity
// check. Recovered locally: the restriction is dropped and the build
// continues (§7).
type BadRestrictionError struct {
	ID     osm.RelationID
	Reason string
}

func (e *BadRestrictionError) Error() string {
	return fmt.Sprintf("bad restriction %d: %s", e.ID, e.Reason)
}

// wayEdge is one directed step recorded while scanning g.EdgeToWay: an
// edge along a specific way, from Node to the neighbor it connects to.
type wayEdge struct {
	Node osm.NodeID
	Way  osm.WayID
}

// adjacencyIndex is the node-id-keyed predecessor/successor lookup the
// validity checks and chain walks need; g.Adjacency only supports forward
// scans by vertex index, so this is built once per Index call from
// g.EdgeToWay (§4.4's "adjacent node on way w to reference node x" rule).
type adjacencyIndex struct {
	succ map[osm.NodeID][]wayEdge
	pred map[osm.NodeID][]wayEdge
}

func buildAdjacencyIndex(g *graph.Graph) *adjacencyIndex {
	idx := &adjacencyIndex{succ: make(map[osm.NodeID][]wayEdge), pred: make(map[osm.NodeID][]wayEdge)}
	for k, w := range g.EdgeToWay {
		idx.succ[k.From] = append(idx.succ[k.From], wayEdge{Node: k.To, Way: w})
		idx.pred[k.To] = append(idx.pred[k.To], wayEdge{Node: k.From, Way: w})
	}
	for _, list := range idx.succ {
		sort.Slice(list, func(i, j int) bool { return list[i].Node < list[j].Node })
	}
	for _, list := range idx.pred {
		sort.Slice(list, func(i, j int) bool { return list[i].Node < list[j].Node })
	}
	return idx
}

// onWay filters a wayEdge list down to the entries using way w,
// deterministically ordered (ties broken by node id, per the sort above).
func onWay(list []wayEdge, w osm.WayID) []wayEdge {
	var out []wayEdge
	for _, e := range list {
		if e.Way == w {
			out = append(out, e)
		}
	}
	return out
}

func isTrailingNode(nodeIDs []osm.NodeID, n osm.NodeID) bool {
	return len(nodeIDs) > 0 && (nodeIDs[0] == n || nodeIDs[len(nodeIDs)-1] == n)
}

func otherTrailingEnd(nodeIDs []osm.NodeID, n osm.NodeID) (osm.NodeID, bool) {
	if len(nodeIDs) == 0 {
		return 0, false
	}
	first, last := nodeIDs[0], nodeIDs[len(nodeIDs)-1]
	if first == last {
		return 0, false // loop way — which trailing end is "the other" is ambiguous
	}
	switch n {
	case first:
		return last, true
	case last:
		return first, true
	default:
		return 0, false
	}
}

// Index validates every restriction retained by graph.Build against §4.4's
// full adjacency-chain rule, drops (and logs) the ones that fail, and
// returns the via-vertex-indexed sequence map. It mutates g.Restrictions
// to drop the invalid entries and sets g.IndexedRestrictions to the
// result, so callers only need g afterward.
func Index(g *graph.Graph) error {
	idx := buildAdjacencyIndex(g)
	result := make(map[uint32][]graph.RestrictionSeq)

	ids := make([]osm.RelationID, 0, len(g.Restrictions))
	for id := range g.Restrictions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var errs []error
	for _, id := range ids {
		r := g.Restrictions[id]
		seqs, err := indexOne(g, idx, r)
		if err != nil {
			log.Printf("restriction: dropping %v", err)
			errs = append(errs, err)
			delete(g.Restrictions, id)
			continue
		}
		for _, seq := range seqs {
			key := seq[1]
			result[key] = append(result[key], seq)
		}
	}

	g.IndexedRestrictions = result
	return joinErrs(errs)
}

func joinErrs(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
}

// indexOne validates one restriction and produces every RestrictionSeq it
// encodes to: one sequence for a "no_" exclusion, one per excluded
// alternative for an "only_" exclusive form (§4.4 Encoding).
func indexOne(g *graph.Graph, idx *adjacencyIndex, r *graph.Restriction) ([]graph.RestrictionSeq, error) {
	fromWay, ok := g.Ways[r.FromWay]
	if !ok {
		return nil, &BadRestrictionError{ID: r.ID, Reason: "from_way no longer exists"}
	}
	toWay, ok := g.Ways[r.ToWay]
	if !ok {
		return nil, &BadRestrictionError{ID: r.ID, Reason: "to_way no longer exists"}
	}

	var viaEntry, viaExit osm.NodeID // node where the via chain touches from_way / to_way
	var viaChain []osm.NodeID        // junction nodes from viaEntry to viaExit, inclusive

	switch r.Kind {
	case graph.ViaNode:
		via := r.ViaNode
		if !isTrailingNode(fromWay.NodeIDs, via) || !isTrailingNode(toWay.NodeIDs, via) {
			return nil, &BadRestrictionError{ID: r.ID, Reason: "via_node is not a trailing node of both from_way and to_way"}
		}
		viaEntry, viaExit = via, via
		viaChain = []osm.NodeID{via}

	case graph.ViaWay:
		chain, err := chainViaWays(fromWay, toWay, r.ViaWays, g)
		if err != nil {
			return nil, &BadRestrictionError{ID: r.ID, Reason: err.Error()}
		}
		viaChain = chain
		viaEntry = chain[0]
		viaExit = chain[len(chain)-1]

	default:
		return nil, &BadRestrictionError{ID: r.ID, Reason: "unknown restriction kind"}
	}

	fromCandidates := onWay(idx.pred[viaEntry], fromWay.ID)
	if len(fromCandidates) == 0 {
		return nil, &BadRestrictionError{ID: r.ID, Reason: "from_way has no edge arriving at the via chain's entry node"}
	}
	fromNode := fromCandidates[0].Node
	fromIdx, ok := g.NodeToIndex[fromNode]
	if !ok {
		return nil, &BadRestrictionError{ID: r.ID, Reason: "from-adjacent node is not a vertex"}
	}

	viaVertexChain := make([]uint32, len(viaChain))
	for i, n := range viaChain {
		v, ok := g.NodeToIndex[n]
		if !ok {
			return nil, &BadRestrictionError{ID: r.ID, Reason: "via chain node is not a vertex"}
		}
		viaVertexChain[i] = v
	}
	// Reverse so index 0 is nearest the "to" end (§4.4 Encoding).
	reversed := make([]uint32, len(viaVertexChain))
	for i, v := range viaVertexChain {
		reversed[len(viaVertexChain)-1-i] = v
	}

	if r.IsExclusion {
		toCandidates := onWay(idx.succ[viaExit], toWay.ID)
		if len(toCandidates) == 0 {
			return nil, &BadRestrictionError{ID: r.ID, Reason: "to_way has no edge leaving the via chain's exit node"}
		}
		toIdx, ok := g.NodeToIndex[toCandidates[0].Node]
		if !ok {
			return nil, &BadRestrictionError{ID: r.ID, Reason: "to-adjacent node is not a vertex"}
		}
		return []graph.RestrictionSeq{buildSeq(toIdx, reversed, fromIdx)}, nil
	}

	// IsExclusive ("only_..."): every other way incident to the via
	// chain's exit node is prohibited, one sequence per adjacent
	// alternative (§4.4 — and, per the Open Question resolution, both
	// directions of a two-way interior alternative are restricted, not
	// just the one opposite the from-way).
	var seqs []graph.RestrictionSeq
	for wayID := range g.NodeToWay[viaExit] {
		if wayID == fromWay.ID || wayID == toWay.ID {
			continue
		}
		for _, alt := range onWay(idx.succ[viaExit], wayID) {
			altIdx, ok := g.NodeToIndex[alt.Node]
			if !ok {
				continue
			}
			seqs = append(seqs, buildSeq(altIdx, reversed, fromIdx))
		}
	}
	if len(seqs) == 0 {
		return nil, &BadRestrictionError{ID: r.ID, Reason: "only_ restriction has no alternative ways to exclude"}
	}
	return seqs, nil
}

func buildSeq(toIdx uint32, viaChainToFromEnd []uint32, fromIdx uint32) graph.RestrictionSeq {
	seq := make(graph.RestrictionSeq, 0, len(viaChainToFromEnd)+2)
	seq = append(seq, toIdx)
	seq = append(seq, viaChainToFromEnd...)
	seq = append(seq, fromIdx)
	return seq
}

// chainViaWays validates that viaWays join end-to-end into a single chain
// between fromWay and toWay (§4.4 via-way validity check) and returns the
// ordered junction nodes from the from_way-adjacent end to the
// to_way-adjacent end, inclusive.
func chainViaWays(fromWay, toWay *graph.Way, viaWays []osm.WayID, g *graph.Graph) ([]osm.NodeID, error) {
	if len(viaWays) == 0 {
		return nil, fmt.Errorf("via-way restriction has no via ways")
	}
	first, ok := g.Ways[viaWays[0]]
	if !ok {
		return nil, fmt.Errorf("via way %d does not exist", viaWays[0])
	}

	var entry osm.NodeID
	found := false
	for _, candidate := range []osm.NodeID{first.NodeIDs[0], first.NodeIDs[len(first.NodeIDs)-1]} {
		if isTrailingNode(fromWay.NodeIDs, candidate) {
			entry = candidate
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("first via way does not share a trailing node with from_way")
	}

	chain := []osm.NodeID{entry}
	current, ok := otherTrailingEnd(first.NodeIDs, entry)
	if !ok {
		return nil, fmt.Errorf("via way %d is a closed loop, chain direction is ambiguous", first.ID)
	}
	chain = append(chain, current)

	for i := 1; i < len(viaWays); i++ {
		w, ok := g.Ways[viaWays[i]]
		if !ok {
			return nil, fmt.Errorf("via way %d does not exist", viaWays[i])
		}
		if !isTrailingNode(w.NodeIDs, current) {
			return nil, fmt.Errorf("via way %d does not chain onto the previous via way", w.ID)
		}
		next, ok := otherTrailingEnd(w.NodeIDs, current)
		if !ok {
			return nil, fmt.Errorf("via way %d is a closed loop, chain direction is ambiguous", w.ID)
		}
		current = next
		chain = append(chain, current)
	}

	if !isTrailingNode(toWay.NodeIDs, current) {
		return nil, fmt.Errorf("last via way does not share a trailing node with to_way")
	}

	return chain, nil
}
