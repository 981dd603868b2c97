// Package simplify produces a topologically reduced secondary graph whose
// vertices are only true intersections and dead-ends of the original
// (§4.8). Grounded on pkg/graph/component.go's plain forward-walk-over-CSR
// style; no teacher analog exists (the teacher never simplifies a graph,
// only contracts it for CH shortcuts, a different operation entirely).
package simplify

import (
	"github.com/paulmach/osm"

	"github.com/azybler/osmroute/pkg/graph"
)

// SimplifiedEdge is one contracted edge of a SimplifiedGraph: the full
// ordered list of original vertex indices on the path (inclusive of both
// endpoints), the set of way ids traversed, and the edge's total weight.
type SimplifiedEdge struct {
	From, To    uint32
	Path        []uint32
	Ways        map[osm.WayID]struct{}
	Weight      float64
	ParallelKey int // 0 is the primary (minimum-weight) slot for this (From, To) pair
}

// SimplifiedGraph shares the original graph's node store; its own vertices
// are a dense re-indexing of the original's endpoint vertices.
type SimplifiedGraph struct {
	Original *graph.Graph

	NewToOld []uint32          // new index -> original vertex index
	OldToNew map[uint32]uint32 // original vertex index -> new index (endpoints only)

	Edges []SimplifiedEdge
}

// neighborInfo holds the per-vertex counts and distinct-neighbor sets
// isEndpoint needs. A one-way chain link has out-degree 1 and in-degree 1
// from the *same* distinct neighbor pair it always had, so "distinct
// neighbors" is the union of predecessors and successors, not out-heads
// alone — otherwise no one-way stretch would ever simplify.
type neighborInfo struct {
	outDeg, inDeg []uint32
	neighbors     []map[uint32]struct{}
}

func computeNeighborInfo(g *graph.Graph) *neighborInfo {
	n := &neighborInfo{
		outDeg:    make([]uint32, g.NumVertices),
		inDeg:     make([]uint32, g.NumVertices),
		neighbors: make([]map[uint32]struct{}, g.NumVertices),
	}
	for v := range n.neighbors {
		n.neighbors[v] = make(map[uint32]struct{})
	}
	for u := uint32(0); u < g.NumVertices; u++ {
		start, end := g.EdgesFrom(u)
		n.outDeg[u] = end - start
		for e := start; e < end; e++ {
			v := g.Adjacency.Head[e]
			n.inDeg[v]++
			n.neighbors[u][v] = struct{}{}
			n.neighbors[v][u] = struct{}{}
		}
	}
	return n
}

// isEndpoint implements §4.8's endpoint predicate: a vertex is an endpoint
// iff it has a self-loop, is a source/sink, has any count of distinct
// neighbors other than two, or has exactly two distinct neighbors but
// in-degree != out-degree (a one-way change).
func isEndpoint(g *graph.Graph, n *neighborInfo, v uint32) bool {
	if _, ok := n.neighbors[v][v]; ok {
		return true // self-loop
	}
	if n.outDeg[v] == 0 || n.inDeg[v] == 0 {
		return true // source or sink
	}
	if len(n.neighbors[v]) != 2 {
		return true
	}
	return n.inDeg[v] != n.outDeg[v]
}

// Simplify builds a SimplifiedGraph from g (§4.8 steps 1-4).
func Simplify(g *graph.Graph) *SimplifiedGraph {
	n := computeNeighborInfo(g)

	endpoints := make([]bool, g.NumVertices)
	var newToOld []uint32
	oldToNew := make(map[uint32]uint32)
	for v := uint32(0); v < g.NumVertices; v++ {
		if isEndpoint(g, n, v) {
			endpoints[v] = true
			oldToNew[v] = uint32(len(newToOld))
			newToOld = append(newToOld, v)
		}
	}

	sg := &SimplifiedGraph{Original: g, NewToOld: newToOld, OldToNew: oldToNew}
	groups := make(map[[2]uint32][]int) // (newFrom, newTo) -> indices into sg.Edges

	for _, u := range newToOld {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			first := g.Adjacency.Head[e]
			path, ways, weight, endpoint, ok := walkChain(g, endpoints, u, first, g.Weights[e])
			if !ok {
				continue
			}
			newFrom, newTo := oldToNew[u], oldToNew[endpoint]
			key := [2]uint32{newFrom, newTo}
			groups[key] = append(groups[key], len(sg.Edges))
			sg.Edges = append(sg.Edges, SimplifiedEdge{From: newFrom, To: newTo, Path: path, Ways: ways, Weight: weight})
		}
	}

	// Within each (from, to) pair, the minimum-weight edge takes
	// ParallelKey 0 (the primary slot); the rest get incrementing keys
	// (§4.8 step 3).
	for _, indices := range groups {
		minIdx := indices[0]
		for _, idx := range indices[1:] {
			if sg.Edges[idx].Weight < sg.Edges[minIdx].Weight {
				minIdx = idx
			}
		}
		next := 1
		for _, idx := range indices {
			if idx == minIdx {
				sg.Edges[idx].ParallelKey = 0
			} else {
				sg.Edges[idx].ParallelKey = next
				next++
			}
		}
	}

	return sg
}

// walkChain follows the unique non-returning neighbor from (u, first)
// until an endpoint is reached (§4.8 step 2), collecting the path and
// way-id set traversed and summing edge weights.
func walkChain(g *graph.Graph, endpoints []bool, u, first uint32, firstWeight float64) (path []uint32, ways map[osm.WayID]struct{}, weight float64, endpoint uint32, ok bool) {
	path = []uint32{u, first}
	ways = make(map[osm.WayID]struct{})
	weight = firstWeight

	if wid, found := g.EdgeWay(g.IndexToNode[u], g.IndexToNode[first]); found {
		ways[wid] = struct{}{}
	}

	if endpoints[first] {
		return path, ways, weight, first, true
	}

	prev := u
	cur := first
	for !endpoints[cur] {
		start, end := g.EdgesFrom(cur)
		var next uint32
		found := false
		for e := start; e < end; e++ {
			head := g.Adjacency.Head[e]
			if head == prev {
				continue // the unique non-returning neighbor excludes stepping straight back
			}
			next = head
			weight += g.Weights[e]
			if wid, ok := g.EdgeWay(g.IndexToNode[cur], g.IndexToNode[head]); ok {
				ways[wid] = struct{}{}
			}
			found = true
			break
		}
		if !found {
			return nil, nil, 0, 0, false
		}
		path = append(path, next)
		prev = cur
		cur = next
	}

	return path, ways, weight, cur, true
}
