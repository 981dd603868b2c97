package graph

import "github.com/paulmach/osm"

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // byte is sufficient — max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	// Union by rank.
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// LargestComponent returns the vertex indices belonging to the largest
// weakly connected component (treating the directed adjacency as
// undirected), per §4.5.
func LargestComponent(g *Graph) []uint32 {
	if g.NumVertices == 0 {
		return nil
	}

	uf := NewUnionFind(g.NumVertices)

	for u := uint32(0); u < g.NumVertices; u++ {
		start, end := g.Adjacency.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.Union(u, g.Adjacency.Head[e])
		}
	}

	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := uint32(0); i < g.NumVertices; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < g.NumVertices; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}

	return nodes
}

// TrimToLargestComponent rebuilds g in place so that it contains only the
// largest weakly connected component (§4.5): cascade-deletes ways with any
// dropped node, restrictions referencing any dropped way, recomputes the
// vertex-index bijection and CSR adjacency (restoring I4), and recomputes
// weights with the same weight type the graph was already using. Spatial
// indices are left for the caller to rebuild (pkg/spatial has no
// dependency on pkg/graph internals, so graph cannot rebuild them itself).
func TrimToLargestComponent(g *Graph) {
	keep := LargestComponent(g)
	Subgraph(g, keep)
}

// Subgraph rebuilds g in place to contain exactly the ways with at least
// one node in the given vertex-index subset, and every node referenced by
// those ways (§6 osm_subgraph — a retained way may therefore pull in nodes
// outside the original subset). Cascades to ways and restrictions the same
// way TrimToLargestComponent does, and recomputes weights if the graph
// already had any.
func Subgraph(g *Graph, vertices []uint32) {
	keepNode := make(map[osm.NodeID]struct{}, len(vertices))
	for _, idx := range vertices {
		keepNode[g.IndexToNode[idx]] = struct{}{}
	}

	keepWays := make(map[osm.WayID]*Way)
	for wid, w := range g.Ways {
		for _, nid := range w.NodeIDs {
			if _, ok := keepNode[nid]; ok {
				keepWays[wid] = w
				break
			}
		}
	}

	keepNodes := make(map[osm.NodeID]*Node)
	for _, w := range keepWays {
		for _, nid := range w.NodeIDs {
			if n, ok := g.Nodes[nid]; ok {
				keepNodes[nid] = n
			}
		}
	}

	keepRestrictions := make(map[osm.RelationID]*Restriction)
	for rid, r := range g.Restrictions {
		if !restrictionSurvives(r, keepWays) {
			continue
		}
		keepRestrictions[rid] = r
	}

	hadWeights := g.Weights != nil
	weightType := g.WeightType

	g.Nodes = keepNodes
	g.Ways = keepWays
	g.Restrictions = keepRestrictions

	assemble(g)

	if hadWeights {
		ComputeWeights(g, weightType, nil)
	}
	// Restriction encoding and spatial indices are rebuilt by the caller
	// (pkg/restriction.Index, pkg/spatial.BuildKD/BuildRTree) — both
	// depend on the freshly rebuilt adjacency above.
	g.IndexedRestrictions = nil
	g.KDTree = nil
	g.RTree = nil
}

func restrictionSurvives(r *Restriction, ways map[osm.WayID]*Way) bool {
	if _, ok := ways[r.FromWay]; !ok {
		return false
	}
	if _, ok := ways[r.ToWay]; !ok {
		return false
	}
	for _, vw := range r.ViaWays {
		if _, ok := ways[vw]; !ok {
			return false
		}
	}
	return true
}
