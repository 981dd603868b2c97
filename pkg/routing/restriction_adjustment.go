package routing

import (
	"math"

	"github.com/azybler/osmroute/pkg/graph"
)

// RestrictionCostAdjustment returns a CostAdjustment enforcing g's
// indexed turn restrictions (§4.4 Encoding, §4.7 "Turn-restriction cost
// adjustment"): moving from u to v, for every sequence [v, u, p_1, p_2,
// ...] stored at key u, walk u's parent chain in lock-step; a full match
// returns +Inf.
func RestrictionCostAdjustment(g *graph.Graph) CostAdjustment {
	return func(u, v uint32, parents Parents) float64 {
		seqs := g.IndexedRestrictions[u]
		for _, seq := range seqs {
			if len(seq) < 2 || seq[0] != v {
				continue
			}
			if chainMatches(seq, u, parents) {
				return math.Inf(1)
			}
		}
		return 0
	}
}

// chainMatches checks seq[2:] against the parent chain starting at u:
// seq[2] must be u's parent, seq[3] that vertex's parent, and so on.
func chainMatches(seq graph.RestrictionSeq, u uint32, parents Parents) bool {
	cur := u
	for i := 2; i < len(seq); i++ {
		p, ok := parents.ParentOf(cur)
		if !ok || p != seq[i] {
			return false
		}
		cur = p
	}
	return true
}
