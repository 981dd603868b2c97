package graph

import (
	"math"

	"github.com/azybler/osmroute/pkg/config"
	"github.com/azybler/osmroute/pkg/geo"
)

// ComputeWeights fills g.Weights, CSR-parallel to g.Adjacency.Head, per
// §4.3. It must be called after g.Adjacency is built (Build builds the
// adjacency but does not call this; Subgraph and TrimToLargestComponent
// call it again themselves when the graph already had weights). Weights are clipped to the smallest positive
// finite float64 to guarantee strict positivity (I3), matching Dijkstra's
// optimality precondition and letting the routing core treat "no edge" as
// distinct from "zero-cost edge".
func ComputeWeights(g *Graph, weightType config.WeightType, cfg *config.Config) {
	if cfg == nil {
		cfg = config.Current()
	}
	g.WeightType = weightType
	g.Weights = make([]float64, len(g.Adjacency.Head))

	for u := uint32(0); u < g.NumVertices; u++ {
		start, end := g.Adjacency.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Adjacency.Head[e]
			w := g.edgeWeight(u, v, weightType, cfg)
			if w < math.SmallestNonzeroFloat64 {
				w = math.SmallestNonzeroFloat64
			}
			g.Weights[e] = w
		}
	}
}

func (g *Graph) edgeWeight(u, v uint32, weightType config.WeightType, cfg *config.Config) float64 {
	uLoc := g.NodeCoordinates[u]
	vLoc := g.NodeCoordinates[v]
	distKm := geo.Haversine(uLoc[0], uLoc[1], vLoc[0], vLoc[1]) / 1000.0

	if weightType == config.WeightDistance {
		return distKm
	}

	wayID, _ := g.EdgeWay(g.IndexToNode[u], g.IndexToNode[v])
	way := g.Ways[wayID]
	maxspeed := cfg.MaxspeedFor("other")
	lanes := 1
	if way != nil {
		maxspeed = way.Maxspeed
		lanes = way.Lanes
	}
	if maxspeed <= 0 {
		maxspeed = 1 // avoid division by zero on malformed input
	}

	switch weightType {
	case config.WeightTime:
		return distKm / float64(maxspeed)
	case config.WeightLaneEfficiency:
		eta := cfg.LaneEfficiencyFor(lanes)
		return distKm / (float64(maxspeed) * eta)
	default:
		return distKm
	}
}
