// Package routing implements the Dijkstra/A* core (§4.7): early-exit
// shortest paths over a graph.Graph, parameterized by a cost-adjustment
// plugin (turn restrictions) and a heuristic, in vector- and dict-backed
// flavors. Grounded on the teacher's dijkstra.go binary-heap pattern,
// generalized from a bidirectional contraction-hierarchy search into the
// single-direction early-exit search the spec actually calls for.
package routing

import (
	"fmt"
	"math"

	"github.com/azybler/osmroute/pkg/geo"
	"github.com/azybler/osmroute/pkg/graph"
)

// Algorithm selects the search variant and its frontier representation.
type Algorithm int

const (
	DijkstraVector Algorithm = iota
	DijkstraDict
	AStarVector
	AStarDict
)

// UnknownOptionError reports an unrecognized option name (algorithm,
// heuristic, cost adjustment, network type or weight type), surfaced to
// the caller (§7).
type UnknownOptionError struct {
	Option string
	Value  string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("routing: unknown %s: %q", e.Option, e.Value)
}

// CostAdjustment returns an additional cost for moving from u to v given
// the search's parent chain so far. A return of +Inf prohibits the move.
type CostAdjustment func(u, v uint32, parents Parents) float64

// ZeroCostAdjustment never adjusts a move; the default when no
// cost-adjustment is supplied.
func ZeroCostAdjustment(u, v uint32, parents Parents) float64 { return 0 }

// Heuristic estimates the remaining cost from v to goal. Must be
// admissible and non-negative for A* to guarantee optimality.
type Heuristic func(v, goal uint32) float64

// DistanceHeuristic is haversine(coord_v, coord_goal) in kilometers,
// admissible when weight_type = distance (§4.7).
func DistanceHeuristic(g *graph.Graph) Heuristic {
	return func(v, goal uint32) float64 {
		a := g.NodeCoordinates[v]
		b := g.NodeCoordinates[goal]
		return geo.Haversine(a[0], a[1], b[0], b[1]) / 1000.0
	}
}

// TimeHeuristic is haversine/100km/h, admissible for weight_type in
// {time, lane_efficiency} provided no way exceeds 100 km/h (§4.7,
// documented precondition).
func TimeHeuristic(g *graph.Graph) Heuristic {
	dist := DistanceHeuristic(g)
	return func(v, goal uint32) float64 {
		return dist(v, goal) / 100.0
	}
}

// Options configures a ShortestPath call. Weights defaults to g.Weights;
// CostAdjustment defaults to ZeroCostAdjustment; MaxDistance <= 0 means
// unbounded.
type Options struct {
	Weights        []float64
	CostAdjustment CostAdjustment
	Heuristic      Heuristic
	MaxDistance    float64
}

// ShortestPath runs the core loop (§4.7) and returns the vertex-index path
// from origin to dest, or nil if no path exists (or max_distance is
// exceeded) — NoPath is a null result, not an error (§7).
func ShortestPath(algo Algorithm, g *graph.Graph, origin, dest uint32, opts Options) ([]uint32, error) {
	if origin >= g.NumVertices || dest >= g.NumVertices {
		return nil, fmt.Errorf("routing: vertex index out of range")
	}

	var heuristic Heuristic
	var newFrontier func() frontier

	switch algo {
	case DijkstraVector:
		newFrontier = func() frontier { return newVectorFrontier(g.NumVertices) }
	case DijkstraDict:
		newFrontier = func() frontier { return newDictFrontier() }
	case AStarVector:
		heuristic = opts.Heuristic
		newFrontier = func() frontier { return newVectorFrontier(g.NumVertices) }
	case AStarDict:
		heuristic = opts.Heuristic
		newFrontier = func() frontier { return newDictFrontier() }
	default:
		return nil, &UnknownOptionError{Option: "algorithm", Value: fmt.Sprintf("%d", algo)}
	}

	weights := opts.Weights
	if weights == nil {
		weights = g.Weights
	}
	costAdj := opts.CostAdjustment
	if costAdj == nil {
		costAdj = ZeroCostAdjustment
	}
	maxDist := opts.MaxDistance
	if maxDist <= 0 {
		maxDist = math.Inf(1)
	}

	return runSearch(g, newFrontier(), weights, origin, dest, costAdj, heuristic, maxDist)
}

// runSearch is the shared core loop (§4.7 steps 1-6) parameterized over a
// frontier implementation; A* reduces to Dijkstra when heuristic is nil
// (identically zero).
func runSearch(g *graph.Graph, f frontier, weights []float64, origin, dest uint32, costAdj CostAdjustment, heuristic Heuristic, maxDist float64) ([]uint32, error) {
	if origin == dest {
		return []uint32{origin}, nil
	}

	heap := &MinHeap{}
	f.setDist(origin, 0)
	heap.Push(origin, 0)

	for heap.Len() > 0 {
		item := heap.Pop()
		u := item.Node
		if f.isVisited(u) {
			continue
		}
		f.setVisited(u)

		if u == dest {
			break
		}
		if f.dist(u) > maxDist {
			return nil, nil
		}

		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Adjacency.Head[e]
			if f.isVisited(v) {
				continue
			}
			adj := costAdj(u, v, f)
			alt := f.dist(u) + weights[e] + adj
			if alt < f.dist(v) {
				f.setDist(v, alt)
				f.setParent(v, u)
				fv := alt
				if heuristic != nil {
					fv = alt + heuristic(v, dest)
				}
				heap.Push(v, fv)
			}
		}
	}

	return reconstructPath(f, origin, dest)
}

func reconstructPath(f frontier, origin, dest uint32) ([]uint32, error) {
	if _, ok := f.ParentOf(dest); !ok {
		return nil, nil
	}
	path := []uint32{dest}
	cur := dest
	for cur != origin {
		p, ok := f.ParentOf(cur)
		if !ok {
			return nil, nil
		}
		path = append(path, p)
		cur = p
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// WeightsFromPath returns the per-edge weight of each consecutive pair in
// path, using g.Weights unless weights is supplied.
func WeightsFromPath(g *graph.Graph, path []uint32, weights []float64) []float64 {
	if weights == nil {
		weights = g.Weights
	}
	if len(path) < 2 {
		return nil
	}
	out := make([]float64, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		u, v := path[i], path[i+1]
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			if g.Adjacency.Head[e] == v {
				out = append(out, weights[e])
				break
			}
		}
	}
	return out
}

// TotalPathWeight sums WeightsFromPath.
func TotalPathWeight(g *graph.Graph, path []uint32, weights []float64) float64 {
	var total float64
	for _, w := range WeightsFromPath(g, path, weights) {
		total += w
	}
	return total
}
