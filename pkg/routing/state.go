package routing

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/azybler/osmroute/pkg/graph"
)

// State is a cached full-graph Dijkstra run from one source: the parent
// vector, enabling O(path-length) extraction later (§4.7
// "set_dijkstra_state").
type State struct {
	Parents   []uint32
	HasParent []bool
}

// UndefinedCachedStateError reports shortest_path_from_dijkstra_state
// invoked for an origin without a cached state (§7).
type UndefinedCachedStateError struct {
	Origin uint32
}

func (e *UndefinedCachedStateError) Error() string {
	return fmt.Sprintf("routing: no cached dijkstra state for origin %d", e.Origin)
}

func statesOf(g *graph.Graph) map[uint32]*State {
	if m, ok := g.DijkstraStates.(map[uint32]*State); ok {
		return m
	}
	return make(map[uint32]*State)
}

// computeState runs Dijkstra from source with no goal (no early exit),
// over the whole reachable set, and returns its parent vector.
func computeState(g *graph.Graph, source uint32, opts Options) *State {
	weights := opts.Weights
	if weights == nil {
		weights = g.Weights
	}
	costAdj := opts.CostAdjustment
	if costAdj == nil {
		costAdj = ZeroCostAdjustment
	}

	f := newVectorFrontier(g.NumVertices)
	heap := &MinHeap{}
	f.setDist(source, 0)
	heap.Push(source, 0)

	for heap.Len() > 0 {
		item := heap.Pop()
		u := item.Node
		if f.isVisited(u) {
			continue
		}
		f.setVisited(u)

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
				heap.Push(v, alt)
			}
		}
	}

	return &State{Parents: f.parents, HasParent: f.hasParent}
}

// SetDijkstraState computes and caches a full Dijkstra run from each of
// sources, mutating g's state cache (§6 "set_dijkstra_state").
func SetDijkstraState(g *graph.Graph, sources []uint32, opts Options) {
	states := statesOf(g)
	for _, src := range sources {
		if src >= g.NumVertices {
			continue
		}
		states[src] = computeState(g, src, opts)
	}
	g.DijkstraStates = states
}

// PrecomputeStates computes cached states for every source in sources
// using a bounded worker pool, one goroutine per worker writing to a
// disjoint slot of a preallocated output slice; the cache is merged into
// g only after every worker has joined, so there is no shared mutable
// state during the parallel phase beyond the read-only graph (§5).
// workers <= 0 defaults to runtime.NumCPU().
func PrecomputeStates(g *graph.Graph, sources []uint32, opts Options, workers int) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(sources) {
		workers = len(sources)
	}
	if workers < 1 {
		workers = 1
	}

	slots := make([]*State, len(sources))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				slots[i] = computeState(g, sources[i], opts)
			}
		}()
	}
	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	states := statesOf(g)
	for i, src := range sources {
		if src >= g.NumVertices {
			continue
		}
		states[src] = slots[i]
	}
	g.DijkstraStates = states
}

// ShortestPathFromState extracts a path from origin to dest using a
// previously cached state (§6 "shortest_path_from_dijkstra_state").
func ShortestPathFromState(g *graph.Graph, origin, dest uint32) ([]uint32, error) {
	states, ok := g.DijkstraStates.(map[uint32]*State)
	if !ok {
		return nil, &UndefinedCachedStateError{Origin: origin}
	}
	state, ok := states[origin]
	if !ok {
		return nil, &UndefinedCachedStateError{Origin: origin}
	}
	if origin == dest {
		return []uint32{origin}, nil
	}
	if dest >= uint32(len(state.HasParent)) || !state.HasParent[dest] {
		return nil, nil
	}

	path := []uint32{dest}
	cur := dest
	for cur != origin {
		if !state.HasParent[cur] {
			return nil, nil
		}
		p := state.Parents[cur]
		path = append(path, p)
		cur = p
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
