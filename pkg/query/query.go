// Package query is the runtime API surface wiring pkg/graph, pkg/restriction,
// pkg/spatial, pkg/routing and pkg/simplify together (§6). It is the only
// package pkg/api and cmd/server talk to; every string-valued option
// (network type, weight type, algorithm, heuristic) is resolved here, since
// pkg/routing and pkg/graph themselves only accept already-resolved
// concrete values. Grounded on pkg/routing/engine.go's old Router
// interface/orchestration shape, generalized from one CH route call to the
// full runtime surface.
package query

import (
	"fmt"

	"github.com/paulmach/osm"

	"github.com/azybler/osmroute/pkg/config"
	"github.com/azybler/osmroute/pkg/graph"
	rawosm "github.com/azybler/osmroute/pkg/osm"
	"github.com/azybler/osmroute/pkg/restriction"
	"github.com/azybler/osmroute/pkg/routing"
	"github.com/azybler/osmroute/pkg/simplify"
	"github.com/azybler/osmroute/pkg/spatial"
)

// UnknownNodeError reports a node id not present in the graph's vertex
// index, surfaced to callers instead of a bare map-lookup panic (§7).
type UnknownNodeError struct {
	NodeID osm.NodeID
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("query: unknown node %d", e.NodeID)
}

// BuildOptions configures BuildGraph (§6 build_graph).
type BuildOptions struct {
	NetworkType          config.NetworkType
	WeightType           config.WeightType
	Config               *config.Config // nil uses config.Current()
	LargestComponentOnly bool
	PrecomputeSources    []osm.NodeID // sources to eagerly cache Dijkstra state for
	PrecomputeWorkers    int          // <=0 defaults to runtime.NumCPU()
}

// BuildGraph parses nothing itself — raw must already come from
// pkg/osm.Parse — and assembles a fully query-ready Graph: typed
// node/way/restriction store and CSR adjacency (pkg/graph.Build), optional
// largest-component trim (§4.5), turn-restriction indexing (§4.4), edge
// weights (§4.3), and both spatial indices (§4.6). A DataQualityError from
// graph.Build is fatal and returned as-is; a restriction validity error is
// not, mirroring pkg/restriction.Index's own recoverable-vs-fatal split
// (§7) — it is logged by Index and also returned here so callers can
// surface a non-fatal warning if they want one. A NetworkType without an
// entry in the config's network filter table, or a WeightType other than
// distance/time/lane_efficiency, is reported as *routing.UnknownOptionError
// before anything is built.
func BuildGraph(raw *rawosm.RawOSM, opts BuildOptions) (*graph.Graph, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Current()
	}
	if _, ok := cfg.NetworkFilters[opts.NetworkType]; !ok {
		return nil, &routing.UnknownOptionError{Option: "network_type", Value: string(opts.NetworkType)}
	}
	switch opts.WeightType {
	case config.WeightDistance, config.WeightTime, config.WeightLaneEfficiency:
	default:
		return nil, &routing.UnknownOptionError{Option: "weight_type", Value: string(opts.WeightType)}
	}

	g, err := graph.Build(raw, graph.BuildOptions{NetworkType: opts.NetworkType, Config: cfg})
	if err != nil {
		return nil, err
	}

	if opts.LargestComponentOnly {
		graph.TrimToLargestComponent(g)
	}

	restrictionErr := restriction.Index(g)

	graph.ComputeWeights(g, opts.WeightType, cfg)

	g.KDTree = spatial.BuildKD(g)
	g.RTree = spatial.BuildRTree(g)

	if len(opts.PrecomputeSources) > 0 {
		sources, err := toIndices(g, opts.PrecomputeSources)
		if err != nil {
			return g, err
		}
		routing.PrecomputeStates(g, sources, defaultRoutingOptions(g), opts.PrecomputeWorkers)
	}

	return g, restrictionErr
}

func defaultRoutingOptions(g *graph.Graph) routing.Options {
	return routing.Options{CostAdjustment: routing.RestrictionCostAdjustment(g)}
}

func toIndex(g *graph.Graph, id osm.NodeID) (uint32, error) {
	idx, ok := g.NodeToIndex[id]
	if !ok {
		return 0, &UnknownNodeError{NodeID: id}
	}
	return idx, nil
}

func toIndices(g *graph.Graph, ids []osm.NodeID) ([]uint32, error) {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		idx, err := toIndex(g, id)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func toNodeIDs(g *graph.Graph, path []uint32) []osm.NodeID {
	if path == nil {
		return nil
	}
	out := make([]osm.NodeID, len(path))
	for i, idx := range path {
		out[i] = g.IndexToNode[idx]
	}
	return out
}

func parseAlgorithm(name string) (routing.Algorithm, error) {
	switch name {
	case "", "dijkstra_vector":
		return routing.DijkstraVector, nil
	case "dijkstra_dict":
		return routing.DijkstraDict, nil
	case "astar_vector":
		return routing.AStarVector, nil
	case "astar_dict":
		return routing.AStarDict, nil
	default:
		return 0, &routing.UnknownOptionError{Option: "algorithm", Value: name}
	}
}

func parseHeuristic(name string, g *graph.Graph) (routing.Heuristic, error) {
	switch name {
	case "", "zero":
		return nil, nil
	case "distance":
		return routing.DistanceHeuristic(g), nil
	case "time":
		return routing.TimeHeuristic(g), nil
	default:
		return nil, &routing.UnknownOptionError{Option: "heuristic", Value: name}
	}
}

func parseCostAdjustment(name string, g *graph.Graph) (routing.CostAdjustment, error) {
	switch name {
	case "", "zero":
		return routing.ZeroCostAdjustment, nil
	case "restriction":
		return routing.RestrictionCostAdjustment(g), nil
	default:
		return nil, &routing.UnknownOptionError{Option: "cost_adjustment", Value: name}
	}
}

// Options selects a shortest-path query's algorithm, heuristic and
// turn-restriction handling by name (§6). The zero value runs plain
// vector-backed Dijkstra with turn restrictions disabled and no distance
// cap — callers that want restrictions enforced must ask for them
// explicitly via CostAdjustment: "restriction".
type Options struct {
	Algorithm      string // "dijkstra_vector" (default), "dijkstra_dict", "astar_vector", "astar_dict"
	Heuristic      string // "zero" (default), "distance", "time" — astar_* only
	CostAdjustment string // "zero" (default), "restriction"
	MaxDistance    float64
	Weights        []float64 // nil uses the graph's own computed weights
}

// ShortestPath resolves origin/dest from OSM node ids to vertex indices and
// runs routing.ShortestPath with opts resolved to concrete values (§6
// shortest_path). A nil, nil result means origin and dest are in different
// components or beyond MaxDistance; nothing is reachable.
func ShortestPath(g *graph.Graph, origin, dest osm.NodeID, opts Options) ([]osm.NodeID, error) {
	originIdx, err := toIndex(g, origin)
	if err != nil {
		return nil, err
	}
	destIdx, err := toIndex(g, dest)
	if err != nil {
		return nil, err
	}

	algo, err := parseAlgorithm(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	heuristic, err := parseHeuristic(opts.Heuristic, g)
	if err != nil {
		return nil, err
	}
	costAdj, err := parseCostAdjustment(opts.CostAdjustment, g)
	if err != nil {
		return nil, err
	}

	path, err := routing.ShortestPath(algo, g, originIdx, destIdx, routing.Options{
		Weights:        opts.Weights,
		CostAdjustment: costAdj,
		Heuristic:      heuristic,
		MaxDistance:    opts.MaxDistance,
	})
	if err != nil {
		return nil, err
	}
	return toNodeIDs(g, path), nil
}

// TotalPathWeight sums the weight of consecutive edges along path (OSM
// node ids), using the graph's own computed weights.
func TotalPathWeight(g *graph.Graph, path []osm.NodeID) (float64, error) {
	indices, err := toIndices(g, path)
	if err != nil {
		return 0, err
	}
	return routing.TotalPathWeight(g, indices, nil), nil
}

// SetDijkstraState precomputes and caches full-graph Dijkstra runs from
// each of sources (§6 set_dijkstra_state), enforcing turn restrictions the
// same way ShortestPath does when opts.CostAdjustment == "restriction".
func SetDijkstraState(g *graph.Graph, sources []osm.NodeID, opts Options) error {
	indices, err := toIndices(g, sources)
	if err != nil {
		return err
	}
	costAdj, err := parseCostAdjustment(opts.CostAdjustment, g)
	if err != nil {
		return err
	}
	routing.SetDijkstraState(g, indices, routing.Options{Weights: opts.Weights, CostAdjustment: costAdj})
	return nil
}

// ShortestPathFromDijkstraState extracts a path from a previously cached
// state (§6 shortest_path_from_dijkstra_state).
func ShortestPathFromDijkstraState(g *graph.Graph, origin, dest osm.NodeID) ([]osm.NodeID, error) {
	originIdx, err := toIndex(g, origin)
	if err != nil {
		return nil, err
	}
	destIdx, err := toIndex(g, dest)
	if err != nil {
		return nil, err
	}
	path, err := routing.ShortestPathFromState(g, originIdx, destIdx)
	if err != nil {
		return nil, err
	}
	return toNodeIDs(g, path), nil
}

// NodeResult is a node candidate with its distance from the query point,
// in kilometers.
type NodeResult struct {
	NodeID     osm.NodeID
	DistanceKm float64
}

func kdIndex(g *graph.Graph) (*spatial.KDIndex, error) {
	kd, ok := g.KDTree.(*spatial.KDIndex)
	if !ok || kd == nil {
		return nil, fmt.Errorf("query: k-d tree not built; call BuildGraph first")
	}
	return kd, nil
}

func rtIndex(g *graph.Graph) (*spatial.RTreeIndex, error) {
	rt, ok := g.RTree.(*spatial.RTreeIndex)
	if !ok || rt == nil {
		return nil, fmt.Errorf("query: r-tree not built; call BuildGraph first")
	}
	return rt, nil
}

// NearestNode finds the single nearest node to (lat, lon) (§6 nearest_node).
func NearestNode(g *graph.Graph, lat, lon float64) (NodeResult, bool, error) {
	kd, err := kdIndex(g)
	if err != nil {
		return NodeResult{}, false, err
	}
	idx, dist, ok := spatial.NearestNode(g, kd, lat, lon)
	if !ok {
		return NodeResult{}, false, nil
	}
	return NodeResult{NodeID: g.IndexToNode[idx], DistanceKm: dist}, true, nil
}

// NearestNodeFromNode finds the nearest node to an existing node already in
// the graph, excluding that node itself (§6 nearest_node, queried "from a
// known node"; P8's reflexivity requirement — the result must never be
// nodeID, and its distance must be > 0). Uses spatial.NearestNodeFiltered
// with a skip predicate on the origin's own vertex index.
func NearestNodeFromNode(g *graph.Graph, nodeID osm.NodeID) (NodeResult, bool, error) {
	origin, err := toIndex(g, nodeID)
	if err != nil {
		return NodeResult{}, false, err
	}
	kd, err := kdIndex(g)
	if err != nil {
		return NodeResult{}, false, err
	}
	loc := g.NodeCoordinates[origin]
	idx, dist, ok := spatial.NearestNodeFiltered(g, kd, loc[0], loc[1], func(i uint32) bool {
		return i == origin
	})
	if !ok {
		return NodeResult{}, false, nil
	}
	return NodeResult{NodeID: g.IndexToNode[idx], DistanceKm: dist}, true, nil
}

// NearestNodes finds the k nearest nodes to (lat, lon), nearest first
// (§6 nearest_nodes).
func NearestNodes(g *graph.Graph, lat, lon float64, k int) ([]NodeResult, error) {
	kd, err := kdIndex(g)
	if err != nil {
		return nil, err
	}
	candidates := spatial.NearestNodes(g, kd, lat, lon, k)
	out := make([]NodeResult, len(candidates))
	for i, c := range candidates {
		out[i] = NodeResult{NodeID: g.IndexToNode[c.Index], DistanceKm: c.DistanceKm}
	}
	return out, nil
}

// NearestWay finds the way-segment projection nearest to (lat, lon), among
// ways whose bounding box intersects the cube of side 2*radiusM around the
// point (§6 nearest_way). radiusM is in meters; a nil radiusM omits the
// radius, which per spec defaults to the distance from (lat, lon) to the
// nearest node.
func NearestWay(g *graph.Graph, lat, lon float64, radiusM *float64) (spatial.EdgePoint, bool, error) {
	rt, err := rtIndex(g)
	if err != nil {
		return spatial.EdgePoint{}, false, err
	}
	r, err := resolveWayRadiusM(g, lat, lon, radiusM)
	if err != nil {
		return spatial.EdgePoint{}, false, err
	}
	ep, ok := spatial.NearestWay(g, rt, lat, lon, r)
	return ep, ok, nil
}

// NearestWays finds the way-segment projection of every way whose bounding
// box intersects the cube of side 2*radiusM around (lat, lon), nearest first
// (§6 nearest_ways). Unlike NearestWay, radiusM is mandatory here, per spec.
func NearestWays(g *graph.Graph, lat, lon, radiusM float64) ([]spatial.EdgePoint, error) {
	rt, err := rtIndex(g)
	if err != nil {
		return nil, err
	}
	return spatial.NearestWays(g, rt, lat, lon, radiusM), nil
}

// resolveWayRadiusM implements nearest_way's "if search_radius is omitted,
// use the distance to the nearest node as the radius" default.
func resolveWayRadiusM(g *graph.Graph, lat, lon float64, radiusM *float64) (float64, error) {
	if radiusM != nil {
		return *radiusM, nil
	}
	res, ok, err := NearestNode(g, lat, lon)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("query: no nodes in graph to derive a default search radius")
	}
	return res.DistanceKm * 1000.0, nil
}

// OSMSubgraph returns a new Graph restricted to the ways touching vertices,
// plus every node those ways reference (§6 osm_subgraph). The returned
// graph has its own independent adjacency/weights/indices and does not
// alias the original's mutable fields; g itself is left untouched.
func OSMSubgraph(g *graph.Graph, vertices []osm.NodeID) (*graph.Graph, error) {
	indices, err := toIndices(g, vertices)
	if err != nil {
		return nil, err
	}

	clone := &graph.Graph{}
	*clone = *g
	graph.Subgraph(clone, indices)

	clone.KDTree = spatial.BuildKD(clone)
	clone.RTree = spatial.BuildRTree(clone)
	if err := restriction.Index(clone); err != nil {
		return clone, err
	}
	return clone, nil
}

// SimplifyGraph produces the topologically reduced secondary graph whose
// vertices are true intersections and dead-ends only (§6 simplify_graph,
// §4.8). It does not mutate g.
func SimplifyGraph(g *graph.Graph) *simplify.SimplifiedGraph {
	return simplify.Simplify(g)
}
