package spatial

import (
	"math"
	"sort"

	"github.com/paulmach/osm"
	"github.com/tidwall/rtree"

	"github.com/azybler/osmroute/pkg/geo"
	"github.com/azybler/osmroute/pkg/graph"
)

// RTreeIndex wraps an R-tree of way bounding boxes for nearest-way queries
// (§4.6). No pack example calls tidwall/rtree directly (grepped the full
// retrieval pack; the teacher's go.mod lists it unused), so this is built
// from the library's documented generic RTreeG[T] surface: Insert(min, max
// [2]float64, data T), Search(min, max [2]float64, iter). Altitude is
// always 0 in this corpus, so a 2-D lon/lat box is the full bounding box.
type RTreeIndex struct {
	tree *rtree.RTreeG[osm.WayID]
}

// BuildRTree builds an R-tree over every way's node-coordinate bounding box.
func BuildRTree(g *graph.Graph) *RTreeIndex {
	tree := &rtree.RTreeG[osm.WayID]{}
	for id, w := range g.Ways {
		minLat, minLon, maxLat, maxLon := wayBBox(g, w)
		tree.Insert([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat}, id)
	}
	return &RTreeIndex{tree: tree}
}

func wayBBox(g *graph.Graph, w *graph.Way) (minLat, minLon, maxLat, maxLon float64) {
	minLat, minLon = math.Inf(1), math.Inf(1)
	maxLat, maxLon = math.Inf(-1), math.Inf(-1)
	for _, nid := range w.NodeIDs {
		n, ok := g.Nodes[nid]
		if !ok {
			continue
		}
		if n.Loc.Lat < minLat {
			minLat = n.Loc.Lat
		}
		if n.Loc.Lat > maxLat {
			maxLat = n.Loc.Lat
		}
		if n.Loc.Lon < minLon {
			minLon = n.Loc.Lon
		}
		if n.Loc.Lon > maxLon {
			maxLon = n.Loc.Lon
		}
	}
	return minLat, minLon, maxLat, maxLon
}

// EdgePoint is the projection of a query point onto the nearest segment of
// the nearest way: the way itself, the segment's endpoint OSM node ids, the
// perpendicular distance in meters, and the projection ratio along the
// segment (§4.6).
type EdgePoint struct {
	WayID     osm.WayID
	FromNode  osm.NodeID
	ToNode    osm.NodeID
	DistanceM float64
	Ratio     float64
}

// NearestWay returns the projection of (lat, lon) onto the nearest segment
// among ways whose bounding box intersects the cube of side 2*radiusM
// centered on the query point (§6 nearest_way). radiusM is in meters;
// resolving the "omitted radius defaults to the nearest-node distance" part
// of the contract is the caller's job (pkg/query), since that needs the k-d
// tree as well as this R-tree.
func NearestWay(g *graph.Graph, rt *RTreeIndex, lat, lon, radiusM float64) (EdgePoint, bool) {
	ways := NearestWays(g, rt, lat, lon, radiusM)
	if len(ways) == 0 {
		return EdgePoint{}, false
	}
	return ways[0], true
}

// NearestWays returns the nearest-segment projection of every way whose
// bounding box intersects the cube of side 2*radiusM around (lat, lon),
// nearest first (§6 nearest_ways). Each way contributes at most one
// EdgePoint: the projection onto its own closest segment.
func NearestWays(g *graph.Graph, rt *RTreeIndex, lat, lon, radiusM float64) []EdgePoint {
	latSpan, lonSpan := geo.DegreeSpan(lat, radiusM)

	seen := make(map[osm.WayID]struct{})
	var candidates []osm.WayID
	rt.tree.Search(
		[2]float64{lon - lonSpan, lat - latSpan},
		[2]float64{lon + lonSpan, lat + latSpan},
		func(min, max [2]float64, wayID osm.WayID) bool {
			if _, ok := seen[wayID]; !ok {
				seen[wayID] = struct{}{}
				candidates = append(candidates, wayID)
			}
			return true
		},
	)

	var results []EdgePoint
	for _, wid := range candidates {
		w, ok := g.Ways[wid]
		if !ok {
			continue
		}
		var best EdgePoint
		found := false
		for i := 0; i+1 < len(w.NodeIDs); i++ {
			a, aok := g.Nodes[w.NodeIDs[i]]
			b, bok := g.Nodes[w.NodeIDs[i+1]]
			if !aok || !bok {
				continue
			}
			dist, ratio := geo.PointToSegmentDist(lat, lon, a.Loc.Lat, a.Loc.Lon, b.Loc.Lat, b.Loc.Lon)
			if !found || dist < best.DistanceM {
				best = EdgePoint{
					WayID:     wid,
					FromNode:  w.NodeIDs[i],
					ToNode:    w.NodeIDs[i+1],
					DistanceM: dist,
					Ratio:     ratio,
				}
				found = true
			}
		}
		if found {
			results = append(results, best)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].DistanceM < results[j].DistanceM })
	return results
}
