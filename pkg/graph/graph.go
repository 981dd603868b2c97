// Package graph builds the typed node/way/restriction store and the
// directed CSR adjacency routing runs on, computes per-edge weights, and
// trims a graph down to its largest weakly connected component.
package graph

import (
	"github.com/paulmach/osm"

	"github.com/azybler/osmroute/pkg/config"
)

// GeoLocation is a (lat, lon, alt) position in degrees/meters. Alt defaults
// to 0 — nothing in this corpus carries node elevation.
type GeoLocation struct {
	Lat, Lon, Alt float64
}

// Node is a typed OSM node: its location plus whatever raw tags it carried.
// Most nodes carry none; rail switch/signal nodes are the common exception,
// and downstream query code may still inspect them.
type Node struct {
	ID   osm.NodeID
	Loc  GeoLocation
	Tags map[string]any
}

// Way is a typed OSM way after §4.1 normalization. NodeIDs always has at
// least two entries. The normalized fields are promoted to named fields;
// everything else stays in the untyped Tags map (DESIGN NOTES "Dynamic tag
// typing").
type Way struct {
	ID      osm.WayID
	NodeIDs []osm.NodeID
	Tags    map[string]any

	Class  string // highway or railway tag value
	IsRail bool

	Maxspeed   int
	Lanes      int
	Oneway     bool
	Reverseway bool

	// Rail-only fields, "unknown"/nil when not applicable.
	RailType    string
	Electrified string
	Gauge       *string
	Usage       string
	Name        string
}

// RestrictionKind distinguishes a single via-node restriction from a
// via-way chain.
type RestrictionKind int

const (
	ViaNode RestrictionKind = iota
	ViaWay
)

// Restriction is a typed turn-restriction relation (§3). Exactly one of
// IsExclusion/IsExclusive is true, encoding OSM's "no_"/"only_" prefixes.
type Restriction struct {
	ID          osm.RelationID
	Kind        RestrictionKind
	FromWay     osm.WayID
	ToWay       osm.WayID
	ViaNode     osm.NodeID  // set iff Kind == ViaNode
	ViaWays     []osm.WayID // set iff Kind == ViaWay, in chain order from_way->to_way
	IsExclusion bool
	IsExclusive bool
	Tags        map[string]string
}

// EdgeKey identifies a directed edge by its OSM node endpoints, used as the
// key of Graph.EdgeToWay before vertex indices exist.
type EdgeKey struct {
	From, To osm.NodeID
}

// RestrictionSeq is one ordered via-vertex-index sequence produced by
// pkg/restriction: [to_idx, via_idx_1, ..., via_idx_m, from_idx], keyed in
// IndexedRestrictions by via_idx_1 (§4.4).
type RestrictionSeq []uint32

// Adjacency is the directed CSR (Compressed Sparse Row) representation of
// the graph's edges: FirstOut[u]..FirstOut[u+1] indexes the half-open range
// of Head (and of the CSR-parallel Graph.Weights) belonging to out-edges of
// vertex u.
type Adjacency struct {
	FirstOut []uint32 // len NumVertices+1
	Head     []uint32 // len NumEdges; target vertex of each edge
}

// EdgesFrom returns the CSR index range [start, end) of out-edges from u.
func (a *Adjacency) EdgesFrom(u uint32) (start, end uint32) {
	return a.FirstOut[u], a.FirstOut[u+1]
}

// Graph is the query-ready road/rail network (§3). Every field named in the
// spec's Graph data model has a direct counterpart here.
type Graph struct {
	Nodes        map[osm.NodeID]*Node
	Ways         map[osm.WayID]*Way
	Restrictions map[osm.RelationID]*Restriction

	NodeToIndex map[osm.NodeID]uint32
	IndexToNode []osm.NodeID

	NodeToWay map[osm.NodeID]map[osm.WayID]struct{}
	EdgeToWay map[EdgeKey]osm.WayID

	NodeCoordinates [][2]float64 // index -> [lat, lon]

	Adjacency *Adjacency
	Weights   []float64 // CSR-parallel to Adjacency.Head

	IndexedRestrictions map[uint32][]RestrictionSeq

	KDTree any // *spatial.KDIndex; any avoids an import cycle with pkg/spatial
	RTree  any // *spatial.RTreeIndex

	// DijkstraStates caches per-source parent vectors set by
	// routing.SetDijkstraState, keyed by source vertex index. Typed any for
	// the same reason as KDTree/RTree; concrete type is map[uint32]*routing.State.
	DijkstraStates any

	WeightType  config.WeightType
	NumVertices uint32
}

// EdgeWay looks up which way produced the directed edge (fromID, toID),
// for callers (e.g. the time/lane-efficiency weight computation and the
// HTTP handlers' per-way segment grouping) still working in OSM node-id
// space.
func (g *Graph) EdgeWay(fromID, toID osm.NodeID) (osm.WayID, bool) {
	w, ok := g.EdgeToWay[EdgeKey{From: fromID, To: toID}]
	return w, ok
}

// EdgesFrom returns the CSR index range of out-edges from vertex u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.Adjacency.EdgesFrom(u)
}
