package api

import (
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"

	"github.com/paulmach/osm"

	"github.com/azybler/osmroute/pkg/geo"
	"github.com/azybler/osmroute/pkg/graph"
	"github.com/azybler/osmroute/pkg/query"
)

// Handlers holds the HTTP handlers and their dependencies: the query-ready
// graph, the route options applied to every request, and the maximum
// snap-to-road distance before a point is rejected as off the network.
type Handlers struct {
	graph             *graph.Graph
	opts              query.Options
	maxSnapDistanceKm float64
	stats             StatsResponse
}

// NewHandlers creates handlers serving g with opts applied to every route
// query and maxSnapDistanceKm as the point_too_far_from_road cutoff.
func NewHandlers(g *graph.Graph, opts query.Options, maxSnapDistanceKm float64, stats StatsResponse) *Handlers {
	return &Handlers{graph: g, opts: opts, maxSnapDistanceKm: maxSnapDistanceKm, stats: stats}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if err := validateCoord(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return
	}

	startNode, ok, err := h.snap(req.Start)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "start")
		return
	}
	endNode, ok, err := h.snap(req.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "end")
		return
	}

	path, err := query.ShortestPath(h.graph, startNode, endNode, h.opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if path == nil {
		writeError(w, http.StatusNotFound, "no_route_found", "")
		return
	}

	resp := buildRouteResponse(h.graph, path)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// snap resolves a lat/lng to the nearest graph node, rejecting it if
// farther than maxSnapDistanceKm.
func (h *Handlers) snap(ll LatLngJSON) (nodeID osm.NodeID, ok bool, err error) {
	res, found, err := query.NearestNode(h.graph, ll.Lat, ll.Lng)
	if err != nil {
		return 0, false, err
	}
	if !found || res.DistanceKm > h.maxSnapDistanceKm {
		return 0, false, nil
	}
	return res.NodeID, true, nil
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats)
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}

// buildRouteResponse groups path into per-way segments (a new segment
// starts whenever the traversed way changes) and sums haversine distance
// within each.
func buildRouteResponse(g *graph.Graph, path []osm.NodeID) RouteResponse {
	resp := RouteResponse{}
	if len(path) == 0 {
		return resp
	}

	var cur *SegmentJSON
	appendPoint := func(nid osm.NodeID) LatLngJSON {
		idx := g.NodeToIndex[nid]
		c := g.NodeCoordinates[idx]
		return LatLngJSON{Lat: c[0], Lng: c[1]}
	}

	cur = &SegmentJSON{Geometry: []LatLngJSON{appendPoint(path[0])}}
	var curWay = currentWay(g, path, 0)

	for i := 1; i < len(path); i++ {
		way := currentWay(g, path, i-1)
		if way != curWay {
			resp.Segments = append(resp.Segments, *cur)
			cur = &SegmentJSON{Geometry: []LatLngJSON{appendPoint(path[i-1])}}
			curWay = way
		}
		from, to := path[i-1], path[i]
		fromC := g.NodeCoordinates[g.NodeToIndex[from]]
		toC := g.NodeCoordinates[g.NodeToIndex[to]]
		dist := geo.Haversine(fromC[0], fromC[1], toC[0], toC[1])
		cur.DistanceMeters += dist
		cur.Geometry = append(cur.Geometry, appendPoint(to))
		resp.TotalDistanceMeters += dist
	}
	resp.Segments = append(resp.Segments, *cur)

	return resp
}

// currentWay returns the way id of the edge starting at path[i], or 0 if
// none is found (should not happen for a path returned by ShortestPath).
func currentWay(g *graph.Graph, path []osm.NodeID, i int) osm.WayID {
	if i+1 >= len(path) {
		return 0
	}
	wid, _ := g.EdgeWay(path[i], path[i+1])
	return wid
}
