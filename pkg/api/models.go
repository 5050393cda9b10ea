package api

import "taxi_router/pkg/export"

// RouteRequest is the JSON body of the route endpoints.
type RouteRequest struct {
	Start LatLngJSON `json:"start"`
	End   LatLngJSON `json:"end"`
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EdgeJSON identifies a directed edge by its graph node indices and
// parallel-edge key.
type EdgeJSON struct {
	U   uint32 `json:"u"`
	V   uint32 `json:"v"`
	Key uint32 `json:"key"`
}

// RouteResponse is the JSON response for a successful route query.
type RouteResponse struct {
	LengthMeters    float64          `json:"length_meters"`
	NodeIDs         []int64          `json:"node_ids"`
	OrigEdge        EdgeJSON         `json:"orig_edge"`
	DestEdge        EdgeJSON         `json:"dest_edge"`
	OrigPartialEdge []LatLngJSON     `json:"orig_partial_edge,omitempty"`
	DestPartialEdge []LatLngJSON     `json:"dest_partial_edge,omitempty"`
	Polylines       export.Polylines `json:"polylines"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumNodes        uint32 `json:"num_nodes"`
	NumEdges        uint32 `json:"num_edges"`
	Contracted      bool   `json:"contracted"`
	NumOverlayEdges int    `json:"num_overlay_edges,omitempty"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
