package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/exp/slog"

	"taxi_router/pkg/export"
	"taxi_router/pkg/routing"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router routing.Router
	geom   export.PathGeometer
	stats  StatsResponse
}

// NewHandlers creates handlers with the given router. geom draws node paths
// for the geometry outputs.
func NewHandlers(router routing.Router, geom export.PathGeometer, stats StatsResponse) *Handlers {
	return &Handlers{
		router: router,
		geom:   geom,
		stats:  stats,
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	result, geom, ok := h.route(w, r)
	if !ok {
		return
	}

	resp := NewRouteResponse(result, geom)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// NewRouteResponse converts a route and its geometry to the JSON response.
func NewRouteResponse(result *routing.RouteResult, geom export.Geometry) RouteResponse {
	resp := RouteResponse{
		LengthMeters:    result.LengthMeters,
		NodeIDs:         make([]int64, len(result.NodeIDs)),
		OrigEdge:        EdgeJSON{U: result.OrigEdge.U, V: result.OrigEdge.V, Key: result.OrigEdge.Key},
		DestEdge:        EdgeJSON{U: result.DestEdge.U, V: result.DestEdge.V, Key: result.DestEdge.Key},
		OrigPartialEdge: latLngs(result.OrigPartialEdge),
		DestPartialEdge: latLngs(result.DestPartialEdge),
		Polylines:       export.EncodePolylines(geom),
	}
	for i, id := range result.NodeIDs {
		resp.NodeIDs[i] = int64(id)
	}
	return resp
}

// HandleRouteGeoJSON handles POST /api/v1/route.geojson.
func (h *Handlers) HandleRouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	result, geom, ok := h.route(w, r)
	if !ok {
		return
	}

	fc := export.FeatureCollection(geom)
	fc.ExtraMembers = geojson.Properties{"length_meters": result.LengthMeters}

	w.Header().Set("Content-Type", "application/geo+json")
	json.NewEncoder(w).Encode(fc)
}

// HandleRouteKML handles POST /api/v1/route.kml.
func (h *Handlers) HandleRouteKML(w http.ResponseWriter, r *http.Request) {
	_, geom, ok := h.route(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	if err := export.WriteKML(w, "route", geom); err != nil {
		slog.Error("Writing KML failed", "error", err)
	}
}

// route decodes and validates the request, runs the query and builds its
// geometry. On failure it has already written the error response.
func (h *Handlers) route(w http.ResponseWriter, r *http.Request) (*routing.RouteResult, export.Geometry, bool) {
	// Enforce Content-Type.
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return nil, export.Geometry{}, false
	}

	// Parse request.
	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return nil, export.Geometry{}, false
	}

	// Validate coordinates.
	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return nil, export.Geometry{}, false
	}
	if err := validateCoord(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return nil, export.Geometry{}, false
	}

	// Route.
	result, err := h.router.Route(r.Context(), routing.LatLng{Lat: req.Start.Lat, Lng: req.Start.Lng}, routing.LatLng{Lat: req.End.Lat, Lng: req.End.Lng})
	if err != nil {
		writeRouteError(w, err)
		return nil, export.Geometry{}, false
	}

	geom, err := export.Build(h.geom, result)
	if err != nil {
		slog.Error("Building route geometry failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return nil, export.Geometry{}, false
	}
	return result, geom, true
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

func latLngs(ls orb.LineString) []LatLngJSON {
	if len(ls) == 0 {
		return nil
	}
	out := make([]LatLngJSON, len(ls))
	for i, p := range ls {
		out[i] = LatLngJSON{Lat: p.Lat(), Lng: p.Lon()}
	}
	return out
}

func writeRouteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routing.ErrPointTooFar):
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "")
	case errors.Is(err, routing.ErrNoRoute):
		writeError(w, http.StatusNotFound, "no_route_found", "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		slog.Error("Route query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
