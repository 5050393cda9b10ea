// Package export turns a computed route into drawable geometry and encodes it
// as GeoJSON, KML or encoded polylines.
package export

import (
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-kml"
	"github.com/twpayne/go-polyline"

	"taxi_router/pkg/routing"
)

// Part names used as feature properties and placemark names.
const (
	PartRoute           = "route"
	PartOrigPartialEdge = "orig_partial_edge"
	PartDestPartialEdge = "dest_partial_edge"
)

// Geometry is the drawable shape of a route in (lon, lat) order. Any line
// may be nil.
type Geometry struct {
	Route           orb.LineString
	OrigPartialEdge orb.LineString
	DestPartialEdge orb.LineString
}

// PathGeometer resolves a node path to its shape.
type PathGeometer interface {
	PathGeometry(nodes []uint32) (orb.LineString, error)
}

// Build collects the shapes of res: the node path drawn along its shortest
// parallel edges, plus both partial edges.
func Build(g PathGeometer, res *routing.RouteResult) (Geometry, error) {
	route, err := g.PathGeometry(res.Nodes)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{
		Route:           route,
		OrigPartialEdge: res.OrigPartialEdge,
		DestPartialEdge: res.DestPartialEdge,
	}, nil
}

type part struct {
	name string
	line orb.LineString
}

// parts lists the drawable lines in route order, skipping empty ones.
func (geom Geometry) parts() []part {
	all := []part{
		{PartOrigPartialEdge, geom.OrigPartialEdge},
		{PartRoute, geom.Route},
		{PartDestPartialEdge, geom.DestPartialEdge},
	}
	out := all[:0]
	for _, p := range all {
		if len(p.line) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// FeatureCollection returns one LineString feature per part, tagged with a
// "part" property.
func FeatureCollection(geom Geometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range geom.parts() {
		f := geojson.NewFeature(p.line)
		f.Properties["part"] = p.name
		fc.Append(f)
	}
	return fc
}

// WriteKML writes geom as a KML document with one placemark per part.
func WriteKML(w io.Writer, name string, geom Geometry) error {
	children := []kml.Element{kml.Name(name)}
	for _, p := range geom.parts() {
		coords := make([]kml.Coordinate, len(p.line))
		for i, pt := range p.line {
			coords[i] = kml.Coordinate{Lon: pt.Lon(), Lat: pt.Lat()}
		}
		children = append(children, kml.Placemark(
			kml.Name(p.name),
			kml.LineString(kml.Coordinates(coords...)),
		))
	}
	return kml.KML(kml.Document(children...)).WriteIndent(w, "", "  ")
}

// Polylines holds each part as a Google encoded polyline.
type Polylines struct {
	Route           string `json:"route,omitempty"`
	OrigPartialEdge string `json:"orig_partial_edge,omitempty"`
	DestPartialEdge string `json:"dest_partial_edge,omitempty"`
}

// EncodePolylines encodes every part of geom.
func EncodePolylines(geom Geometry) Polylines {
	return Polylines{
		Route:           EncodePolyline(geom.Route),
		OrigPartialEdge: EncodePolyline(geom.OrigPartialEdge),
		DestPartialEdge: EncodePolyline(geom.DestPartialEdge),
	}
}

// EncodePolyline encodes ls with five-digit precision; empty lines encode
// to "".
func EncodePolyline(ls orb.LineString) string {
	if len(ls) == 0 {
		return ""
	}
	coords := make([][]float64, len(ls))
	for i, p := range ls {
		coords[i] = []float64{p.Lat(), p.Lon()}
	}
	return string(polyline.EncodeCoords(coords))
}
