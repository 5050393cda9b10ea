package graph

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/osm"

	osmparser "taxi_router/pkg/osm"
)

// GraphML documents as written by osmnx: nodes carry "x"/"y" (lon/lat),
// edges carry "length" in meters and an optional WKT "geometry".

type graphmlDoc struct {
	Keys  []graphmlKey `xml:"key"`
	Graph struct {
		Nodes []graphmlElement `xml:"node"`
		Edges []graphmlElement `xml:"edge"`
	} `xml:"graph"`
}

type graphmlKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
}

type graphmlElement struct {
	ID     string        `xml:"id,attr"`
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// attrs resolves the element's data entries to attribute names.
func (el graphmlElement) attrs(names map[string]string) map[string]string {
	out := make(map[string]string, len(el.Data))
	for _, d := range el.Data {
		if name, ok := names[d.Key]; ok {
			out[name] = strings.TrimSpace(d.Value)
		}
	}
	return out
}

// ReadGraphML loads an osmnx GraphML file.
func ReadGraphML(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return DecodeGraphML(f)
}

// DecodeGraphML parses an osmnx GraphML document into a validated Graph.
// Edges are keyed in document order, which is how osmnx writes them.
func DecodeGraphML(r io.Reader) (*Graph, error) {
	var doc graphmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode graphml: %w", err)
	}

	nodeKeys := make(map[string]string)
	edgeKeys := make(map[string]string)
	for _, k := range doc.Keys {
		switch k.For {
		case "node":
			nodeKeys[k.ID] = k.Name
		case "edge":
			edgeKeys[k.ID] = k.Name
		}
	}

	result := &osmparser.ParseResult{
		NodeLat: make(map[osm.NodeID]float64, len(doc.Graph.Nodes)),
		NodeLon: make(map[osm.NodeID]float64, len(doc.Graph.Nodes)),
	}

	for _, n := range doc.Graph.Nodes {
		id, err := parseNodeID(n.ID)
		if err != nil {
			return nil, err
		}
		a := n.attrs(nodeKeys)
		x, errX := strconv.ParseFloat(a["x"], 64)
		y, errY := strconv.ParseFloat(a["y"], 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("%w: node %d has no x/y coordinates", ErrGraphMalformed, id)
		}
		result.NodeLat[id] = y
		result.NodeLon[id] = x
	}

	result.Edges = make([]osmparser.RawEdge, 0, len(doc.Graph.Edges))
	for _, e := range doc.Graph.Edges {
		from, err := parseNodeID(e.Source)
		if err != nil {
			return nil, err
		}
		to, err := parseNodeID(e.Target)
		if err != nil {
			return nil, err
		}

		a := e.attrs(edgeKeys)
		length, err := strconv.ParseFloat(a["length"], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: edge %d -> %d has no length", ErrGraphMalformed, from, to)
		}

		raw := osmparser.RawEdge{FromNodeID: from, ToNodeID: to, Length: length}
		if s := a["geometry"]; s != "" {
			raw.Geometry, err = wkt.UnmarshalLineString(s)
			if err != nil {
				return nil, fmt.Errorf("%w: edge %d -> %d geometry: %v", ErrGraphMalformed, from, to, err)
			}
		}
		result.Edges = append(result.Edges, raw)
	}

	g := Build(result)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func parseNodeID(s string) (osm.NodeID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: node id %q", ErrGraphMalformed, s)
	}
	return osm.NodeID(id), nil
}
