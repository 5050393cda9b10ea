package graph

import (
	"path/filepath"
	"strings"
)

// Load reads a graph snapshot, choosing the reader by extension: ".graphml"
// and ".xml" are osmnx GraphML, anything else is the binary format.
func Load(path string) (*Graph, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".graphml", ".xml":
		return ReadGraphML(path)
	default:
		return ReadBinary(path)
	}
}
