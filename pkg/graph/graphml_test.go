package graph

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGraphML = `<?xml version='1.0' encoding='utf-8'?>
<graphml xmlns="http://graphml.graphdrawing.org/xmlns">
  <key id="d4" for="node" attr.name="y" attr.type="string" />
  <key id="d5" for="node" attr.name="x" attr.type="string" />
  <key id="d10" for="edge" attr.name="length" attr.type="string" />
  <key id="d12" for="edge" attr.name="geometry" attr.type="string" />
  <key id="d13" for="edge" attr.name="highway" attr.type="string" />
  <graph edgedefault="directed">
    <node id="101">
      <data key="d4">39.1</data>
      <data key="d5">-84.3</data>
    </node>
    <node id="102">
      <data key="d4">39.1</data>
      <data key="d5">-84.29</data>
    </node>
    <edge source="101" target="102" id="0">
      <data key="d10">863.2</data>
      <data key="d13">residential</data>
    </edge>
    <edge source="102" target="101" id="0">
      <data key="d10">863.2</data>
    </edge>
    <edge source="101" target="102" id="1">
      <data key="d10">910.7</data>
      <data key="d12">LINESTRING (-84.3 39.1, -84.295 39.102, -84.29 39.1)</data>
    </edge>
  </graph>
</graphml>`

func TestDecodeGraphML(t *testing.T) {
	g, err := DecodeGraphML(strings.NewReader(testGraphML))
	require.NoError(t, err)

	require.Equal(t, uint32(2), g.NumNodes)
	require.Equal(t, uint32(3), g.NumEdges)
	assert.Equal(t, 39.1, g.NodeLat[0])
	assert.Equal(t, -84.3, g.NodeLon[0])

	straight := g.FindEdge(EdgeRef{U: 0, V: 1, Key: 0})
	curved := g.FindEdge(EdgeRef{U: 0, V: 1, Key: 1})
	require.NotEqual(t, NoEdge, straight)
	require.NotEqual(t, NoEdge, curved)

	assert.Equal(t, 863.2, g.Length[straight])
	assert.Equal(t, 910.7, g.Length[curved])
	assert.Equal(t, orb.LineString{{-84.3, 39.1}, {-84.295, 39.102}, {-84.29, 39.1}}, g.EdgeGeometry(curved))
	assert.Equal(t, orb.LineString{{-84.3, 39.1}, {-84.29, 39.1}}, g.EdgeGeometry(straight))
}

func TestDecodeGraphMLMissingAttributes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "edge without length",
			doc:  strings.Replace(testGraphML, `<data key="d10">863.2</data>`, ``, 1),
		},
		{
			name: "node without coordinates",
			doc:  strings.Replace(testGraphML, `<data key="d5">-84.3</data>`, ``, 1),
		},
		{
			name: "bad geometry",
			doc:  strings.Replace(testGraphML, `LINESTRING (`, `POLYGON ((`, 1),
		},
		{
			name: "non-numeric node id",
			doc:  strings.Replace(testGraphML, `<node id="101">`, `<node id="a">`, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeGraphML(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrGraphMalformed)
		})
	}
}

func TestDecodeGraphMLBadXML(t *testing.T) {
	_, err := DecodeGraphML(strings.NewReader("<graphml><graph>"))
	assert.Error(t, err)
}
