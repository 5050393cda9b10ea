package ch

// Hierarchy is a contraction hierarchy overlay over a street graph. Node
// indices are those of the graph it was built from.
type Hierarchy struct {
	NumNodes uint32
	Rank     []uint32

	// Forward upward graph (edges where rank[source] < rank[target]).
	FwdFirstOut []uint32
	FwdHead     []uint32
	FwdLength   []float64
	FwdMiddle   []int32 // -1 for original edges, else the contracted node

	// Backward upward graph (reversed edges where rank[source] < rank[target]).
	BwdFirstOut []uint32
	BwdHead     []uint32
	BwdLength   []float64
	BwdMiddle   []int32
}

const maxUnpackDepth = 200

const noNode = ^uint32(0)

// Unpack expands a sequence of overlay nodes into the original node path.
func (h *Hierarchy) Unpack(overlay []uint32) []uint32 {
	if len(overlay) < 2 {
		return overlay
	}

	result := []uint32{overlay[0]}
	for i := 0; i < len(overlay)-1; i++ {
		hop := h.unpackHop(overlay[i], overlay[i+1])
		// Skip first node (already in result) to avoid duplication.
		if len(hop) > 1 {
			result = append(result, hop[1:]...)
		}
	}
	return result
}

// unpackHop iteratively unpacks a single overlay hop from→to. Uses an
// explicit stack to avoid recursion.
func (h *Hierarchy) unpackHop(from, to uint32) []uint32 {
	type item struct {
		from, to uint32
		depth    int
	}

	stack := []item{{from, to, 0}}
	var result []uint32

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if it.depth > maxUnpackDepth {
			continue // safety bound
		}

		middle := h.Middle(it.from, it.to)
		if middle < 0 {
			if len(result) == 0 || result[len(result)-1] != it.from {
				result = append(result, it.from)
			}
			result = append(result, it.to)
			continue
		}

		m := uint32(middle)
		// Right half first so the left half pops first.
		stack = append(stack, item{m, it.to, it.depth + 1})
		stack = append(stack, item{it.from, m, it.depth + 1})
	}

	return result
}

// Middle returns the contracted node bridged by overlay hop from→to, or -1
// when the hop is an original edge.
//
// The hop is stored either as forward edge from→to (rank[from] < rank[to])
// or as backward edge to→from (rank[to] < rank[from]).
func (h *Hierarchy) Middle(from, to uint32) int32 {
	if e := findEdge(h.FwdFirstOut, h.FwdHead, from, to); e != noNode {
		return h.FwdMiddle[e]
	}
	if e := findEdge(h.BwdFirstOut, h.BwdHead, to, from); e != noNode {
		return h.BwdMiddle[e]
	}
	return -1
}

// findEdge finds an edge from source to target in a CSR graph.
func findEdge(firstOut, head []uint32, source, target uint32) uint32 {
	start := firstOut[source]
	end := firstOut[source+1]
	for e := start; e < end; e++ {
		if head[e] == target {
			return e
		}
	}
	return noNode
}
