package ch

import (
	"container/heap"
	"sort"

	"golang.org/x/exp/slog"

	"taxi_router/pkg/graph"
)

// maxShortcutsPerNode is the limit on shortcuts a single contraction can create.
// Nodes exceeding this form an uncontracted "core" at the top of the hierarchy.
const maxShortcutsPerNode = 1000

// adjEntry represents an edge in the mutable adjacency list.
type adjEntry struct {
	to     uint32
	length float64
	middle int32 // -1 for original edges, else the contracted node ID
}

// Contract performs Contraction Hierarchies preprocessing on the given graph.
// Parallel edges collapse to the shortest one; self-loops are dropped.
func Contract(g *graph.Graph) *Hierarchy {
	n := g.NumNodes
	if n == 0 {
		return &Hierarchy{FwdFirstOut: []uint32{0}, BwdFirstOut: []uint32{0}}
	}

	// Build mutable forward and reverse adjacency lists from the CSR graph.
	outAdj := make([][]adjEntry, n)
	inAdj := make([][]adjEntry, n)

	for u := uint32(0); u < n; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			if v == u {
				continue
			}
			l := g.Length[e]
			outAdj[u] = append(outAdj[u], adjEntry{to: v, length: l, middle: -1})
			inAdj[v] = append(inAdj[v], adjEntry{to: u, length: l, middle: -1})
		}
	}

	contracted := make([]bool, n)
	rank := make([]uint32, n)
	contractedNeighbors := make([]int, n)
	level := make([]int, n)

	// Initialize priority queue with all nodes.
	pq := make(priorityQueue, n)
	for i := uint32(0); i < n; i++ {
		pq[i] = &pqEntry{
			node:     i,
			priority: computePriority(outAdj, inAdj, i, contracted, contractedNeighbors[i], level[i]),
			index:    int(i),
		}
	}
	heap.Init(&pq)

	// Pre-allocate reusable witness search state.
	ws := newWitnessState(n)

	slog.Info("Starting contraction", "nodes", n)

	var totalShortcuts int
	order := uint32(0)

	// Adaptive log interval: frequent near the end.
	logInterval := uint32(50000)

	for pq.Len() > 0 {
		// Pop minimum-priority node.
		entry := heap.Pop(&pq).(*pqEntry)
		node := entry.node

		if contracted[node] {
			continue
		}

		// Lazy update: recompute priority and re-insert if it changed.
		newPriority := computePriority(outAdj, inAdj, node, contracted, contractedNeighbors[node], level[node])
		if newPriority > entry.priority && pq.Len() > 0 && newPriority > pq[0].priority {
			entry.priority = newPriority
			heap.Push(&pq, entry)
			continue
		}

		shortcuts := findShortcuts(ws, outAdj, inAdj, node, contracted)

		// Too many shortcuts: stop here. Remaining nodes form a core at the
		// top of the hierarchy with their edges preserved.
		if len(shortcuts) > maxShortcutsPerNode {
			slog.Info("Stopping contraction",
				"node", node, "shortcuts", len(shortcuts), "limit", maxShortcutsPerNode, "core", n-order)
			break
		}

		contracted[node] = true
		rank[node] = order
		order++
		totalShortcuts += len(shortcuts)

		for _, sc := range shortcuts {
			outAdj[sc.from] = append(outAdj[sc.from], adjEntry{to: sc.to, length: sc.length, middle: int32(node)})
			inAdj[sc.to] = append(inAdj[sc.to], adjEntry{to: sc.from, length: sc.length, middle: int32(node)})
		}

		// Update neighbors' contracted neighbor count and level.
		for _, e := range outAdj[node] {
			if !contracted[e.to] {
				contractedNeighbors[e.to]++
				if level[node]+1 > level[e.to] {
					level[e.to] = level[node] + 1
				}
			}
		}
		for _, e := range inAdj[node] {
			if !contracted[e.to] {
				contractedNeighbors[e.to]++
				if level[node]+1 > level[e.to] {
					level[e.to] = level[node] + 1
				}
			}
		}

		remaining := n - order
		switch {
		case remaining < 1000:
			logInterval = 100
		case remaining < 10000:
			logInterval = 1000
		case remaining < 100000:
			logInterval = 10000
		default:
			logInterval = 50000
		}

		if order%logInterval == 0 {
			slog.Info("Contraction progress", "contracted", order, "nodes", n, "shortcuts", totalShortcuts)
		}
	}

	// Assign ranks to remaining uncontracted core nodes.
	coreSize := uint32(0)
	for i := uint32(0); i < n; i++ {
		if !contracted[i] {
			contracted[i] = true
			rank[i] = order
			order++
			coreSize++
		}
	}

	ratio := 0.0
	if g.NumEdges > 0 {
		ratio = float64(totalShortcuts) / float64(g.NumEdges)
	}
	slog.Info("Contraction complete", "shortcuts", totalShortcuts, "ratio", ratio, "core", coreSize)

	return buildOverlay(n, outAdj, inAdj, rank)
}

// shortcut represents a shortcut edge to be added.
type shortcut struct {
	from, to uint32
	length   float64
}

// findShortcuts determines which shortcuts are needed when contracting a node.
// Uses batch witness search: one Dijkstra per incoming neighbor instead of one
// per (incoming, outgoing) pair.
func findShortcuts(ws *witnessState, outAdj, inAdj [][]adjEntry, node uint32, contracted []bool) []shortcut {
	var incoming []adjEntry
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			incoming = append(incoming, e)
		}
	}

	var outgoing []adjEntry
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			outgoing = append(outgoing, e)
		}
	}

	if len(incoming) == 0 || len(outgoing) == 0 {
		return nil
	}

	var shortcuts []shortcut

	for _, in := range incoming {
		// Max outgoing length bounds this batch search.
		maxOut := -1.0
		for _, out := range outgoing {
			if out.to != in.to && out.length > maxOut {
				maxOut = out.length
			}
		}
		if maxOut < 0 {
			continue // all outgoing go back to in.to
		}

		maxLength := in.length + maxOut

		// Run ONE Dijkstra from in.to, then check all outgoing targets.
		batchWitnessSearch(ws, outAdj, in.to, node, maxLength, contracted)

		for _, out := range outgoing {
			if out.to == in.to {
				continue
			}

			scLength := in.length + out.length

			// A witness at least as short as the shortcut makes it redundant.
			if ws.dist[out.to] > scLength {
				shortcuts = append(shortcuts, shortcut{
					from:   in.to,
					to:     out.to,
					length: scLength,
				})
			}
		}
	}

	return shortcuts
}

// computePriority returns the priority for a node (lower = contract first).
func computePriority(outAdj, inAdj [][]adjEntry, node uint32, contracted []bool, contractedNeighbors, level int) int {
	activeIn := 0
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			activeIn++
		}
	}
	activeOut := 0
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			activeOut++
		}
	}

	// Worst-case shortcut count stands in for a witness search here.
	edgeDifference := activeIn*activeOut - (activeIn + activeOut)

	return edgeDifference + 2*contractedNeighbors + level
}

type csrEdge struct {
	from, to uint32
	length   float64
	middle   int32
}

// buildOverlay creates forward and backward upward CSR graphs from the
// contracted adjacency lists and node ranks.
func buildOverlay(n uint32, outAdj, inAdj [][]adjEntry, rank []uint32) *Hierarchy {
	var fwdEdges, bwdEdges []csrEdge

	for u := uint32(0); u < n; u++ {
		for _, e := range outAdj[u] {
			if rank[u] < rank[e.to] {
				fwdEdges = append(fwdEdges, csrEdge{from: u, to: e.to, length: e.length, middle: e.middle})
			}
		}
		// Backward upward: for edges v→u where rank[u] < rank[v],
		// store as u→v in the backward graph (for backward search from target).
		for _, e := range inAdj[u] {
			if rank[u] < rank[e.to] {
				bwdEdges = append(bwdEdges, csrEdge{from: u, to: e.to, length: e.length, middle: e.middle})
			}
		}
	}

	fwdEdges = shortestPerPair(fwdEdges)
	bwdEdges = shortestPerPair(bwdEdges)

	slog.Info("Overlay built", "forward_edges", len(fwdEdges), "backward_edges", len(bwdEdges))

	h := &Hierarchy{NumNodes: n, Rank: rank}
	h.FwdFirstOut, h.FwdHead, h.FwdLength, h.FwdMiddle = buildCSR(n, fwdEdges)
	h.BwdFirstOut, h.BwdHead, h.BwdLength, h.BwdMiddle = buildCSR(n, bwdEdges)
	return h
}

// shortestPerPair keeps only the shortest edge for each (from, to) pair, so
// every overlay hop unpacks unambiguously.
func shortestPerPair(edges []csrEdge) []csrEdge {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.from != b.from {
			return a.from < b.from
		}
		if a.to != b.to {
			return a.to < b.to
		}
		return a.length < b.length
	})

	out := edges[:0]
	for i, e := range edges {
		if i > 0 && e.from == edges[i-1].from && e.to == edges[i-1].to {
			continue
		}
		out = append(out, e)
	}
	return out
}

func buildCSR(n uint32, edges []csrEdge) (firstOut, head []uint32, length []float64, middle []int32) {
	numEdges := uint32(len(edges))
	firstOut = make([]uint32, n+1)
	head = make([]uint32, numEdges)
	length = make([]float64, numEdges)
	middle = make([]int32, numEdges)

	for _, e := range edges {
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= n; i++ {
		firstOut[i] += firstOut[i-1]
	}

	pos := make([]uint32, n)
	copy(pos, firstOut[:n])
	for _, e := range edges {
		idx := pos[e.from]
		head[idx] = e.to
		length[idx] = e.length
		middle[idx] = e.middle
		pos[e.from]++
	}

	return
}

// Priority queue implementation for contraction ordering.

type pqEntry struct {
	node     uint32
	priority int
	index    int
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	entry := x.(*pqEntry)
	entry.index = len(*pq)
	*pq = append(*pq, entry)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*pq = old[:n-1]
	return entry
}
