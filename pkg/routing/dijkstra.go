package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"taxi_router/pkg/graph"
)

// ErrNoRoute is returned when no route exists between the two points.
var ErrNoRoute = errors.New("no route found")

const noNode = ^uint32(0)

// ctxCheckInterval is how many settled nodes pass between context checks.
const ctxCheckInterval = 1024

// MinHeap is a concrete-typed min-heap for Dijkstra priority queue.
// Avoids interface boxing overhead of container/heap.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node uint32
	Dist float64
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, dist float64) {
	h.items = append(h.items, PQItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) PeekDist() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Dist
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Dist >= h.items[parent].Dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].Dist < h.items[smallest].Dist {
			smallest = left
		}
		if right < n && h.items[right].Dist < h.items[smallest].Dist {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// QueryState holds per-query state for a single-source Dijkstra search.
type QueryState struct {
	Dist    []float64
	Pred    []uint32 // predecessor node (noNode = none)
	Touched []uint32 // nodes touched during this query (for fast reset)
	PQ      MinHeap
}

// NewQueryState creates a new QueryState for a graph with n nodes.
func NewQueryState(n uint32) *QueryState {
	dist := make([]float64, n)
	pred := make([]uint32, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = noNode
	}
	return &QueryState{
		Dist:    dist,
		Pred:    pred,
		Touched: make([]uint32, 0, 1024),
		PQ:      MinHeap{items: make([]PQItem, 0, 256)},
	}
}

// Reset clears only the touched entries for fast reuse.
func (qs *QueryState) Reset() {
	for _, node := range qs.Touched {
		qs.Dist[node] = math.Inf(1)
		qs.Pred[node] = noNode
	}
	qs.Touched = qs.Touched[:0]
	qs.PQ.Reset()
}

func (qs *QueryState) touch(node uint32, dist float64, pred uint32) {
	if math.IsInf(qs.Dist[node], 1) {
		qs.Touched = append(qs.Touched, node)
	}
	qs.Dist[node] = dist
	qs.Pred[node] = pred
}

// PathSearcher finds length-weighted shortest node paths.
type PathSearcher interface {
	ShortestPath(ctx context.Context, src, dst uint32) ([]uint32, float64, error)
}

// PathFinder runs length-weighted shortest path queries over a graph,
// reusing search state between queries.
type PathFinder struct {
	g    *graph.Graph
	pool sync.Pool
}

// NewPathFinder creates a PathFinder for g.
func NewPathFinder(g *graph.Graph) *PathFinder {
	pf := &PathFinder{g: g}
	pf.pool.New = func() any { return NewQueryState(g.NumNodes) }
	return pf
}

// ShortestPath returns the node sequence of the shortest path from src to
// dst by edge length, and its length in meters. Parallel edges count with
// their shortest member. src == dst yields the single-node path.
func (pf *PathFinder) ShortestPath(ctx context.Context, src, dst uint32) ([]uint32, float64, error) {
	g := pf.g
	if src >= g.NumNodes || dst >= g.NumNodes {
		return nil, 0, fmt.Errorf("%w: node %d or %d out of range", ErrNoRoute, src, dst)
	}
	if src == dst {
		return []uint32{src}, 0, nil
	}

	qs := pf.pool.Get().(*QueryState)
	defer func() {
		qs.Reset()
		pf.pool.Put(qs)
	}()

	qs.touch(src, 0, noNode)
	qs.PQ.Push(src, 0)

	settled := 0
	for qs.PQ.Len() > 0 {
		settled++
		if settled%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}

		item := qs.PQ.Pop()
		u, d := item.Node, item.Dist
		if d > qs.Dist[u] {
			continue // stale entry
		}
		if u == dst {
			break
		}

		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			newDist := d + g.Length[e]
			if newDist < qs.Dist[v] {
				qs.touch(v, newDist, u)
				qs.PQ.Push(v, newDist)
			}
		}
	}

	if math.IsInf(qs.Dist[dst], 1) {
		return nil, 0, fmt.Errorf("%w: %d -> %d", ErrNoRoute, g.NodeID[src], g.NodeID[dst])
	}

	var path []uint32
	for node := dst; node != noNode; node = qs.Pred[node] {
		path = append(path, node)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, qs.Dist[dst], nil
}
