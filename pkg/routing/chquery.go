package routing

import (
	"context"
	"fmt"
	"math"
	"sync"

	"taxi_router/pkg/ch"
)

// chQueryState holds per-query state for bidirectional CH Dijkstra.
type chQueryState struct {
	DistFwd []float64
	DistBwd []float64
	PredFwd []uint32 // predecessor in forward search (noNode = no predecessor)
	PredBwd []uint32 // predecessor in backward search (noNode = no predecessor)
	Touched []uint32 // nodes touched during this query (for fast reset)
	FwdPQ   MinHeap
	BwdPQ   MinHeap
}

func newCHQueryState(n uint32) *chQueryState {
	distFwd := make([]float64, n)
	distBwd := make([]float64, n)
	predFwd := make([]uint32, n)
	predBwd := make([]uint32, n)
	for i := range distFwd {
		distFwd[i] = math.Inf(1)
		distBwd[i] = math.Inf(1)
		predFwd[i] = noNode
		predBwd[i] = noNode
	}
	return &chQueryState{
		DistFwd: distFwd,
		DistBwd: distBwd,
		PredFwd: predFwd,
		PredBwd: predBwd,
		Touched: make([]uint32, 0, 1024),
		FwdPQ:   MinHeap{items: make([]PQItem, 0, 256)},
		BwdPQ:   MinHeap{items: make([]PQItem, 0, 256)},
	}
}

// reset clears only the touched entries for fast reuse.
func (qs *chQueryState) reset() {
	for _, node := range qs.Touched {
		qs.DistFwd[node] = math.Inf(1)
		qs.DistBwd[node] = math.Inf(1)
		qs.PredFwd[node] = noNode
		qs.PredBwd[node] = noNode
	}
	qs.Touched = qs.Touched[:0]
	qs.FwdPQ.Reset()
	qs.BwdPQ.Reset()
}

func (qs *chQueryState) untouched(node uint32) bool {
	return math.IsInf(qs.DistFwd[node], 1) && math.IsInf(qs.DistBwd[node], 1)
}

func (qs *chQueryState) touchFwd(node uint32, dist float64, pred uint32) {
	if qs.untouched(node) {
		qs.Touched = append(qs.Touched, node)
	}
	qs.DistFwd[node] = dist
	qs.PredFwd[node] = pred
}

func (qs *chQueryState) touchBwd(node uint32, dist float64, pred uint32) {
	if qs.untouched(node) {
		qs.Touched = append(qs.Touched, node)
	}
	qs.DistBwd[node] = dist
	qs.PredBwd[node] = pred
}

// HierarchyFinder answers shortest path queries with a bidirectional
// search over a contraction hierarchy.
type HierarchyFinder struct {
	h    *ch.Hierarchy
	pool sync.Pool
}

// NewHierarchyFinder creates a HierarchyFinder over h.
func NewHierarchyFinder(h *ch.Hierarchy) *HierarchyFinder {
	hf := &HierarchyFinder{h: h}
	hf.pool.New = func() any { return newCHQueryState(h.NumNodes) }
	return hf
}

// ShortestPath returns the unpacked node path from src to dst and its length.
func (hf *HierarchyFinder) ShortestPath(ctx context.Context, src, dst uint32) ([]uint32, float64, error) {
	if src >= hf.h.NumNodes || dst >= hf.h.NumNodes {
		return nil, 0, fmt.Errorf("%w: node %d or %d out of range", ErrNoRoute, src, dst)
	}
	if src == dst {
		return []uint32{src}, 0, nil
	}

	qs := hf.pool.Get().(*chQueryState)
	defer func() {
		qs.reset()
		hf.pool.Put(qs)
	}()

	qs.touchFwd(src, 0, noNode)
	qs.FwdPQ.Push(src, 0)
	qs.touchBwd(dst, 0, noNode)
	qs.BwdPQ.Push(dst, 0)

	mu, meetNode, err := hf.run(ctx, qs)
	if err != nil {
		return nil, 0, err
	}
	if meetNode == noNode {
		return nil, 0, fmt.Errorf("%w: %d -> %d", ErrNoRoute, src, dst)
	}

	return hf.h.Unpack(overlayPath(qs, meetNode)), mu, nil
}

// run is the bidirectional upward search. It returns the best distance and
// the node where the two searches met.
func (hf *HierarchyFinder) run(ctx context.Context, qs *chQueryState) (float64, uint32, error) {
	h := hf.h
	mu := math.Inf(1)
	meetNode := noNode

	iterations := 0

	for qs.FwdPQ.Len() > 0 || qs.BwdPQ.Len() > 0 {
		iterations++
		if iterations%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return mu, noNode, err
			}
		}

		// Forward step.
		if qs.FwdPQ.Len() > 0 && qs.FwdPQ.PeekDist() < mu {
			item := qs.FwdPQ.Pop()
			u := item.Node
			d := item.Dist

			if d > qs.DistFwd[u] {
				goto backward // stale entry
			}

			if candidate := d + qs.DistBwd[u]; candidate < mu {
				mu = candidate
				meetNode = u
			}

			for ei := h.FwdFirstOut[u]; ei < h.FwdFirstOut[u+1]; ei++ {
				v := h.FwdHead[ei]
				newDist := d + h.FwdLength[ei]
				if newDist < qs.DistFwd[v] {
					qs.touchFwd(v, newDist, u)
					qs.FwdPQ.Push(v, newDist)
				}
			}
		}

	backward:
		// Backward step.
		if qs.BwdPQ.Len() > 0 && qs.BwdPQ.PeekDist() < mu {
			item := qs.BwdPQ.Pop()
			u := item.Node
			d := item.Dist

			if d > qs.DistBwd[u] {
				continue // stale entry
			}

			if candidate := qs.DistFwd[u] + d; candidate < mu {
				mu = candidate
				meetNode = u
			}

			for ei := h.BwdFirstOut[u]; ei < h.BwdFirstOut[u+1]; ei++ {
				v := h.BwdHead[ei]
				newDist := d + h.BwdLength[ei]
				if newDist < qs.DistBwd[v] {
					qs.touchBwd(v, newDist, u)
					qs.BwdPQ.Push(v, newDist)
				}
			}
		}

		if qs.FwdPQ.PeekDist() >= mu && qs.BwdPQ.PeekDist() >= mu {
			break
		}
	}

	return mu, meetNode, nil
}

// overlayPath builds the overlay node path source → meetNode → target.
func overlayPath(qs *chQueryState, meetNode uint32) []uint32 {
	var path []uint32
	for node := meetNode; node != noNode; node = qs.PredFwd[node] {
		path = append(path, node)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	// PredBwd[v] = u means original direction v → u, toward the target.
	for node := qs.PredBwd[meetNode]; node != noNode; node = qs.PredBwd[node] {
		path = append(path, node)
	}
	return path
}
