package planemesh

import (
	"container/heap"
	"math"

	"hordesim.ai/internal/sim/nav"
)

type neighborStep struct {
	dc, dr   int
	cost     float64
	diagonal bool
}

var neighborSteps = [...]neighborStep{
	{dc: 0, dr: -1, cost: 1},
	{dc: 1, dr: 0, cost: 1},
	{dc: 0, dr: 1, cost: 1},
	{dc: -1, dr: 0, cost: 1},
	{dc: 1, dr: -1, cost: math.Sqrt2, diagonal: true},
	{dc: 1, dr: 1, cost: math.Sqrt2, diagonal: true},
	{dc: -1, dr: 1, cost: math.Sqrt2, diagonal: true},
	{dc: -1, dr: -1, cost: math.Sqrt2, diagonal: true},
}

type openNode struct {
	idx      int
	priority float64
	order    int
}

type openHeap []openNode

func (h openHeap) Len() int { return len(h) }
func (h openHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].order < h[j].order
}
func (h openHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *openHeap) Push(x any)   { *h = append(*h, x.(openNode)) }
func (h *openHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// FindPath solves A* over walkable cells and returns world-space points
// (exact endpoints, cell centers between). nil when no path exists.
func (m *Mesh) FindPath(from, to nav.Vec3) []nav.Vec3 {
	sc, sr := m.cellAt(from.X, from.Y)
	gc, gr := m.cellAt(to.X, to.Y)
	if !m.walkableAt(sc, sr) || !m.walkableAt(gc, gr) {
		return nil
	}
	start := sr*m.cols + sc
	goal := gr*m.cols + gc
	if start == goal {
		return []nav.Vec3{
			{X: from.X, Y: from.Y},
			{X: to.X, Y: to.Y},
		}
	}

	gScore := make(map[int]float64, 256)
	cameFrom := make(map[int]int, 256)
	gScore[start] = 0

	h := func(idx int) float64 {
		c, r := idx%m.cols, idx/m.cols
		return math.Hypot(float64(c-gc), float64(r-gr))
	}

	open := &openHeap{{idx: start, priority: h(start)}}
	heap.Init(open)
	order := 0
	closed := make(map[int]bool, 256)

	for open.Len() > 0 {
		cur := heap.Pop(open).(openNode)
		if cur.idx == goal {
			return m.reconstruct(cameFrom, cur.idx, from, to)
		}
		if closed[cur.idx] {
			continue
		}
		closed[cur.idx] = true

		cc, cr := cur.idx%m.cols, cur.idx/m.cols
		for _, st := range neighborSteps {
			nc, nr := cc+st.dc, cr+st.dr
			if !m.walkableAt(nc, nr) {
				continue
			}
			// Diagonals must not cut blocked corners.
			if st.diagonal && (!m.walkableAt(cc+st.dc, cr) || !m.walkableAt(cc, cr+st.dr)) {
				continue
			}
			nidx := nr*m.cols + nc
			tentative := gScore[cur.idx] + st.cost
			if prev, ok := gScore[nidx]; ok && tentative >= prev {
				continue
			}
			gScore[nidx] = tentative
			cameFrom[nidx] = cur.idx
			order++
			heap.Push(open, openNode{idx: nidx, priority: tentative + h(nidx), order: order})
		}
	}
	return nil
}

func (m *Mesh) reconstruct(cameFrom map[int]int, goal int, from, to nav.Vec3) []nav.Vec3 {
	var cells []int
	for idx := goal; ; {
		cells = append(cells, idx)
		prev, ok := cameFrom[idx]
		if !ok {
			break
		}
		idx = prev
	}
	// cells is goal..start; emit start..goal with exact endpoints.
	pts := make([]nav.Vec3, 0, len(cells)+1)
	pts = append(pts, nav.Vec3{X: from.X, Y: from.Y})
	for i := len(cells) - 2; i >= 1; i-- {
		cx, cy := m.center(cells[i]%m.cols, cells[i]/m.cols)
		pts = append(pts, nav.Vec3{X: cx, Y: cy})
	}
	pts = append(pts, nav.Vec3{X: to.X, Y: to.Y})
	return pts
}
