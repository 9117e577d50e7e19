package swarm

import (
	"math"
	"sync"
)

// GridEntry is one (agent, position) pair stored in a grid cell.
type GridEntry struct {
	ID  AgentID
	Pos Vec3
}

type gridCell struct {
	entries []GridEntry
}

// Grid is a 2D spatial hash over agent positions, rebuilt from scratch
// each tick. Cells keep their backing arrays across resets. The z axis
// is not part of the key; queries filter by a z band instead.
type Grid struct {
	cellSize float64
	inv      float64
	cells    map[int64]*gridCell

	// Circular offset stencils keyed by R. A stencil is immutable once
	// built, so concurrent readers share it without copying.
	stencils sync.Map // int -> []cellOffset
}

type cellOffset struct {
	dx, dy int32
}

func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 200
	}
	return &Grid{
		cellSize: cellSize,
		inv:      1 / cellSize,
		cells:    make(map[int64]*gridCell, 1024),
	}
}

func (g *Grid) CellSize() float64 { return g.cellSize }

func (g *Grid) IsEmpty() bool {
	for _, c := range g.cells {
		if len(c.entries) > 0 {
			return false
		}
	}
	return true
}

// Reset clears every cell, retaining capacity.
func (g *Grid) Reset() {
	for _, c := range g.cells {
		c.entries = c.entries[:0]
	}
}

func (g *Grid) cellCoord(p Vec3) (int32, int32) {
	return floorDiv(p.X, g.inv), floorDiv(p.Y, g.inv)
}

// cellKey mixes the packed cell coordinates. mix64 is a bijection on
// 64 bits, so distinct cells never share a key.
func cellKey(x, y int32) int64 {
	return int64(mix64(uint64(uint32(x))<<32 | uint64(uint32(y))))
}

func (g *Grid) Insert(id AgentID, p Vec3) {
	x, y := g.cellCoord(p)
	key := cellKey(x, y)
	c := g.cells[key]
	if c == nil {
		c = &gridCell{entries: make([]GridEntry, 0, 8)}
		g.cells[key] = c
	}
	c.entries = append(c.entries, GridEntry{ID: id, Pos: p})
}

func (g *Grid) stencil(r int) []cellOffset {
	if v, ok := g.stencils.Load(r); ok {
		return v.([]cellOffset)
	}
	r2 := int32(r) * int32(r)
	offs := make([]cellOffset, 0, (2*r+1)*(2*r+1))
	for dy := int32(-r); dy <= int32(r); dy++ {
		for dx := int32(-r); dx <= int32(r); dx++ {
			if dx*dx+dy*dy <= r2 {
				offs = append(offs, cellOffset{dx, dy})
			}
		}
	}
	actual, _ := g.stencils.LoadOrStore(r, offs)
	return actual.([]cellOffset)
}

// VisitNearby invokes visit for every entry within radius (2D) of origin
// whose z lies within zHalfHeight of origin's. Iteration stops when visit
// returns false or maxResults entries have been emitted (maxResults <= 0
// means unlimited).
func (g *Grid) VisitNearby(origin Vec3, radius, zHalfHeight float64, maxResults int, visit func(GridEntry) bool) {
	r := int(math.Ceil(radius * g.inv))
	if r <= 0 {
		return
	}
	cx, cy := g.cellCoord(origin)
	radiusSq := radius * radius
	zLo := origin.Z - zHalfHeight
	zHi := origin.Z + zHalfHeight
	emitted := 0

	for _, off := range g.stencil(r) {
		c := g.cells[cellKey(cx+off.dx, cy+off.dy)]
		if c == nil {
			continue
		}
		for i := range c.entries {
			e := &c.entries[i]
			if e.Pos.Z < zLo || e.Pos.Z > zHi {
				continue
			}
			dx := origin.X - e.Pos.X
			dy := origin.Y - e.Pos.Y
			if dx*dx+dy*dy > radiusSq {
				continue
			}
			if !visit(*e) {
				return
			}
			emitted++
			if maxResults > 0 && emitted >= maxResults {
				return
			}
		}
	}
}

// EstimateCountAt counts matches without a result cap.
func (g *Grid) EstimateCountAt(origin Vec3, radius, zHalfHeight float64) int {
	if len(g.cells) == 0 {
		return 0
	}
	count := 0
	g.VisitNearby(origin, radius, zHalfHeight, 0, func(GridEntry) bool {
		count++
		return true
	})
	return count
}
