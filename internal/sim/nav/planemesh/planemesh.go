// Package planemesh is a flat-ground navmesh over a walkability grid:
// axis-aligned blocked rectangles carve holes out of a bounded plane.
// It implements both the nav.Mesh and nav.Physics services, which is
// enough to drive the swarm headless in servers and tests.
package planemesh

import (
	"math"

	"hordesim.ai/internal/sim/nav"
)

// Rect is an axis-aligned blocked region (a wall or pit footprint).
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rect) contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// Mesh is a rectangular walkable plane at z=0 with blocked cells.
type Mesh struct {
	minX, minY float64
	cellSize   float64
	cols, rows int
	walkable   []bool

	agentRadius float64
	agentHeight float64
}

// Config bounds the plane and lists its obstacles.
type Config struct {
	MinX, MinY  float64
	Width       float64
	Height      float64
	CellSize    float64 // default 100
	Obstacles   []Rect
	AgentRadius float64 // default 55
	AgentHeight float64 // default 180
}

func New(cfg Config) *Mesh {
	if cfg.CellSize <= 0 {
		cfg.CellSize = 100
	}
	if cfg.AgentRadius <= 0 {
		cfg.AgentRadius = 55
	}
	if cfg.AgentHeight <= 0 {
		cfg.AgentHeight = 180
	}
	cols := int(math.Ceil(cfg.Width / cfg.CellSize))
	rows := int(math.Ceil(cfg.Height / cfg.CellSize))
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}
	m := &Mesh{
		minX:        cfg.MinX,
		minY:        cfg.MinY,
		cellSize:    cfg.CellSize,
		cols:        cols,
		rows:        rows,
		walkable:    make([]bool, cols*rows),
		agentRadius: cfg.AgentRadius,
		agentHeight: cfg.AgentHeight,
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cx := cfg.MinX + (float64(col)+0.5)*cfg.CellSize
			cy := cfg.MinY + (float64(row)+0.5)*cfg.CellSize
			blocked := false
			for _, obs := range cfg.Obstacles {
				if obs.contains(cx, cy) {
					blocked = true
					break
				}
			}
			m.walkable[row*cols+col] = !blocked
		}
	}
	return m
}

func (m *Mesh) cellAt(x, y float64) (int, int) {
	col := int(math.Floor((x - m.minX) / m.cellSize))
	row := int(math.Floor((y - m.minY) / m.cellSize))
	return col, row
}

func (m *Mesh) inBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < m.cols && row < m.rows
}

func (m *Mesh) walkableAt(col, row int) bool {
	return m.inBounds(col, row) && m.walkable[row*m.cols+col]
}

func (m *Mesh) center(col, row int) (float64, float64) {
	return m.minX + (float64(col)+0.5)*m.cellSize, m.minY + (float64(row)+0.5)*m.cellSize
}

// ProjectPoint returns p itself when its cell is walkable; otherwise it
// snaps p to the nearest walkable cell center within the extent box.
// Either way z snaps to the ground plane.
func (m *Mesh) ProjectPoint(p, extent nav.Vec3) (nav.Vec3, bool) {
	if math.Abs(p.Z) > extent.Z {
		return nav.Vec3{}, false
	}
	col, row := m.cellAt(p.X, p.Y)
	if m.walkableAt(col, row) {
		return nav.Vec3{X: p.X, Y: p.Y, Z: 0}, true
	}
	// Ring search out to the extent.
	maxR := int(math.Ceil(math.Max(extent.X, extent.Y)/m.cellSize)) + 1
	bestD := math.MaxFloat64
	var best nav.Vec3
	found := false
	for r := 1; r <= maxR; r++ {
		for dr := -r; dr <= r; dr++ {
			for dc := -r; dc <= r; dc++ {
				if maxAbs(dc, dr) != r {
					continue
				}
				c, w := col+dc, row+dr
				if !m.walkableAt(c, w) {
					continue
				}
				cx, cy := m.center(c, w)
				if math.Abs(cx-p.X) > extent.X || math.Abs(cy-p.Y) > extent.Y {
					continue
				}
				d := (cx-p.X)*(cx-p.X) + (cy-p.Y)*(cy-p.Y)
				if d < bestD {
					bestD = d
					best = nav.Vec3{X: cx, Y: cy, Z: 0}
					found = true
				}
			}
		}
		if found {
			return best, true
		}
	}
	return nav.Vec3{}, false
}

func maxAbs(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}

// Raycast walks cells along from->to; the first blocked cell stops it.
func (m *Mesh) Raycast(from, to nav.Vec3) (nav.Vec3, bool) {
	steps := int(math.Ceil(math.Hypot(to.X-from.X, to.Y-from.Y)/(m.cellSize*0.5))) + 1
	prev := from
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		x := from.X + (to.X-from.X)*t
		y := from.Y + (to.Y-from.Y)*t
		col, row := m.cellAt(x, y)
		if !m.walkableAt(col, row) {
			return prev, true
		}
		prev = nav.Vec3{X: x, Y: y, Z: 0}
	}
	return nav.Vec3{}, false
}

// LineTrace implements the physics fallback with the same geometry as
// Raycast; hits carry no actor tag.
func (m *Mesh) LineTrace(from, to nav.Vec3) (nav.TraceHit, bool) {
	hit, blocked := m.Raycast(nav.Vec3{X: from.X, Y: from.Y}, nav.Vec3{X: to.X, Y: to.Y})
	if !blocked {
		return nav.TraceHit{}, false
	}
	return nav.TraceHit{Pos: hit}, true
}

func (m *Mesh) AgentConfig() (radius, height float64) {
	return m.agentRadius, m.agentHeight
}

// FindPathAsync runs FindPath on its own goroutine. mode is accepted for
// interface parity; the grid solver has no hierarchical tier.
func (m *Mesh) FindPathAsync(from, to nav.Vec3, mode nav.PathMode, cb func(pts []nav.Vec3)) {
	go func() {
		cb(m.FindPath(from, to))
	}()
}
