package planemesh

import (
	"testing"

	"hordesim.ai/internal/sim/nav"
)

func wallWorld() *Mesh {
	// 4000x4000 plane with a vertical wall splitting the middle,
	// open at the top.
	return New(Config{
		MinX:     -2000,
		MinY:     -2000,
		Width:    4000,
		Height:   4000,
		CellSize: 100,
		Obstacles: []Rect{
			{MinX: -50, MinY: -2000, MaxX: 50, MaxY: 1000},
		},
	})
}

func TestFindPath_RoutesAroundWall(t *testing.T) {
	m := wallWorld()
	from := nav.Vec3{X: -1000, Y: 0}
	to := nav.Vec3{X: 1000, Y: 0}

	pts := m.FindPath(from, to)
	if len(pts) < 2 {
		t.Fatalf("no path found around the wall")
	}
	if pts[0] != from || pts[len(pts)-1].X != to.X {
		t.Fatalf("path endpoints wrong: %v .. %v", pts[0], pts[len(pts)-1])
	}
	// Every interior point must sit on a walkable cell.
	for _, p := range pts {
		col, row := m.cellAt(p.X, p.Y)
		if !m.walkableAt(col, row) {
			t.Fatalf("path point %v is inside the wall", p)
		}
	}
	// The route must clear the wall's top (y > 1000 somewhere).
	cleared := false
	for _, p := range pts {
		if p.Y > 1000 {
			cleared = true
			break
		}
	}
	if !cleared {
		t.Fatalf("path did not detour over the wall")
	}
}

func TestFindPath_NoPathWhenSealed(t *testing.T) {
	m := New(Config{
		MinX:     -1000,
		MinY:     -1000,
		Width:    2000,
		Height:   2000,
		CellSize: 100,
		Obstacles: []Rect{
			{MinX: -50, MinY: -1000, MaxX: 50, MaxY: 1000},
		},
	})
	if pts := m.FindPath(nav.Vec3{X: -500}, nav.Vec3{X: 500}); pts != nil {
		t.Fatalf("found a path through a sealed wall: %v", pts)
	}
}

func TestRaycast_BlockedByWall(t *testing.T) {
	m := wallWorld()
	if _, blocked := m.Raycast(nav.Vec3{X: -1000}, nav.Vec3{X: 1000}); !blocked {
		t.Fatalf("raycast through the wall not blocked")
	}
	if _, blocked := m.Raycast(nav.Vec3{X: -1000, Y: 1500}, nav.Vec3{X: 1000, Y: 1500}); blocked {
		t.Fatalf("raycast over the open top blocked")
	}
}

func TestProjectPoint_SnapsOntoWalkable(t *testing.T) {
	m := wallWorld()
	// Inside the wall: projects to a nearby open cell.
	p, ok := m.ProjectPoint(nav.Vec3{X: 0, Y: 0}, nav.Vec3{X: 400, Y: 400, Z: 200})
	if !ok {
		t.Fatalf("projection failed next to the wall")
	}
	col, row := m.cellAt(p.X, p.Y)
	if !m.walkableAt(col, row) {
		t.Fatalf("projected point %v not walkable", p)
	}
	// Too high above the ground fails.
	if _, ok := m.ProjectPoint(nav.Vec3{X: 500, Y: 500, Z: 5000}, nav.Vec3{X: 100, Y: 100, Z: 200}); ok {
		t.Fatalf("projection should fail outside the z extent")
	}
}

func TestFindPathAsync_DeliversResult(t *testing.T) {
	m := wallWorld()
	ch := make(chan []nav.Vec3, 1)
	m.FindPathAsync(nav.Vec3{X: -1000}, nav.Vec3{X: 1000}, nav.PathModeHierarchical, func(pts []nav.Vec3) {
		ch <- pts
	})
	pts := <-ch
	if len(pts) < 2 {
		t.Fatalf("async solve returned %d points", len(pts))
	}
}

func TestLineTrace_MatchesRaycast(t *testing.T) {
	m := wallWorld()
	if _, hit := m.LineTrace(nav.Vec3{X: -1000, Z: 60}, nav.Vec3{X: 1000, Z: 60}); !hit {
		t.Fatalf("line trace through the wall should hit")
	}
	if _, hit := m.LineTrace(nav.Vec3{X: -1000, Y: 1500}, nav.Vec3{X: 1000, Y: 1500}); hit {
		t.Fatalf("clear line trace reported a hit")
	}
}
