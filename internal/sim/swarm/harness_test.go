package swarm

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"hordesim.ai/internal/sim/nav"
)

// testMesh is a fully walkable flat plane with switchable failure modes.
type testMesh struct {
	mu             sync.Mutex
	syncCalls      int
	asyncCalls     int
	syncFails      bool
	raycastBlocked bool
	traceBlocked   bool
	asyncInline    bool
	pathFn         func(from, to nav.Vec3) []nav.Vec3
}

func (m *testMesh) ProjectPoint(p, extent nav.Vec3) (nav.Vec3, bool) {
	if p.Z > extent.Z || p.Z < -extent.Z {
		return nav.Vec3{}, false
	}
	return nav.Vec3{X: p.X, Y: p.Y}, true
}

func (m *testMesh) Raycast(from, to nav.Vec3) (nav.Vec3, bool) {
	m.mu.Lock()
	blocked := m.raycastBlocked
	m.mu.Unlock()
	if blocked {
		mid := nav.Vec3{X: (from.X + to.X) / 2, Y: (from.Y + to.Y) / 2}
		return mid, true
	}
	return nav.Vec3{}, false
}

func (m *testMesh) solve(from, to nav.Vec3) []nav.Vec3 {
	if m.syncFails {
		return nil
	}
	if m.pathFn != nil {
		return m.pathFn(from, to)
	}
	return []nav.Vec3{from, to}
}

func (m *testMesh) FindPath(from, to nav.Vec3) []nav.Vec3 {
	m.mu.Lock()
	m.syncCalls++
	m.mu.Unlock()
	return m.solve(from, to)
}

func (m *testMesh) FindPathAsync(from, to nav.Vec3, mode nav.PathMode, cb func(pts []nav.Vec3)) {
	m.mu.Lock()
	m.asyncCalls++
	m.mu.Unlock()
	pts := []nav.Vec3{from, to}
	if m.asyncInline {
		cb(pts)
		return
	}
	go cb(pts)
}

func (m *testMesh) AgentConfig() (radius, height float64) { return 55, 180 }

func (m *testMesh) LineTrace(from, to nav.Vec3) (nav.TraceHit, bool) {
	m.mu.Lock()
	blocked := m.traceBlocked
	m.mu.Unlock()
	if blocked {
		return nav.TraceHit{Pos: from}, true
	}
	return nav.TraceHit{}, false
}

func (m *testMesh) counts() (sync, async int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncCalls, m.asyncCalls
}

func newTestRand() *rand.Rand { return rand.New(rand.NewSource(1)) }

// fixedTarget is a stationary TargetSource.
type fixedTarget struct {
	pos Vec3
}

func (t *fixedTarget) TargetPos() Vec3 { return t.pos }

const testDt = 1.0 / 60.0

// newTestSim builds a single-worker sim over a flat mesh.
func newTestSim(t *testing.T, mesh *testMesh, target TargetSource, spawn []Vec3) (*Sim, *Store) {
	t.Helper()
	store := NewStore()
	rng := rand.New(rand.NewSource(42))
	for _, p := range spawn {
		store.Spawn(p, 55, rng)
	}
	cfg := DefaultConfig()
	cfg.Workers = 1
	sim := New(DefaultParams(), cfg, store, mesh, mesh, target)
	return sim, store
}

// stepTicks advances the sim and applies moves, waiting out any async
// bucket work between ticks.
func stepTicks(sim *Sim, n int) {
	for i := 0; i < n; i++ {
		sim.Step(testDt)
		sim.ApplyMoveTargets()
		waitAsyncIdle(sim)
	}
}

func waitAsyncIdle(sim *Sim) {
	deadline := time.Now().Add(time.Second)
	for {
		sim.buckets.mu.Lock()
		idle := len(sim.buckets.inFlight) == 0
		sim.buckets.mu.Unlock()
		if idle || time.Now().After(deadline) {
			return
		}
		time.Sleep(time.Millisecond)
	}
}
