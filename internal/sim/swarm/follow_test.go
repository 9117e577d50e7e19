package swarm

import (
	"math"
	"testing"
)

func alignFollow(sim *Sim) {
	alignChunk(sim, 0, followChunkStagger)
}

func freshPath(store *Store, id AgentID, pts []Vec3, goal Vec3) {
	store.path[id] = PathState{
		Points:   newPathPoints(pts),
		Index:    1,
		HasPath:  true,
		LastGoal: goal,
	}
	store.sense[id].TargetPos = goal
}

func TestFollow_WaypointAdvance(t *testing.T) {
	mesh := &testMesh{}
	goal := Vec3{X: 4000}
	sim, store := newTestSim(t, mesh, &fixedTarget{pos: goal}, []Vec3{{X: 0}})

	freshPath(store, 0, []Vec3{{X: -100}, {X: 100}, {X: 2000}, goal}, goal)
	store.policy[0].DistToTarget2DSq = Dist2DSq(Vec3{}, goal)

	alignFollow(sim)
	sim.systemFollow(testDt)

	// Point 1 is within the 180-unit acceptance radius of x=0.
	if got := store.path[0].Index; got != 2 {
		t.Fatalf("index=%d want 2 after advancing past a close waypoint", got)
	}
	if store.sep[0].PathDir.X <= 0 {
		t.Fatalf("pathDir should point toward the next waypoint, got %+v", store.sep[0].PathDir)
	}
	if w := store.sep[0].PathWeight; w != DefaultParams().PathFollowWeight {
		t.Fatalf("pathWeight=%v want %v at low density", w, DefaultParams().PathFollowWeight)
	}
}

func TestFollow_DirectChaseInvalidatesWindow(t *testing.T) {
	mesh := &testMesh{}
	goal := Vec3{X: 800}
	sim, store := newTestSim(t, mesh, &fixedTarget{pos: goal}, []Vec3{{X: 0}})

	freshPath(store, 0, []Vec3{{X: -500}, goal}, goal)
	store.sense[0].LOS = true
	store.policy[0].DistToTarget2DSq = Dist2DSq(Vec3{}, goal)
	store.window[0].Valid = true

	alignFollow(sim)
	sim.systemFollow(testDt)

	if store.window[0].Valid {
		t.Fatalf("direct chase must invalidate the window")
	}
	if sim.directChase.Load() != 1 {
		t.Fatalf("directChaseCount=%d want 1", sim.directChase.Load())
	}
	if store.sep[0].PathDir.X <= 0 {
		t.Fatalf("direct chase should steer at the target")
	}
}

func TestFollow_WindowTangentAndCurvature(t *testing.T) {
	mesh := &testMesh{}
	goal := Vec3{X: 0, Y: 2000}
	sim, store := newTestSim(t, mesh, &fixedTarget{pos: goal}, []Vec3{{X: -900}})

	// Right-angle bend at point 1, then a 45-degree turn at point 2; the
	// window starts at index 1.
	freshPath(store, 0, []Vec3{{X: 0}, {X: 1000}, {X: 1000, Y: 1000}, goal}, goal)
	store.path[0].Index = 1
	store.policy[0].DistToTarget2DSq = maxFloat // keep LOS logic out

	sim.buildWindow(0)

	w := store.window[0]
	if !w.Valid {
		t.Fatalf("window not built")
	}
	if w.P0 != (Vec3{X: 1000}) || w.P1 != (Vec3{X: 1000, Y: 1000}) || w.P2 != goal {
		t.Fatalf("window points wrong: %+v", w)
	}
	// v01=(0,1000), v12=(-1000,1000): sinTh = |cross|/(|v01||v12|).
	v01 := Vec2{X: 0, Y: 1000}
	v12 := Vec2{X: -1000, Y: 1000}
	cross := v01.X*v12.Y - v01.Y*v12.X
	sinTh := math.Abs(cross) / (1000 * math.Hypot(v12.X, v12.Y))
	want := sinTh / 1000
	if math.Abs(w.Curvature-want) > 1e-12 {
		t.Fatalf("curvature=%v want %v", w.Curvature, want)
	}
	if math.Abs(w.Tangent2D.Y-1) > 1e-9 {
		t.Fatalf("tangent=%+v want +Y", w.Tangent2D)
	}
}

func TestFollow_LaneSpreadOffsetsTarget(t *testing.T) {
	mesh := &testMesh{}
	goal := Vec3{X: 10000}
	sim, store := newTestSim(t, mesh, &fixedTarget{pos: goal}, []Vec3{{X: 0}})

	waypoint := Vec3{X: 2000}
	freshPath(store, 0, []Vec3{{X: -100}, waypoint, {X: 6000}, goal}, goal)
	store.policy[0].DistToTarget2DSq = Dist2DSq(Vec3{}, goal)
	store.sense[0].LOS = false
	store.agent[0].LaneSign = 1
	store.agent[0].LaneMag = 1

	alignFollow(sim)
	sim.systemFollow(testDt)

	// Expected: alpha over [600,3000]; the lateral vector (-t.Y, t.X) of
	// t=(1,0) is (0,1). Offset target = waypoint + (0,1)*spread.
	dist := waypoint.X
	alpha := (math.Min(dist, 3000) - 600) / (3000 - 600)
	spread := 120 * alpha
	want := Vec3{X: waypoint.X, Y: spread}.SafeNormal2D()
	got := store.sep[0].PathDir
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 {
		t.Fatalf("pathDir=%+v want %+v", got, want)
	}
}

func TestFollow_PathWeightDeemphasisByDensity(t *testing.T) {
	mesh := &testMesh{}
	goal := Vec3{X: 10000}
	sim, store := newTestSim(t, mesh, &fixedTarget{pos: goal}, []Vec3{{X: 0}})

	freshPath(store, 0, []Vec3{{X: -100}, {X: 2000}, goal}, goal)
	store.policy[0].DistToTarget2DSq = Dist2DSq(Vec3{}, goal)
	store.sep[0].LocalDensity = 7 // very dense

	alignFollow(sim)
	sim.systemFollow(testDt)

	want := DefaultParams().PathFollowWeight * 0.6
	if math.Abs(store.sep[0].PathWeight-want) > 1e-12 {
		t.Fatalf("pathWeight=%v want %v at density 7", store.sep[0].PathWeight, want)
	}
}

func TestFollow_StalePathFreezeOverIndexOverrun(t *testing.T) {
	mesh := &testMesh{syncFails: true}
	goal := Vec3{X: 9000}
	sim, store := newTestSim(t, mesh, &fixedTarget{pos: goal}, []Vec3{{X: 0}})

	freshPath(store, 0, []Vec3{{X: -100}, {X: 100}}, goal)
	store.path[0].Index = 2    // exhausted
	store.path[0].Cooldown = 1 // keep the async gate quiet
	store.policy[0].DistToTarget2DSq = Dist2DSq(Vec3{}, goal)

	alignFollow(sim)
	sim.systemFollow(testDt)

	if store.path[0].HasPath {
		t.Fatalf("exhausted path should drop hasPath")
	}
}

func TestFollow_FreshnessScalesWithDistance(t *testing.T) {
	mesh := &testMesh{}
	sim, store := newTestSim(t, mesh, &fixedTarget{pos: Vec3{X: 100}}, []Vec3{{X: 0}})

	// Close goal: age ceiling clamps to 2 s.
	freshPath(store, 0, []Vec3{{X: -100}, {X: 100}}, Vec3{X: 100})
	store.path[0].PathAge = 1.9
	if !sim.pathFresh(0, Vec3{}) {
		t.Fatalf("1.9s-old path to a close goal should be fresh")
	}
	store.path[0].PathAge = 2.1
	if sim.pathFresh(0, Vec3{}) {
		t.Fatalf("2.1s-old path to a close goal should be stale")
	}

	// Far goal: ceiling clamps to 10 s.
	far := Vec3{X: 99000}
	freshPath(store, 0, []Vec3{{X: -100}, far}, far)
	store.path[0].PathAge = 9.9
	if !sim.pathFresh(0, Vec3{}) {
		t.Fatalf("9.9s-old path to a far goal should be fresh")
	}
	store.path[0].PathAge = 10.1
	if sim.pathFresh(0, Vec3{}) {
		t.Fatalf("10.1s-old path to a far goal should be stale")
	}
}
