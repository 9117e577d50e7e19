package swarm

import (
	"math"
	"testing"
)

// primeSeparation aligns every gate so the first chunk runs: stagger,
// distance band, and mask.
func primeSeparation(sim *Sim, store *Store) {
	alignChunk(sim, 0, separationChunkStagger)
	for i := range store.policy {
		store.policy[i].DistToTarget2DSq = 0
		store.policy[i].SeparationMask = 0
	}
}

func TestSeparation_PushesApart(t *testing.T) {
	mesh := &testMesh{}
	target := &fixedTarget{pos: Vec3{}}
	// Two overlapping agents: sumR = 2*55+10 = 120, placed 60 apart.
	sim, store := newTestSim(t, mesh, target, []Vec3{
		{X: 0},
		{X: 60},
	})

	sim.systemBuildGrid()
	primeSeparation(sim, store)
	sim.systemSeparation()

	s0 := store.sep[0]
	if s0.NeighborCount != 1 {
		t.Fatalf("neighborCount=%d want 1", s0.NeighborCount)
	}
	// Neighbor is at +X, so the push points at -X.
	if s0.Separation.X >= 0 {
		t.Fatalf("separation.x=%.2f, want < 0", s0.Separation.X)
	}
	if math.Abs(s0.Separation.Y) > 1e-9 {
		t.Fatalf("separation.y=%.4f, want 0", s0.Separation.Y)
	}

	// Magnitude = over*8 + strength*25 with d=60, sumR=120.
	wantMag := (120.0-60.0)*8 + (1-60.0/120.0)*25
	if got := s0.Separation.Len2D(); math.Abs(got-wantMag) > 1e-6 {
		t.Fatalf("separation magnitude=%.4f want %.4f", got, wantMag)
	}
	if s0.LocalDensity <= 0 {
		t.Fatalf("local density not derived from neighbor count")
	}
}

func TestSeparation_ZeroMaxNeighbors(t *testing.T) {
	mesh := &testMesh{}
	target := &fixedTarget{pos: Vec3{}}
	store := NewStore()
	store.Spawn(Vec3{}, 55, newTestRand())
	store.Spawn(Vec3{X: 40}, 55, newTestRand())

	params := DefaultParams()
	params.MaxNeighbors = 0
	cfg := DefaultConfig()
	cfg.Workers = 1
	sim := New(params, cfg, store, mesh, mesh, target)

	sim.systemBuildGrid()
	primeSeparation(sim, store)
	// Seed non-zero values to prove the stage clears them.
	store.sep[0].Separation = Vec3{X: 99}
	store.sep[0].NeighborCount = 7
	sim.systemSeparation()

	if store.sep[0].Separation != (Vec3{}) {
		t.Fatalf("separation=%v want zero with maxNeighbors=0", store.sep[0].Separation)
	}
	if store.sep[0].NeighborCount != 0 {
		t.Fatalf("neighborCount=%d want 0", store.sep[0].NeighborCount)
	}
}

func TestSeparation_OnlyNeighborsInQueryRadiusCount(t *testing.T) {
	mesh := &testMesh{}
	target := &fixedTarget{pos: Vec3{}}
	// 150 apart: beyond neighborRadius 80, so not counted (and beyond
	// sumR=120, so no push).
	sim, store := newTestSim(t, mesh, target, []Vec3{
		{X: 0},
		{X: 150},
	})

	sim.systemBuildGrid()
	primeSeparation(sim, store)
	sim.systemSeparation()

	if store.sep[0].NeighborCount != 0 {
		t.Fatalf("agents beyond the query radius counted as neighbors")
	}

	// 70 apart: inside the query radius and inside sumR; counted and
	// pushed.
	store.pos[1] = Vec3{X: 70}
	sim.systemBuildGrid()
	sim.systemSeparation()
	if store.sep[0].NeighborCount != 1 || store.sep[0].Separation.X >= 0 {
		t.Fatalf("close neighbor not accumulated: %+v", store.sep[0])
	}
}
