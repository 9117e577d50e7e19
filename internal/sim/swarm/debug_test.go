package swarm

import "testing"

func TestStickyFlags_SweepDropsDeadAgents(t *testing.T) {
	store := NewStore()
	rng := newTestRand()
	a := store.Spawn(Vec3{}, 55, rng)
	b := store.Spawn(Vec3{X: 100}, 55, rng)

	flags := NewStickyFlags()
	flags.Set(a)
	flags.Set(b)
	flags.Set(AgentID(999)) // never existed

	store.Despawn(b)
	flags.Sweep(store)

	if !flags.Has(a) {
		t.Fatalf("live agent swept")
	}
	if flags.Has(b) {
		t.Fatalf("despawned agent survived the sweep")
	}
	if flags.Has(999) {
		t.Fatalf("unknown id survived the sweep")
	}
}

func TestStore_DespawnedAgentsSkipPipeline(t *testing.T) {
	mesh := &testMesh{}
	sim, store := newTestSim(t, mesh, &fixedTarget{pos: Vec3{X: 1000}}, []Vec3{{X: 0}, {X: 50}})

	store.Despawn(1)
	stepTicks(sim, 10)

	if store.IsValid(1) {
		t.Fatalf("despawned agent still valid")
	}
	if got := sim.Telemetry().Agents; got != 1 {
		t.Fatalf("telemetry counts %d agents, want 1", got)
	}
	// The dead slot's state stays untouched.
	if store.path[1].HasPath || store.agent[1].Velocity != (Vec3{}) {
		t.Fatalf("pipeline touched a dead agent")
	}
}
