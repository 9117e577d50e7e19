package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults_MatchCore(t *testing.T) {
	d := Defaults()
	if d.Movement.MaxSpeed != 330 || d.Movement.LOSChecksPerFrameBudget != 64 {
		t.Fatalf("defaults drifted: %+v", d.Movement)
	}
	if d.Pipeline.CellSize != 200 || d.Pipeline.PathCacheMaxEntries != 8192 {
		t.Fatalf("pipeline defaults drifted: %+v", d.Pipeline)
	}
	p := d.Params()
	if p.DirectChaseRange != 1400 || p.LOSRefreshSeconds != 0.35 {
		t.Fatalf("params mapping drifted: %+v", p)
	}
}

func TestLoad_OverridesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	body := []byte(`
tick_rate_hz: 30
agent_count: 500
movement:
  max_speed: 250
  los_checks_per_frame_budget: 16
pipeline:
  cell_size: 150
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 30 || got.AgentCount != 500 {
		t.Fatalf("top-level overrides lost: %+v", got)
	}
	if got.Movement.MaxSpeed != 250 || got.Movement.LOSChecksPerFrameBudget != 16 {
		t.Fatalf("movement overrides lost: %+v", got.Movement)
	}
	if got.Pipeline.CellSize != 150 {
		t.Fatalf("pipeline override lost: %+v", got.Pipeline)
	}
	// Unspecified fields keep their defaults.
	if got.Movement.DirectChaseRange != 1400 {
		t.Fatalf("unset field lost its default: %+v", got.Movement)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("zero tick rate should be rejected")
	}

	if err := os.WriteFile(path, []byte("movement: {max_speed: -5}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("negative max speed should be rejected")
	}
}
