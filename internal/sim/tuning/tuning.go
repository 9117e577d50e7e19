// Package tuning loads the simulation's movement and pipeline constants
// from tuning.yaml.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hordesim.ai/internal/sim/swarm"
)

type Tuning struct {
	TickRateHz int   `yaml:"tick_rate_hz"`
	AgentCount int   `yaml:"agent_count"`
	Seed       int64 `yaml:"seed"`

	Movement Movement `yaml:"movement"`
	Pipeline Pipeline `yaml:"pipeline"`
}

type Movement struct {
	MaxSpeed         float64 `yaml:"max_speed"`
	SeparationWeight float64 `yaml:"separation_weight"`
	PathFollowWeight float64 `yaml:"path_follow_weight"`

	NeighborRadius float64 `yaml:"neighbor_radius"`
	AgentRadius    float64 `yaml:"agent_radius"`
	MaxNeighbors   int     `yaml:"max_neighbors"`

	WaypointAcceptanceRadius float64 `yaml:"waypoint_acceptance_radius"`
	EndOfPathRepathRadius    float64 `yaml:"end_of_path_repath_radius"`
	LOSHeightOffset          float64 `yaml:"los_height_offset"`
	DirectChaseRange         float64 `yaml:"direct_chase_range"`
	PathSpreadMaxOffset      float64 `yaml:"path_spread_max_offset"`
	PathSpreadMinDistance    float64 `yaml:"path_spread_min_distance"`
	PathSpreadMaxDistance    float64 `yaml:"path_spread_max_distance"`

	RepathsPerFrameBudget   int     `yaml:"repaths_per_frame_budget"`
	LOSChecksPerFrameBudget int     `yaml:"los_checks_per_frame_budget"`
	LOSRefreshSeconds       float64 `yaml:"los_refresh_seconds"`
}

type Pipeline struct {
	CellSize             float64 `yaml:"cell_size"`
	PathCacheCellSize    float64 `yaml:"path_cache_cell_size"`
	PathCacheTTL         float64 `yaml:"path_cache_ttl_sec"`
	KeySolveCooldown     float64 `yaml:"key_solve_cooldown_sec"`
	PathCacheMaxEntries  int     `yaml:"path_cache_max_entries"`
	FollowBucketCellSize float64 `yaml:"follow_bucket_cell_size"`
	MaxBucketsPerFrame   int     `yaml:"max_buckets_per_frame"`
	ChunkSize            int     `yaml:"chunk_size"`
	Workers              int     `yaml:"workers"`
}

func Defaults() Tuning {
	p := swarm.DefaultParams()
	c := swarm.DefaultConfig()
	return Tuning{
		TickRateHz: 60,
		AgentCount: 2000,
		Seed:       1337,
		Movement: Movement{
			MaxSpeed:                 p.MaxSpeed,
			SeparationWeight:         p.SeparationWeight,
			PathFollowWeight:         p.PathFollowWeight,
			NeighborRadius:           p.NeighborRadius,
			AgentRadius:              p.AgentRadius,
			MaxNeighbors:             p.MaxNeighbors,
			WaypointAcceptanceRadius: p.WaypointAcceptanceRadius,
			EndOfPathRepathRadius:    p.EndOfPathRepathRadius,
			LOSHeightOffset:          p.LOSHeightOffset,
			DirectChaseRange:         p.DirectChaseRange,
			PathSpreadMaxOffset:      p.PathSpreadMaxOffset,
			PathSpreadMinDistance:    p.PathSpreadMinDistance,
			PathSpreadMaxDistance:    p.PathSpreadMaxDistance,
			RepathsPerFrameBudget:    p.RepathsPerFrameBudget,
			LOSChecksPerFrameBudget:  p.LOSChecksPerFrameBudget,
			LOSRefreshSeconds:        p.LOSRefreshSeconds,
		},
		Pipeline: Pipeline{
			CellSize:             c.CellSize,
			PathCacheCellSize:    c.PathCacheCellSize,
			PathCacheTTL:         c.PathCacheTTL,
			KeySolveCooldown:     c.KeySolveCooldown,
			PathCacheMaxEntries:  c.PathCacheMaxEntries,
			FollowBucketCellSize: c.FollowBucketCellSize,
			MaxBucketsPerFrame:   c.MaxBucketsPerFrame,
			ChunkSize:            c.ChunkSize,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.AgentCount < 0 {
		return fmt.Errorf("agent_count must be >= 0")
	}
	if t.Movement.MaxSpeed <= 0 {
		return fmt.Errorf("movement.max_speed must be > 0")
	}
	if t.Movement.LOSChecksPerFrameBudget < 0 || t.Movement.RepathsPerFrameBudget < 0 {
		return fmt.Errorf("frame budgets must be >= 0")
	}
	return nil
}

// Params maps the movement section onto the core's parameter block.
func (t Tuning) Params() swarm.Params {
	m := t.Movement
	return swarm.Params{
		MaxSpeed:                 m.MaxSpeed,
		SeparationWeight:         m.SeparationWeight,
		PathFollowWeight:         m.PathFollowWeight,
		NeighborRadius:           m.NeighborRadius,
		AgentRadius:              m.AgentRadius,
		MaxNeighbors:             m.MaxNeighbors,
		WaypointAcceptanceRadius: m.WaypointAcceptanceRadius,
		EndOfPathRepathRadius:    m.EndOfPathRepathRadius,
		LOSHeightOffset:          m.LOSHeightOffset,
		DirectChaseRange:         m.DirectChaseRange,
		PathSpreadMaxOffset:      m.PathSpreadMaxOffset,
		PathSpreadMinDistance:    m.PathSpreadMinDistance,
		PathSpreadMaxDistance:    m.PathSpreadMaxDistance,
		RepathsPerFrameBudget:    m.RepathsPerFrameBudget,
		LOSChecksPerFrameBudget:  m.LOSChecksPerFrameBudget,
		LOSRefreshSeconds:        m.LOSRefreshSeconds,
	}
}

// Config maps the pipeline section onto the core's sizing block.
func (t Tuning) Config() swarm.Config {
	p := t.Pipeline
	return swarm.Config{
		CellSize:             p.CellSize,
		PathCacheCellSize:    p.PathCacheCellSize,
		PathCacheTTL:         p.PathCacheTTL,
		KeySolveCooldown:     p.KeySolveCooldown,
		PathCacheMaxEntries:  p.PathCacheMaxEntries,
		FollowBucketCellSize: p.FollowBucketCellSize,
		MaxBucketsPerFrame:   p.MaxBucketsPerFrame,
		ChunkSize:            p.ChunkSize,
		Workers:              p.Workers,
	}
}
