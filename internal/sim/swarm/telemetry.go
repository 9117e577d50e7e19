package swarm

// StageTimings is per-stage elapsed wall time for one tick, in ms.
type StageTimings struct {
	TargetCacheMS float64 `json:"target_cache_ms"`
	BuildGridMS   float64 `json:"build_grid_ms"`
	PolicyMS      float64 `json:"policy_ms"`
	PerceptionMS  float64 `json:"perception_ms"`
	PathReplanMS  float64 `json:"path_replan_ms"`
	SeparationMS  float64 `json:"separation_ms"`
	FollowMS      float64 `json:"follow_ms"`
	IntegrateMS   float64 `json:"integrate_ms"`
}

// Telemetry is the per-tick pull snapshot: stage timings plus budget and
// behavior counters. Updated once per Step; safe to read from any
// goroutine via Sim.Telemetry.
type Telemetry struct {
	Tick       uint64 `json:"tick"`
	FrameIndex uint32 `json:"frame_index"`
	Agents     int    `json:"agents"`

	StepMS float64      `json:"step_ms"`
	Stage  StageTimings `json:"stage_ms"`

	RepathsUsed      int `json:"repaths_used"`
	LOSChecksUsed    int `json:"los_checks_used"`
	DirectChaseCount int `json:"direct_chase_count"`
	YieldingCount    int `json:"yielding_count"`

	AvgPathAgeSec    float64 `json:"avg_path_age_sec"`
	PathCacheEntries int     `json:"path_cache_entries"`
}

// Telemetry returns the latest per-tick snapshot.
func (s *Sim) Telemetry() Telemetry {
	v := s.telemetry.Load()
	if v == nil {
		return Telemetry{}
	}
	return v.(Telemetry)
}

// AgentSample is a thinned observer view of one agent.
type AgentSample struct {
	ID       AgentID    `json:"id"`
	Pos      [3]float64 `json:"pos"`
	Vel      [2]float64 `json:"vel"`
	HasPath  bool       `json:"has_path"`
	HasLOS   bool       `json:"has_los"`
	Yielding bool       `json:"yielding"`
	Stuck    bool       `json:"stuck"`
}

// Sample returns the live agents among every Nth slot (ids 0, N, 2N, ...)
// for the observer feed; dead slots are skipped, not replaced. every <= 0
// samples nobody. Call between ticks (or from the tick goroutine).
func (s *Sim) Sample(every int) []AgentSample {
	if every <= 0 {
		return nil
	}
	st := s.store
	out := make([]AgentSample, 0, st.Len()/every+1)
	for i := 0; i < st.Len(); i += every {
		if !st.alive[i] {
			continue
		}
		out = append(out, AgentSample{
			ID:       AgentID(i),
			Pos:      [3]float64{st.pos[i].X, st.pos[i].Y, st.pos[i].Z},
			Vel:      [2]float64{st.agent[i].Velocity.X, st.agent[i].Velocity.Y},
			HasPath:  st.path[i].HasPath,
			HasLOS:   st.los[i].HasLOS,
			Yielding: st.agent[i].Yielding,
			Stuck:    st.progress[i].LikelyStuck,
		})
	}
	return out
}
