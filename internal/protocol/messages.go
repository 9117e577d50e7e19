package protocol

// HelloMsg is the observer's subscribe request. SampleEvery asks for
// every Nth agent as a sample in each frame (0 asks for none). All
// observers receive the same frame, whose stride is the smallest
// positive SampleEvery among them.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SampleEvery     int    `json:"sample_every"`
}

// WelcomeMsg acknowledges a subscription.
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	TickRateHz      int    `json:"tick_rate_hz"`
	Agents          int    `json:"agents"`
}

// FrameMsg is one tick of telemetry, plus optional agent samples.
type FrameMsg struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`

	StepMS           float64            `json:"step_ms"`
	StageMS          map[string]float64 `json:"stage_ms"`
	Agents           int                `json:"agents"`
	RepathsUsed      int                `json:"repaths_used"`
	LOSChecksUsed    int                `json:"los_checks_used"`
	DirectChaseCount int                `json:"direct_chase_count"`
	YieldingCount    int                `json:"yielding_count"`
	AvgPathAgeSec    float64            `json:"avg_path_age_sec"`

	Samples []FrameSample `json:"samples,omitempty"`
}

// FrameSample is a thinned agent snapshot inside a frame.
type FrameSample struct {
	ID       int32      `json:"id"`
	Pos      [3]float64 `json:"pos"`
	Vel      [2]float64 `json:"vel"`
	HasPath  bool       `json:"has_path"`
	HasLOS   bool       `json:"has_los"`
	Yielding bool       `json:"yielding"`
	Stuck    bool       `json:"stuck"`
}
