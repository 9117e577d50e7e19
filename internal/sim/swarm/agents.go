package swarm

import "math/rand"

// AgentID is a stable index into the store's dense per-agent arrays.
// IDs are append-only; a despawned agent leaves a dead slot that every
// stage skips and that IsValid reports false for.
type AgentID int32

// PathPoints is an immutable list of path points shared by every agent
// following the same solve. Never published with fewer than 2 points.
type PathPoints struct {
	pts []Vec3
}

func newPathPoints(pts []Vec3) *PathPoints { return &PathPoints{pts: pts} }

func (p *PathPoints) Len() int {
	if p == nil {
		return 0
	}
	return len(p.pts)
}

func (p *PathPoints) At(i int) Vec3 { return p.pts[i] }

// AgentState carries motion state plus the spawn-fixed lane bias and the
// yield flag used near the target.
type AgentState struct {
	Velocity      Vec3
	LastProjected Vec3
	LaneSign      float64 // -1 or +1
	LaneMag       float64 // 0..1
	Yielding      bool
	YieldTime     float64
}

type PathState struct {
	Points    *PathPoints
	Index     int
	LastGoal  Vec3
	PathAge   float64
	Cooldown  float64
	NoLOSTime float64
	HasPath   bool
}

func (p *PathState) numPoints() int { return p.Points.Len() }

type LOSState struct {
	HasLOS           bool
	TimeSinceRefresh float64
}

type SeparationState struct {
	Separation    Vec3
	PathDir       Vec3
	PathWeight    float64
	NeighborCount int
	LocalDensity  float64
}

type PathWindow struct {
	P0, P1, P2 Vec3
	Tangent2D  Vec3
	Curvature  float64
	Valid      bool
}

type BudgetStamp struct {
	DidLOSRefresh bool
	DidReplan     bool
}

type PolicyState struct {
	DistToTarget2DSq float64
	EstimatedDensity float64
	CooldownScale    float64

	SeparationMask uint32
	FollowMask     uint32
	SenseMask      uint32
}

type TargetSense struct {
	TargetPos  Vec3
	LOS        bool
	LOSUpdated bool
}

type ProgressState struct {
	LastPos2D        Vec3
	DistanceMoved2D  float64
	SinceProgressSec float64
	LikelyStuck      bool
}

// MoveTarget is the per-tick output consumed by the motor.
type MoveTarget struct {
	Center         Vec3
	Forward        Vec2
	DistanceToGoal float64
}

// Store holds every per-agent array in structure-of-arrays layout.
// All slices share the same length; stages index them by AgentID.
type Store struct {
	pos      []Vec3
	facing   []Vec2
	agent    []AgentState
	path     []PathState
	los      []LOSState
	sep      []SeparationState
	window   []PathWindow
	stamp    []BudgetStamp
	policy   []PolicyState
	sense    []TargetSense
	progress []ProgressState
	move     []MoveTarget
	radius   []float64
	alive    []bool

	liveCount int
}

func NewStore() *Store { return &Store{} }

func (s *Store) Len() int { return len(s.pos) }

func (s *Store) Live() int { return s.liveCount }

func (s *Store) IsValid(id AgentID) bool {
	return int(id) >= 0 && int(id) < len(s.alive) && s.alive[id]
}

// Spawn appends one agent with default state and a seeded lane bias.
func (s *Store) Spawn(pos Vec3, radius float64, rng *rand.Rand) AgentID {
	id := AgentID(len(s.pos))
	sign := 1.0
	if rng.Intn(2) == 0 {
		sign = -1.0
	}
	s.pos = append(s.pos, pos)
	s.facing = append(s.facing, Vec2{X: 1})
	s.agent = append(s.agent, AgentState{
		LastProjected: pos,
		LaneSign:      sign,
		LaneMag:       rng.Float64(),
	})
	s.path = append(s.path, PathState{})
	s.los = append(s.los, LOSState{})
	s.sep = append(s.sep, SeparationState{})
	s.window = append(s.window, PathWindow{})
	s.stamp = append(s.stamp, BudgetStamp{})
	s.policy = append(s.policy, PolicyState{DistToTarget2DSq: maxFloat, CooldownScale: 1})
	s.sense = append(s.sense, TargetSense{})
	s.progress = append(s.progress, ProgressState{LastPos2D: Vec3{X: pos.X, Y: pos.Y}})
	s.move = append(s.move, MoveTarget{Center: pos, Forward: Vec2{X: 1}})
	s.radius = append(s.radius, radius)
	s.alive = append(s.alive, true)
	s.liveCount++
	return id
}

// Despawn marks a slot dead. The slot is never reused; auxiliary maps
// keyed by AgentID drop it when their owner sweeps them with IsValid.
func (s *Store) Despawn(id AgentID) {
	if s.IsValid(id) {
		s.alive[id] = false
		s.liveCount--
	}
}

func (s *Store) Pos(id AgentID) Vec3           { return s.pos[id] }
func (s *Store) Velocity(id AgentID) Vec3      { return s.agent[id].Velocity }
func (s *Store) Facing(id AgentID) Vec2        { return s.facing[id] }
func (s *Store) Move(id AgentID) MoveTarget    { return s.move[id] }
func (s *Store) Path(id AgentID) PathState     { return s.path[id] }
func (s *Store) Sense(id AgentID) TargetSense  { return s.sense[id] }
func (s *Store) Policy(id AgentID) PolicyState { return s.policy[id] }
func (s *Store) Yielding(id AgentID) bool      { return s.agent[id].Yielding }

// SetPos teleports an agent; normally only the motor moves agents, the
// core publishes MoveTarget and the owner applies it between ticks.
func (s *Store) SetPos(id AgentID, p Vec3) { s.pos[id] = p }

const maxFloat = 1.7976931348623157e308
