package swarm

import "hordesim.ai/internal/sim/nav"

func toNav(v Vec3) nav.Vec3   { return nav.Vec3{X: v.X, Y: v.Y, Z: v.Z} }
func fromNav(v nav.Vec3) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

// targetCache is the once-per-tick snapshot of the chase target, shared
// read-only by every later stage.
type targetCache struct {
	pos        Vec3
	pos2D      Vec2
	navPos     Vec3
	onMesh     bool
	lastUpdate float64
}

var targetProjectExtent = Vec3{X: 3000, Y: 3000, Z: 10000}

const (
	targetXYTolerance = 5.0
	targetZTolerance  = 50.0
)

func (s *Sim) systemTargetCache() {
	if s.target == nil {
		return
	}
	// Idempotent within one world time.
	if s.targetCache.lastUpdate == s.worldSeconds {
		return
	}

	raw := s.target.TargetPos()
	projected := raw
	onMesh := false

	if s.mesh != nil {
		if out, ok := s.mesh.ProjectPoint(toNav(raw), toNav(targetProjectExtent)); ok {
			projected = fromNav(out)
			xyDistSq := Dist2DSq(raw, projected)
			zDist := raw.Z - projected.Z
			if zDist < 0 {
				zDist = -zDist
			}
			onMesh = xyDistSq <= targetXYTolerance*targetXYTolerance && zDist <= targetZTolerance
		}
	}

	s.targetCache.pos = raw
	s.targetCache.pos2D = Vec2{X: raw.X, Y: raw.Y}
	s.targetCache.navPos = projected
	s.targetCache.onMesh = onMesh
	s.targetCache.lastUpdate = s.worldSeconds
}

func (s *Sim) systemBuildGrid() {
	s.grid.Reset()
	st := s.store
	for i := range st.pos {
		if !st.alive[i] {
			continue
		}
		s.grid.Insert(AgentID(i), st.pos[i])
	}
}
