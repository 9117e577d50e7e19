package swarm

var losProjectExtent = Vec3{X: 50, Y: 50, Z: 100}

// systemPerception maintains per-agent line-of-sight to the target under
// the global checks-per-frame budget, phased per agent so refreshes do
// not bunch up on one frame.
func (s *Sim) systemPerception(dt float64) {
	s.losChecksUsed.reset()

	params := s.params
	targetPos := s.targetCache.pos
	targetNav := s.targetCache.navPos
	targetOnMesh := s.targetCache.onMesh
	zOffset := Vec3{Z: params.LOSHeightOffset}
	chaseRangeSq := params.DirectChaseRange * params.DirectChaseRange
	frameIdx := s.frameIndex

	computeLOS := func(from Vec3) bool {
		if targetOnMesh && s.mesh != nil {
			if fromNavPt, ok := s.mesh.ProjectPoint(toNav(from), toNav(losProjectExtent)); ok {
				_, blocked := s.mesh.Raycast(fromNavPt, toNav(targetNav))
				return !blocked
			}
		}
		if s.phys == nil {
			// No physics fallback this tick; treat as visible rather
			// than flapping state off.
			return true
		}
		hit, blocked := s.phys.LineTrace(toNav(from.Add(zOffset)), toNav(targetPos.Add(zOffset)))
		return !blocked || hit.Actor == targetActorTag
	}

	st := s.store
	s.forEachChunk(true, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if !st.alive[i] {
				continue
			}
			st.stamp[i].DidReplan = false
			st.stamp[i].DidLOSRefresh = false

			st.sense[i].TargetPos = targetPos
			st.los[i].TimeSinceRefresh += dt

			senseThisFrame := frameIdx&st.policy[i].SenseMask == 0
			inChaseRange := st.policy[i].DistToTarget2DSq <= chaseRangeSq

			if !senseThisFrame || !inChaseRange {
				st.sense[i].LOS = st.los[i].HasLOS
				st.sense[i].LOSUpdated = false
				continue
			}

			h := agentHash(AgentID(i))
			phase := float64(h&0xFF) * (params.LOSRefreshSeconds / 256)
			due := st.los[i].TimeSinceRefresh+phase >= params.LOSRefreshSeconds
			losNow := st.los[i].HasLOS

			if due && s.losChecksUsed.tryAcquire(params.LOSChecksPerFrameBudget) {
				st.los[i].TimeSinceRefresh = 0
				losNow = computeLOS(st.pos[i])
				st.los[i].HasLOS = losNow
				st.stamp[i].DidLOSRefresh = true
			}

			st.sense[i].LOS = losNow
			st.sense[i].LOSUpdated = st.stamp[i].DidLOSRefresh
		}
	})
}

// targetActorTag is the actor name the physics service reports when a
// trace ends on the target itself.
const targetActorTag = "target"
