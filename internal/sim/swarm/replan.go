package swarm

import "math"

const (
	replanChunkStagger = 8

	// Forced repath when stuck at the end of a path without LOS.
	noLOSForceRepathSec = 0.25
	// Idle staleness: any path this old is replaced outright.
	pathIdleStalenessSec = 2.5
)

// computeCooldown is piecewise-linear over distance with a stable
// per-agent jitter so a crowd's repaths spread out in time.
func computeCooldown(dist float64, id AgentID) float64 {
	const (
		near, far     = 200.0, 8000.0
		cdNear, cdFar = 0.25, 7.5
	)
	var base float64
	switch {
	case dist <= near:
		base = cdNear
	case dist >= far:
		base = cdFar
	default:
		base = lerp(cdNear, cdFar, (dist-near)/(far-near))
	}
	seed := uint32(id) * 2654435761
	jitter := 0.75 + 0.5*(float64(seed)/float64(math.MaxUint32))
	return base * jitter
}

type pendingAgent struct {
	idx    int
	distSq float64
}

// systemPathReplan groups agents that need a new path by (startCell,
// goalCell), then solves one representative per group under the
// repaths-per-frame budget and publishes the shared list to all members.
// Runs single-threaded.
func (s *Sim) systemPathReplan(dt float64) {
	s.repathsUsed.reset()

	st := s.store
	params := s.params
	now := s.worldSeconds
	frameIdx := s.frameIndex

	haveProjectedGoal := s.targetCache.onMesh ||
		DistSq(s.targetCache.navPos, s.targetCache.pos) > 1.0
	finalGoal := s.targetCache.pos
	if haveProjectedGoal {
		finalGoal = s.targetCache.navPos
	}
	goalCellX, goalCellY, goalCellZ := s.pathCache.quantize(finalGoal)

	groups := make(map[pathKey][]pendingAgent)

	s.forEachChunk(false, func(lo, hi int) {
		if !s.shouldProcessChunk(lo, replanChunkStagger) {
			return
		}
		for i := lo; i < hi; i++ {
			if !st.alive[i] {
				continue
			}
			path := &st.path[i]
			selfPos := st.pos[i]

			path.PathAge += dt
			if path.Cooldown > 0 {
				path.Cooldown = math.Max(0, path.Cooldown-dt)
			}

			if frameIdx&st.policy[i].FollowMask != 0 || !haveProjectedGoal {
				continue
			}

			outOfPath := !path.HasPath || path.Index >= path.numPoints()
			cooldownElapsed := path.Cooldown <= 0
			lx, ly, lz := s.pathCache.quantize(path.LastGoal)
			cellUnchanged := lx == goalCellX && ly == goalCellY && lz == goalCellZ
			distSq2D := Dist2DSq(selfPos, finalGoal)
			goalMovedEnough := !cellUnchanged &&
				DistSq(path.LastGoal, finalGoal) > 4*st.radius[i]*st.radius[i]

			onLastSegment := path.HasPath &&
				(path.numPoints() <= 2 || path.Index >= maxInt(1, path.numPoints()-2))
			nearEnd := onLastSegment &&
				distSq2D <= params.EndOfPathRepathRadius*params.EndOfPathRepathRadius
			if nearEnd && !st.sense[i].LOS {
				path.NoLOSTime += dt
			} else {
				path.NoLOSTime = 0
			}
			forceRepathNearEndNoLOS := nearEnd && path.NoLOSTime > noLOSForceRepathSec

			idleStaleness := path.PathAge >= pathIdleStalenessSec

			if outOfPath || (cooldownElapsed && goalMovedEnough) || forceRepathNearEndNoLOS || idleStaleness {
				sx, sy, sz := s.pathCache.quantize(selfPos)
				k := pathKey{sx, sy, sz, goalCellX, goalCellY, goalCellZ}
				groups[k] = append(groups[k], pendingAgent{idx: i, distSq: distSq2D})
			}
		}
	})

	if len(groups) == 0 {
		return
	}

	for k, members := range groups {
		if int(s.repathsUsed.value()) >= params.RepathsPerFrameBudget {
			break
		}

		shared := s.pathCache.lookupFresh(k, now)

		if shared == nil {
			if s.pathCache.solveCooldownActive(k, now) {
				continue
			}
			if s.mesh == nil {
				continue
			}
			// Solve from the member closest to the goal.
			rep := members[0]
			for _, m := range members[1:] {
				if m.distSq < rep.distSq {
					rep = m
				}
			}
			pts := s.mesh.FindPath(toNav(st.pos[rep.idx]), toNav(finalGoal))
			if len(pts) < 2 {
				continue
			}
			if !s.repathsUsed.tryAcquire(params.RepathsPerFrameBudget) {
				break
			}
			converted := make([]Vec3, len(pts))
			for j, p := range pts {
				converted[j] = fromNav(p)
			}
			shared = newPathPoints(converted)
			s.pathCache.insert(k, shared, now)
		}

		for _, m := range members {
			path := &st.path[m.idx]
			path.Points = shared
			path.Index = 1
			path.HasPath = true
			path.LastGoal = finalGoal
			path.Cooldown = computeCooldown(math.Sqrt(m.distSq), AgentID(m.idx))
			path.PathAge = 0
			st.stamp[m.idx].DidReplan = true
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
