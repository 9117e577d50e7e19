package swarm

import "math"

const (
	followChunkStagger = 2

	// Target movement (2D) that justifies an async replan.
	replanTargetMoveThreshold = 120.0
	// Beyond this distance the async solver runs in hierarchical mode.
	hierarchicalPathDistance = 3000.0
	// Cooldown stamped on an agent that just scheduled an async replan.
	asyncReplanCooldownSec = 0.25
)

// pathFresh reports whether the agent's current path is usable this
// tick. The age ceiling scales with remaining travel distance so far
// agents tolerate older paths.
func (s *Sim) pathFresh(i int, selfPos Vec3) bool {
	st := s.store
	path := &st.path[i]

	var dist float64
	if path.HasPath {
		dist = Dist2D(selfPos, path.LastGoal)
	} else {
		dist = Dist2D(selfPos, st.sense[i].TargetPos)
	}

	travelMs := dist / math.Max(1, s.params.MaxSpeed*0.60) * 1000
	maxPathAgeMs := clampf(travelMs, 2000, 10000)

	return path.HasPath &&
		path.PathAge*1000 <= maxPathAgeMs &&
		path.Index >= 0 &&
		path.Index < path.numPoints()
}

// nearestPointIndex2D seeks the closest path point to pos, never
// returning the start point (index 0 is behind a freshly adopted path).
func nearestPointIndex2D(pts []Vec3, pos Vec3) int {
	if len(pts) <= 1 {
		return 0
	}
	best := 1
	bestD := maxFloat
	for k := 1; k < len(pts); k++ {
		if d := Dist2DSq(pts[k], pos); d < bestD {
			bestD = d
			best = k
		}
	}
	return best
}

// systemFollow turns each agent's path into a steering direction and
// weight: waypoint advance, direct chase on LOS near the target, a
// 3-point curvature window, and lateral lane spread. Agents whose path
// went stale adopt bucket-shared async results or schedule a new solve.
// Runs single-threaded; it owns the bucket gate and chase counters.
func (s *Sim) systemFollow(dt float64) {
	params := s.params
	frameIdx := s.frameIndex
	bucketResults := s.buckets.beginFrame(frameIdx)

	st := s.store
	s.forEachChunk(false, func(lo, hi int) {
		if !s.shouldProcessChunk(lo, followChunkStagger) {
			return
		}
		for i := lo; i < hi; i++ {
			if !st.alive[i] {
				continue
			}
			path := &st.path[i]
			selfPos := st.pos[i]

			if path.HasPath && path.Index >= path.numPoints() {
				path.HasPath = false
			}

			fresh := s.pathFresh(i, selfPos)
			bKey := makeBucketKey(selfPos, s.cfg.FollowBucketCellSize)

			if !fresh {
				if pts, ok := bucketResults[bKey]; ok {
					// Bucket results are per-bucket; copy to a fresh
					// shared list so this agent seeks independently.
					own := make([]Vec3, len(pts))
					copy(own, pts)
					shared := newPathPoints(own)
					path.Points = shared
					idx := nearestPointIndex2D(own, selfPos)
					path.Index = clampInt(idx, 1, maxInt(1, shared.Len()-1))
					path.HasPath = shared.Len() > 1
					path.PathAge = 0
					path.LastGoal = st.sense[i].TargetPos
					fresh = path.HasPath
				}
			}

			if !fresh {
				targetMoved2D := Dist2D(st.sense[i].TargetPos, path.LastGoal)
				shouldReplan := !path.HasPath ||
					path.Index >= path.numPoints() ||
					targetMoved2D >= replanTargetMoveThreshold

				if shouldReplan && path.Cooldown <= 0 && frameIdx&st.policy[i].FollowMask == 0 && s.mesh != nil {
					distToGoal := Dist2D(selfPos, st.sense[i].TargetPos)
					useHier := distToGoal > hierarchicalPathDistance
					if s.buckets.tryRequest(s.mesh, selfPos, st.sense[i].TargetPos, bKey, useHier) {
						path.Cooldown = asyncReplanCooldownSec
						st.stamp[i].DidReplan = true
						s.repathsUsed.tryAcquire(params.RepathsPerFrameBudget)
					}
				}

				path.PathAge += dt
				if path.Cooldown > 0 {
					path.Cooldown = math.Max(0, path.Cooldown-dt)
				}
				s.avgPathAge += path.PathAge
				s.avgPathAgeN++
				continue
			}

			target := path.Points.At(path.Index)

			// Waypoint advance.
			if Dist2DSq(selfPos, target) <= params.WaypointAcceptanceRadius*params.WaypointAcceptanceRadius {
				path.Index = clampInt(path.Index+1, 0, maxInt(0, path.numPoints()-1))
				path.PathAge = 0
				if path.Index < path.numPoints() {
					target = path.Points.At(path.Index)
				}
			}

			onLastSegment := path.numPoints() <= 2 ||
				path.Index >= maxInt(1, path.numPoints()-2)
			inRange := Dist2DSq(selfPos, st.sense[i].TargetPos) <=
				params.DirectChaseRange*params.DirectChaseRange
			direct := st.sense[i].LOS && onLastSegment && inRange

			if direct {
				target = st.sense[i].TargetPos
				path.LastGoal = st.sense[i].TargetPos
				st.window[i].Valid = false
				s.directChase.Add(1)
			} else if frameIdx&st.policy[i].FollowMask == 0 {
				s.buildWindow(i)
			}

			distToTarget := Dist2D(selfPos, target)
			pathDir := target.Sub(selfPos).SafeNormal2D()

			// Lane spread: offset the waypoint laterally so a column of
			// agents fans out over long straights.
			if !direct && distToTarget > params.PathSpreadMinDistance {
				clamped := math.Min(distToTarget, params.PathSpreadMaxDistance)
				alpha := (clamped - params.PathSpreadMinDistance) /
					math.Max(1, params.PathSpreadMaxDistance-params.PathSpreadMinDistance)
				spread := params.PathSpreadMaxOffset * alpha * st.agent[i].LaneMag * st.agent[i].LaneSign
				if spread != 0 {
					t2d := pathDir.SafeNormal2D()
					right := Vec3{X: -t2d.Y, Y: t2d.X}
					offsetTarget := target.Add(right.Scale(spread))
					pathDir = offsetTarget.Sub(selfPos).SafeNormal2D()
				}
			}

			dens := st.sep[i].LocalDensity
			deemph := 1.0
			if dens >= policyVeryDense {
				deemph = 0.6
			} else if dens >= policyDense {
				deemph = 0.8
			}

			st.sep[i].PathDir = pathDir
			st.sep[i].PathWeight = params.PathFollowWeight * deemph

			path.PathAge += dt
			if path.Cooldown > 0 {
				path.Cooldown = math.Max(0, path.Cooldown-dt)
			}
			s.avgPathAge += path.PathAge
			s.avgPathAgeN++
		}
	})
}

// buildWindow captures three consecutive path points and derives the 2D
// tangent plus a curvature magnitude (sin of the bend over segment
// length).
func (s *Sim) buildWindow(i int) {
	st := s.store
	path := &st.path[i]
	num := path.numPoints()
	if num == 0 {
		return
	}
	clampIdx := func(idx int) int { return clampInt(idx, 0, maxInt(0, num-1)) }

	i0 := clampIdx(path.Index)
	i1 := clampIdx(i0 + 1)
	i2 := clampIdx(i1 + 1)

	w := &st.window[i]
	w.P0 = path.Points.At(i0)
	w.P1 = path.Points.At(i1)
	w.P2 = path.Points.At(i2)

	v01 := Vec2{X: w.P1.X - w.P0.X, Y: w.P1.Y - w.P0.Y}
	v12 := Vec2{X: w.P2.X - w.P1.X, Y: w.P2.Y - w.P1.Y}
	l01Sq := v01.X*v01.X + v01.Y*v01.Y
	l12Sq := v12.X*v12.X + v12.Y*v12.Y

	var t2d Vec2
	curv := 0.0
	if l01Sq > 1e-6 {
		invL01 := 1 / math.Sqrt(l01Sq)
		t2d = Vec2{X: v01.X * invL01, Y: v01.Y * invL01}
		if l12Sq > 1e-6 {
			invL12 := 1 / math.Sqrt(l12Sq)
			cross := v01.X*v12.Y - v01.Y*v12.X
			sinTh := math.Abs(cross) * invL01 * invL12
			curv = sinTh * invL01
		}
	}

	w.Tangent2D = Vec3{X: t2d.X, Y: t2d.Y}
	w.Curvature = curv
	w.Valid = true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
