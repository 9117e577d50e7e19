package swarm

import "math"

const (
	yieldZTol          = 120.0
	yieldEnterMul      = 2.0
	yieldExitMul       = 2.4
	yieldDenseFrac     = 0.6
	yieldRelaxFrac     = 0.4
	yieldMinStopSpeed  = 10.0
	yieldMinHoldSec    = 0.40
	progressIntervalS  = 0.25
	progressMinMove2   = 400.0 // 20 units squared
	velocityInterpRate = 6.0
	curvatureSpeedK    = 120.0
)

var reprojectExtents = [3]Vec3{
	{X: 100, Y: 100, Z: 200},
	{X: 400, Y: 400, Z: 400},
	{X: 1200, Y: 1200, Z: 800},
}

// projectCascade tries the small/medium/large extents in order; the
// first on-mesh hit wins.
func (s *Sim) projectCascade(p Vec3) (Vec3, bool) {
	if s.mesh == nil {
		return Vec3{}, false
	}
	for _, ext := range reprojectExtents {
		if out, ok := s.mesh.ProjectPoint(toNav(p), toNav(ext)); ok {
			return fromNav(out), true
		}
	}
	return Vec3{}, false
}

// systemIntegrate blends separation and path steering into a velocity,
// applies curvature/density speed limits and the turn-rate cap, runs the
// yield gate near the target, and publishes each agent's MoveTarget.
func (s *Sim) systemIntegrate(dt float64) {
	params := s.params
	frameIdx := s.frameIndex
	targetPos := s.targetCache.pos
	targetPos2D := s.targetCache.pos2D

	st := s.store
	s.forEachChunk(true, func(lo, hi int) {
		var reprojectSlot uint32

		freeze := func(i int, selfPos Vec3, fwd2D Vec2) {
			st.sep[i].Separation = Vec3{}
			st.sep[i].PathDir = Vec3{}
			st.sep[i].PathWeight = 0
			if !st.agent[i].Velocity.IsNearlyZero() {
				st.agent[i].Velocity = Vec3{}
			}
			st.move[i] = MoveTarget{Center: selfPos, Forward: fwd2D}
		}

		for i := lo; i < hi; i++ {
			if !st.alive[i] {
				continue
			}
			ag := &st.agent[i]
			selfPos := st.pos[i]
			self2D := Vec2{X: selfPos.X, Y: selfPos.Y}

			// Progress tracking: flag agents that have not covered
			// ground recently.
			prog := &st.progress[i]
			prog.SinceProgressSec += dt
			if prog.SinceProgressSec >= progressIntervalS {
				dx := self2D.X - prog.LastPos2D.X
				dy := self2D.Y - prog.LastPos2D.Y
				if dx*dx+dy*dy >= progressMinMove2 {
					prog.LastPos2D = Vec3{X: self2D.X, Y: self2D.Y}
					prog.DistanceMoved2D = 0
					prog.LikelyStuck = false
				} else {
					prog.LikelyStuck = true
				}
				prog.SinceProgressSec = 0
			}

			fwd2D := st.facing[i].Normalized()
			if !s.pathFresh(i, selfPos) {
				freeze(i, selfPos, fwd2D)
				continue
			}

			// Yield gate near the target.
			dzToTarget := math.Abs(selfPos.Z - targetPos.Z)
			r := math.Max(100, params.AgentRadius)
			dxT := self2D.X - targetPos2D.X
			dyT := self2D.Y - targetPos2D.Y
			dT2 := dxT*dxT + dyT*dyT
			nearEnter := dT2 <= yieldEnterMul*r*yieldEnterMul*r && dzToTarget <= yieldZTol
			nearExit := dT2 <= yieldExitMul*r*yieldExitMul*r && dzToTarget <= yieldZTol

			maxNeigh := maxInt(1, params.MaxNeighbors)
			dense := st.sep[i].NeighborCount >= int(math.Ceil(yieldDenseFrac*float64(maxNeigh)))
			speed2D := ag.Velocity.Len2D()
			sepMag := st.sep[i].Separation.Len2D()
			slow := speed2D <= yieldMinStopSpeed
			pressured := sepMag >= params.MaxSpeed*0.25 && speed2D <= params.MaxSpeed*0.2

			enterYield := nearEnter && dense && (slow || pressured)

			ag.YieldTime = math.Max(0, ag.YieldTime-dt)

			if !ag.Yielding && enterYield {
				ag.Yielding = true
				ag.YieldTime = yieldMinHoldSec
			} else if ag.Yielding {
				crowdRelaxed := st.sep[i].NeighborCount < int(math.Ceil(yieldRelaxFrac*float64(maxNeigh)))
				targetFar := !nearExit
				if ag.YieldTime <= 0 && (crowdRelaxed || targetFar) {
					ag.Yielding = false
				}
			}

			if ag.Yielding {
				s.yieldingNow.Add(1)
				st.sep[i].Separation = Vec3{}
				st.sep[i].PathDir = Vec3{}
				st.sep[i].PathWeight = 0
				if !ag.Velocity.IsNearlyZero() {
					ag.Velocity = Vec3{}
				}
				desiredPos := selfPos
				if out, ok := s.projectCascade(desiredPos); ok {
					desiredPos = out
					ag.LastProjected = out
				}
				st.move[i] = MoveTarget{Center: desiredPos, Forward: fwd2D}
				continue
			}

			// Chunk decimation by local density.
			neighFrac := clampf(float64(st.sep[i].NeighborCount)/float64(maxNeigh), 0, 1)
			localDensityFrac := neighFrac
			if st.sep[i].LocalDensity > 0 {
				localDensityFrac = clampf(st.sep[i].LocalDensity/2.5, 0, 1)
			}

			period := uint32(1)
			if localDensityFrac >= 0.85 {
				period = 4
			} else if localDensityFrac >= 0.60 {
				period = 2
			}
			h := agentHash(AgentID(i))
			if period > 1 && (frameIdx+(h&(period-1)))%period != 0 {
				ag.Velocity = ag.Velocity.Scale(0.90)
				st.move[i] = MoveTarget{Center: selfPos, Forward: fwd2D}
				continue
			}

			st.sep[i].PathWeight *= 1 - 0.5*localDensityFrac

			desired := st.sep[i].Separation.Scale(params.SeparationWeight)
			desired = desired.Add(st.sep[i].PathDir.Scale(params.MaxSpeed * st.sep[i].PathWeight))
			desired2D := Vec3{X: desired.X, Y: desired.Y}

			curvScale := 1.0
			if st.window[i].Valid {
				curvScale = clampf(1/(1+curvatureSpeedK*st.window[i].Curvature), 0.55, 1)
			}
			densityScale := lerp(1, 0.6, localDensityFrac)
			maxSpeedThisFrame := params.MaxSpeed * curvScale * densityScale
			turnRateLimitDeg := lerp(720, 180, localDensityFrac)

			if desired2D.Len()*dt <= 0.5 {
				ag.Velocity = ag.Velocity.Scale(0.90)
				st.move[i] = MoveTarget{Center: selfPos, Forward: fwd2D}
				continue
			}

			cur := Vec3{X: ag.Velocity.X, Y: ag.Velocity.Y}
			blended := interpTo(cur, desired2D, dt, velocityInterpRate)
			ag.Velocity = blended.ClampToMaxLen(maxSpeedThisFrame)

			// Turn-rate cap: rotate facing toward the velocity direction
			// by at most the per-frame budget.
			targetDir := fwd2D
			if !ag.Velocity.IsNearlyZero() {
				n := ag.Velocity.SafeNormal2D()
				targetDir = Vec2{X: n.X, Y: n.Y}
			}
			turnCapRad := turnRateLimitDeg * math.Pi / 180 * dt
			cosCap := math.Cos(turnCapRad)
			dot := clampf(fwd2D.Dot(targetDir), -1, 1)
			if dot < cosCap {
				ang := math.Acos(dot)
				t := math.Min(1, turnCapRad/math.Max(1e-8, ang))
				nf := Vec2{
					X: fwd2D.X*(1-t) + targetDir.X*t,
					Y: fwd2D.Y*(1-t) + targetDir.Y*t,
				}.Normalized()
				if nf != (Vec2{}) {
					st.facing[i] = nf
					fwd2D = nf
				}
			} else {
				st.facing[i] = targetDir
				fwd2D = targetDir
			}

			desiredPos := selfPos.Add(ag.Velocity.Scale(dt))

			// Periodic navmesh reprojection, budgeted round-robin.
			lastProj := ag.LastProjected
			distXYSq := Dist2DSq(selfPos, lastProj)
			dz := math.Abs(selfPos.Z - lastProj.Z)
			speedNow := ag.Velocity.Len2D()
			xySlack := clampf(120-0.5*speedNow, 60, 120)
			zSlack := clampf(20-0.05*speedNow, 10, 20)

			needReproject := distXYSq > xySlack*xySlack || dz > zSlack
			slot := reprojectSlot
			reprojectSlot++
			haveBudget := (frameIdx+(slot&0x3))%4 == 0

			if needReproject && haveBudget {
				if out, ok := s.projectCascade(desiredPos); ok {
					desiredPos = out
					ag.LastProjected = out
				}
			}

			forward := fwd2D
			if !ag.Velocity.IsNearlyZero() {
				n := ag.Velocity.SafeNormal2D()
				forward = Vec2{X: n.X, Y: n.Y}
			}
			st.move[i] = MoveTarget{
				Center:         desiredPos,
				Forward:        forward,
				DistanceToGoal: ag.Velocity.Len() * dt,
			}
		}
	})
}
