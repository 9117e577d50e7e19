package swarm

import "math"

const (
	separationChunkStagger = 3
	separationZBand        = 120.0
	separationSkin         = 10.0

	separationMidDist = 1500.0
	separationFarDist = 3000.0
)

// systemSeparation accumulates a local push vector per agent from the
// grid, with a density-adaptive neighbor cap. Distant agents run at a
// reduced cadence on top of the chunk stagger.
func (s *Sim) systemSeparation() {
	params := s.params
	frameIdx := s.frameIndex

	queryR := params.NeighborRadius
	queryAreaM2 := math.Max(1e-6, math.Pi*queryR*queryR*1e-4)
	midSq := separationMidDist * separationMidDist
	farSq := separationFarDist * separationFarDist

	capFromDensity := func(density float64) int {
		switch {
		case density >= policyVeryDense:
			return maxInt(4, params.MaxNeighbors/2)
		case density >= policyDense:
			return maxInt(4, (params.MaxNeighbors*3)/4)
		default:
			return params.MaxNeighbors
		}
	}

	st := s.store
	s.forEachChunk(true, func(lo, hi int) {
		if !s.shouldProcessChunk(lo, separationChunkStagger) {
			return
		}
		for i := lo; i < hi; i++ {
			if !st.alive[i] {
				continue
			}
			h := agentHash(AgentID(i))
			d2 := st.policy[i].DistToTarget2DSq

			// Per-agent distance-band decimation.
			if d2 > farSq {
				if (frameIdx+(h&3))&3 != 0 {
					continue
				}
			} else if d2 > midSq {
				if (frameIdx+(h&1))&1 != 0 {
					continue
				}
			}
			if mask := st.policy[i].SeparationMask; mask != 0 && (frameIdx+(h&mask))&mask != 0 {
				continue
			}

			selfPos := st.pos[i]
			estDensity := st.policy[i].EstimatedDensity
			maxNbr := capFromDensity(estDensity)
			if maxNbr <= 0 {
				st.sep[i].Separation = Vec3{}
				st.sep[i].NeighborCount = 0
				st.sep[i].LocalDensity = 0
				continue
			}

			var sep Vec3
			count := 0
			self := AgentID(i)
			sumR := 2*params.AgentRadius + separationSkin
			sumRSq := sumR * sumR

			s.grid.VisitNearby(selfPos, queryR, separationZBand, maxNbr, func(e GridEntry) bool {
				if e.ID == self {
					return true
				}
				dx := e.Pos.X - selfPos.X
				dy := e.Pos.Y - selfPos.Y
				ds2 := dx*dx + dy*dy
				if ds2 > 1e-8 && ds2 < sumRSq {
					d := math.Sqrt(ds2)
					invd := 1 / (d + 1e-8)
					nx := -dx * invd
					ny := -dy * invd
					over := sumR - d
					strength := 1 - d/sumR
					mag := over*8 + strength*25
					sep.X += nx * mag
					sep.Y += ny * mag
				}
				count++
				return true
			})

			density := estDensity
			if count > 0 {
				density = float64(count) / queryAreaM2
			}

			st.sep[i].Separation = sep
			st.sep[i].NeighborCount = count
			st.sep[i].LocalDensity = density
		}
	})
}
