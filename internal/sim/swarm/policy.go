package swarm

// Density tiers in agents/m^2 and distance tiers (cm) for update masks.
const (
	policyDense     = 3.0
	policyVeryDense = 6.0

	policyNearDist = 1500.0
	policyFarDist  = 4000.0

	policyZBand = 120.0

	// Policy itself is staggered hard; downstream stages tolerate
	// slightly stale masks.
	policyChunkStagger = 30
)

func (s *Sim) systemPolicy() {
	gridEmpty := s.grid.IsEmpty()
	cellSize := s.grid.CellSize()

	areaM2PerCell := cellSize * cellSize * 1e-4
	if areaM2PerCell < 1e-3 {
		areaM2PerCell = 1e-3
	}
	countRadius := 0.6 * cellSize

	nearSq := policyNearDist * policyNearDist
	farSq := policyFarDist * policyFarDist
	targetPos := s.targetCache.pos

	st := s.store
	s.forEachChunk(true, func(lo, hi int) {
		if !s.shouldProcessChunk(lo, policyChunkStagger) {
			return
		}
		for i := lo; i < hi; i++ {
			if !st.alive[i] {
				continue
			}
			p := st.pos[i]
			d2 := Dist2DSq(p, targetPos)

			count := 0
			if !gridEmpty {
				count = s.grid.EstimateCountAt(p, countRadius, policyZBand)
			}
			density := 0.0
			if count > 0 {
				density = float64(count) / areaM2PerCell
			}

			var sepMask, followMask, senseMask uint32
			switch {
			case density >= policyVeryDense:
				sepMask = 0x3
			case density >= policyDense:
				sepMask = 0x1
			}
			switch {
			case d2 >= farSq:
				followMask, senseMask = 0x3, 0x7
			case d2 >= nearSq:
				followMask, senseMask = 0x1, 0x1
			}

			cooldownScale := 1.0
			if d2 >= nearSq {
				if d2 >= farSq {
					cooldownScale *= 2.0
				} else {
					cooldownScale *= 1.5
				}
			}
			if density >= policyVeryDense {
				cooldownScale *= 1.5
			}

			out := &st.policy[i]
			out.DistToTarget2DSq = d2
			out.EstimatedDensity = density
			out.CooldownScale = cooldownScale
			out.SeparationMask = sepMask
			out.FollowMask = followMask
			out.SenseMask = senseMask
		}
	})
}
