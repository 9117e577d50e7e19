package swarm

// ApplyMoveTargets is a minimal motor: it teleports each agent to its
// published MoveTarget center. A real character controller would
// consume MoveTarget instead; tests and the demo server use this.
func (s *Sim) ApplyMoveTargets() {
	st := s.store
	for i := range st.pos {
		if !st.alive[i] {
			continue
		}
		st.pos[i] = st.move[i].Center
	}
}
