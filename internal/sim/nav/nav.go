// Package nav declares the navigation and physics services the swarm
// core consumes. Implementations live elsewhere (planemesh provides a
// grid-walkability mesh for servers and tests).
package nav

// Vec3 mirrors the core's vector layout so implementations do not
// import the swarm package.
type Vec3 struct {
	X, Y, Z float64
}

// PathMode selects the solver flavor for asynchronous queries.
type PathMode int

const (
	PathModeRegular PathMode = iota
	PathModeHierarchical
)

// Mesh is the navmesh service. Absent (nil) services fail open: the
// stage that needed them is a no-op for that tick.
type Mesh interface {
	// ProjectPoint returns the nearest on-mesh point within an AABB
	// extent of p, and whether one exists.
	ProjectPoint(p, extent Vec3) (Vec3, bool)

	// Raycast walks the mesh in a straight line from from to to.
	// It returns the hit point and true when the line is blocked.
	Raycast(from, to Vec3) (Vec3, bool)

	// FindPath solves synchronously. A nil or short (<2 points) result
	// means no path.
	FindPath(from, to Vec3) []Vec3

	// FindPathAsync solves off the caller's goroutine and invokes cb
	// exactly once with the result (nil on failure). cb may fire on any
	// goroutine; callers marshal to their own thread.
	FindPathAsync(from, to Vec3, mode PathMode, cb func(pts []Vec3))

	// AgentConfig reports the mesh's default agent radius and height.
	AgentConfig() (radius, height float64)
}

// TraceHit describes a blocking physics hit.
type TraceHit struct {
	Pos   Vec3
	Actor string
}

// Physics provides the line-trace fallback used for line-of-sight when
// an endpoint is off-mesh.
type Physics interface {
	// LineTrace returns the first blocking hit between from and to,
	// and whether anything was hit at all.
	LineTrace(from, to Vec3) (TraceHit, bool)
}
