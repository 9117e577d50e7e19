package swarm

import (
	"sync"

	"hordesim.ai/internal/sim/nav"
)

// bucketKey is a coarse 2D cell used to coalesce long-range async path
// requests: every agent in a bucket shares one solve.
type bucketKey int64

func makeBucketKey(p Vec3, cell float64) bucketKey {
	x := floorDiv(p.X, 1/cell)
	y := floorDiv(p.Y, 1/cell)
	return bucketKey(int64(x)<<32 ^ int64(uint32(y)))
}

// bucketReplanner double-buffers asynchronous path results per bucket:
// callbacks write the pending inbox, and the follow stage consults an
// immutable snapshot swapped in at each new frame index.
type bucketReplanner struct {
	mu       sync.Mutex
	pending  map[bucketKey][]Vec3
	current  map[bucketKey][]Vec3
	inFlight map[bucketKey]bool

	lastSwapFrame   uint32
	swapped         bool
	scheduled       int
	lastBudgetFrame uint32
	budgetReset     bool

	maxPerFrame int
}

func newBucketReplanner(cfg Config) *bucketReplanner {
	return &bucketReplanner{
		pending:     make(map[bucketKey][]Vec3),
		current:     make(map[bucketKey][]Vec3),
		inFlight:    make(map[bucketKey]bool),
		maxPerFrame: cfg.MaxBucketsPerFrame,
	}
}

// beginFrame publishes pending results into the read snapshot and
// resets the per-frame scheduling budget when the frame index has
// advanced. The snapshot is retained until new results arrive, so a
// chunk staggered past the arrival frame still adopts them.
func (b *bucketReplanner) beginFrame(frameIdx uint32) map[bucketKey][]Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.swapped || b.lastSwapFrame != frameIdx {
		if len(b.pending) > 0 {
			b.current = b.pending
			b.pending = make(map[bucketKey][]Vec3)
		}
		b.lastSwapFrame = frameIdx
		b.swapped = true
	}
	if !b.budgetReset || b.lastBudgetFrame != frameIdx {
		b.scheduled = 0
		b.lastBudgetFrame = frameIdx
		b.budgetReset = true
	}
	return b.current
}

// tryRequest schedules an async solve for a bucket. Returns true when
// the bucket is already pending/in flight (no new work needed) or a new
// request was scheduled; false when the per-frame budget is exhausted.
func (b *bucketReplanner) tryRequest(mesh nav.Mesh, from, goal Vec3, key bucketKey, hierarchical bool) bool {
	b.mu.Lock()
	if _, ok := b.pending[key]; ok || b.inFlight[key] {
		b.mu.Unlock()
		return true
	}
	if b.scheduled >= b.maxPerFrame {
		b.mu.Unlock()
		return false
	}
	b.scheduled++
	b.inFlight[key] = true
	b.mu.Unlock()

	mode := nav.PathModeRegular
	if hierarchical {
		mode = nav.PathModeHierarchical
	}

	go func() {
		extent := nav.Vec3{X: 100, Y: 100, Z: 200}
		fromNavPt, okFrom := mesh.ProjectPoint(toNav(from), extent)
		goalNavPt, okGoal := mesh.ProjectPoint(toNav(goal), extent)
		if !okFrom || !okGoal {
			b.mu.Lock()
			delete(b.inFlight, key)
			b.mu.Unlock()
			return
		}
		mesh.FindPathAsync(fromNavPt, goalNavPt, mode, func(pts []nav.Vec3) {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.inFlight, key)
			// Late arrivals after the bucket was dropped are fine:
			// insert is idempotent and the next swap consumes it.
			if len(pts) < 2 {
				return
			}
			converted := make([]Vec3, len(pts))
			for i, p := range pts {
				converted[i] = fromNav(p)
			}
			b.pending[key] = converted
		})
	}()
	return true
}
