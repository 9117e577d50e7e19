package swarm

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"hordesim.ai/internal/sim/nav"
)

// TargetSource yields the chase target's world position once per tick.
type TargetSource interface {
	TargetPos() Vec3
}

// TickSink receives the per-tick telemetry record. May be nil.
type TickSink interface {
	WriteTick(Telemetry) error
}

// Sim owns the staged per-tick pipeline that turns agent state plus a
// target position into integrated agent motion. Stages run in strict
// order; the parallel ones partition agents into fixed chunks.
type Sim struct {
	params Params
	cfg    Config

	store *Store
	grid  *Grid

	mesh   nav.Mesh    // may be nil; affected stages fail open
	phys   nav.Physics // may be nil
	target TargetSource

	worldSeconds float64
	frameIndex   uint32
	tick         atomic.Uint64

	targetCache targetCache
	pathCache   *pathCache
	buckets     *bucketReplanner

	losChecksUsed budgetCounter
	repathsUsed   budgetCounter

	directChase atomic.Int64
	yieldingNow atomic.Int64
	avgPathAge  float64 // accumulated in the single-threaded follow stage
	avgPathAgeN int
	telemetry   atomic.Value // Telemetry
	tickSink    TickSink

	workers int
}

// New builds a sim over store. mesh and phys may be nil.
func New(params Params, cfg Config, store *Store, mesh nav.Mesh, phys nav.Physics, target TargetSource) *Sim {
	cfg.fillDefaults()
	if params == (Params{}) {
		params = DefaultParams()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	s := &Sim{
		params:  params,
		cfg:     cfg,
		store:   store,
		grid:    NewGrid(cfg.CellSize),
		mesh:    mesh,
		phys:    phys,
		target:  target,
		workers: workers,
	}
	s.targetCache.lastUpdate = -1
	s.pathCache = newPathCache(cfg)
	s.buckets = newBucketReplanner(cfg)
	s.telemetry.Store(Telemetry{})
	return s
}

func (s *Sim) Store() *Store { return s.store }

func (s *Sim) Params() Params { return s.params }

// SetTickSink attaches a telemetry sink. Call before Run.
func (s *Sim) SetTickSink(sink TickSink) { s.tickSink = sink }

// FrameIndex is the current tick's frame index (floor(worldSeconds*60)).
func (s *Sim) FrameIndex() uint32 { return s.frameIndex }

// Step runs one full pipeline tick. dt is clamped to [0, 0.05].
func (s *Sim) Step(dt float64) {
	if dt < 0 {
		dt = 0
	}
	if dt > 0.05 {
		dt = 0.05
	}
	s.worldSeconds += dt
	s.frameIndex = uint32(s.worldSeconds * 60)

	stepStart := time.Now()
	var tm Telemetry
	tm.Tick = s.tick.Load()
	tm.FrameIndex = s.frameIndex
	tm.Agents = s.store.Live()

	s.directChase.Store(0)
	s.yieldingNow.Store(0)
	s.avgPathAge = 0
	s.avgPathAgeN = 0

	t0 := time.Now()
	s.systemTargetCache()
	tm.Stage.TargetCacheMS = msSince(t0)

	t0 = time.Now()
	s.systemBuildGrid()
	tm.Stage.BuildGridMS = msSince(t0)

	t0 = time.Now()
	s.systemPolicy()
	tm.Stage.PolicyMS = msSince(t0)

	// dt == 0 advances no timers and must leave positions, velocities
	// and path indices untouched, so the mutating stages sit out.
	if dt > 0 {
		t0 = time.Now()
		s.systemPerception(dt)
		tm.Stage.PerceptionMS = msSince(t0)

		t0 = time.Now()
		s.systemPathReplan(dt)
		tm.Stage.PathReplanMS = msSince(t0)

		t0 = time.Now()
		s.systemSeparation()
		tm.Stage.SeparationMS = msSince(t0)

		t0 = time.Now()
		s.systemFollow(dt)
		tm.Stage.FollowMS = msSince(t0)

		t0 = time.Now()
		s.systemIntegrate(dt)
		tm.Stage.IntegrateMS = msSince(t0)
	}

	tm.LOSChecksUsed = int(s.losChecksUsed.value())
	tm.RepathsUsed = int(s.repathsUsed.value())
	tm.DirectChaseCount = int(s.directChase.Load())
	tm.YieldingCount = int(s.yieldingNow.Load())
	if s.avgPathAgeN > 0 {
		tm.AvgPathAgeSec = s.avgPathAge / float64(s.avgPathAgeN)
	}
	tm.PathCacheEntries = s.pathCache.len()
	tm.StepMS = msSince(stepStart)
	s.telemetry.Store(tm)
	s.tick.Add(1)

	if s.tickSink != nil {
		_ = s.tickSink.WriteTick(tm)
	}
}

// Run drives Step on a fixed ticker until ctx is done.
func (s *Sim) Run(ctx context.Context, hz int) error {
	if hz <= 0 {
		hz = 60
	}
	interval := time.Second / time.Duration(hz)
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Step(dt)
		}
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

// forEachChunk partitions [0, store.Len()) into fixed chunks and runs fn
// for each on the worker pool. Chunk boundaries are stable for the life
// of a run, so per-chunk stagger phases stay put.
func (s *Sim) forEachChunk(parallel bool, fn func(lo, hi int)) {
	n := s.store.Len()
	if n == 0 {
		return
	}
	size := s.cfg.ChunkSize
	if !parallel || s.workers <= 1 || n <= size {
		for lo := 0; lo < n; lo += size {
			hi := lo + size
			if hi > n {
				hi = n
			}
			fn(lo, hi)
		}
		return
	}

	type span struct{ lo, hi int }
	work := make(chan span, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		work <- span{lo, hi}
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sp := range work {
				fn(sp.lo, sp.hi)
			}
		}()
	}
	wg.Wait()
}

// shouldProcessChunk staggers whole chunks across frames, phased by the
// chunk's first agent. Chunks are stable within a run.
func (s *Sim) shouldProcessChunk(lo int, n uint32) bool {
	if n <= 1 {
		return true
	}
	return s.frameIndex%n == agentHash(AgentID(lo))%n
}

// budgetCounter is a per-frame budget with compare-pre-add semantics:
// acquire never pushes the count past the cap.
type budgetCounter struct {
	v atomic.Int32
}

func (c *budgetCounter) reset() { c.v.Store(0) }

func (c *budgetCounter) value() int32 { return c.v.Load() }

func (c *budgetCounter) tryAcquire(limit int) bool {
	for {
		cur := c.v.Load()
		if int(cur) >= limit {
			return false
		}
		if c.v.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}
