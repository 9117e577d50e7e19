package swarm

import "sync"

// pathKey quantizes a (start, goal) pair onto the coarse replan lattice
// so agents sharing a start/goal cell coalesce onto one solve.
type pathKey struct {
	sx, sy, sz int32
	gx, gy, gz int32
}

type cachedPath struct {
	points     *PathPoints
	insertTime float64
}

// pathCache holds recently solved shared paths with a TTL, an LRU bound
// by insert time, and a per-key solve cooldown against thrashing.
type pathCache struct {
	mu         sync.Mutex
	entries    map[pathKey]*cachedPath
	lastSolve  map[pathKey]float64
	maxEntries int
	ttl        float64
	cooldown   float64

	cellSize  float64
	zCellSize float64
	invCell   float64
	invZCell  float64
}

func newPathCache(cfg Config) *pathCache {
	return &pathCache{
		entries:    make(map[pathKey]*cachedPath),
		lastSolve:  make(map[pathKey]float64),
		maxEntries: cfg.PathCacheMaxEntries,
		ttl:        cfg.PathCacheTTL,
		cooldown:   cfg.KeySolveCooldown,
		cellSize:   cfg.PathCacheCellSize,
		zCellSize:  cfg.PathCacheZCellSize,
		invCell:    1 / cfg.PathCacheCellSize,
		invZCell:   1 / cfg.PathCacheZCellSize,
	}
}

func (c *pathCache) quantize(p Vec3) (int32, int32, int32) {
	return floorDiv(p.X, c.invCell), floorDiv(p.Y, c.invCell), floorDiv(p.Z, c.invZCell)
}

func (c *pathCache) key(start, goal Vec3) pathKey {
	sx, sy, sz := c.quantize(start)
	gx, gy, gz := c.quantize(goal)
	return pathKey{sx, sy, sz, gx, gy, gz}
}

func (c *pathCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// lookupFresh returns the cached list when it is within TTL and usable,
// refreshing its insert time.
func (c *pathCache) lookupFresh(k pathKey, now float64) *PathPoints {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[k]
	if e == nil {
		return nil
	}
	if now-e.insertTime > c.ttl || e.points.Len() < 2 {
		return nil
	}
	e.insertTime = now
	return e.points
}

// solveCooldownActive reports whether this key solved too recently to
// try again.
func (c *pathCache) solveCooldownActive(k pathKey, now float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lastSolve[k]
	return ok && now-t < c.cooldown
}

// insert publishes a freshly solved list, evicting the oldest entry when
// the cache is over budget, and stamps the key's solve time.
func (c *pathCache) insert(k pathKey, pts *PathPoints, now float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = &cachedPath{points: pts, insertTime: now}
	c.lastSolve[k] = now
	for len(c.entries) > c.maxEntries {
		var oldest pathKey
		oldestT := maxFloat
		for key, e := range c.entries {
			if e.insertTime < oldestT {
				oldestT = e.insertTime
				oldest = key
			}
		}
		delete(c.entries, oldest)
	}
}
