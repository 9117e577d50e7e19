package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"hordesim.ai/internal/sim/swarm"
)

// SQLiteIndex records per-tick telemetry rows off-thread. Writes are
// buffered on a channel and drained by a single writer goroutine, so
// the sim loop never blocks on disk.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan swarm.Telemetry
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan swarm.Telemetry, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			frame_index INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			step_ms REAL NOT NULL,
			target_cache_ms REAL NOT NULL,
			build_grid_ms REAL NOT NULL,
			policy_ms REAL NOT NULL,
			perception_ms REAL NOT NULL,
			path_replan_ms REAL NOT NULL,
			separation_ms REAL NOT NULL,
			follow_ms REAL NOT NULL,
			integrate_ms REAL NOT NULL,
			repaths_used INTEGER NOT NULL,
			los_checks_used INTEGER NOT NULL,
			direct_chase INTEGER NOT NULL,
			yielding INTEGER NOT NULL,
			avg_path_age_sec REAL NOT NULL,
			path_cache_entries INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// WriteTick implements swarm.TickSink. Full buffers drop rows rather
// than stalling the tick.
func (s *SQLiteIndex) WriteTick(tm swarm.Telemetry) error {
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- tm:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Dropped reports rows lost to backpressure.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) loop() {
	for tm := range s.ch {
		_, _ = s.db.Exec(
			`INSERT OR REPLACE INTO ticks (
				tick, frame_index, agents, step_ms,
				target_cache_ms, build_grid_ms, policy_ms, perception_ms,
				path_replan_ms, separation_ms, follow_ms, integrate_ms,
				repaths_used, los_checks_used, direct_chase, yielding,
				avg_path_age_sec, path_cache_entries
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			tm.Tick, tm.FrameIndex, tm.Agents, tm.StepMS,
			tm.Stage.TargetCacheMS, tm.Stage.BuildGridMS, tm.Stage.PolicyMS, tm.Stage.PerceptionMS,
			tm.Stage.PathReplanMS, tm.Stage.SeparationMS, tm.Stage.FollowMS, tm.Stage.IntegrateMS,
			tm.RepathsUsed, tm.LOSChecksUsed, tm.DirectChaseCount, tm.YieldingCount,
			tm.AvgPathAgeSec, tm.PathCacheEntries,
		)
	}
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// TickSummary is an aggregate over a stored run, used by cmd/replay.
type TickSummary struct {
	Ticks          int
	Agents         int
	AvgStepMS      float64
	MaxStepMS      float64
	TotalRepaths   int
	TotalLOSChecks int
	MaxLOSChecks   int
	DirectChase    int
}

// Summarize reads the ticks table back into an aggregate.
func Summarize(path string) (TickSummary, error) {
	var out TickSummary
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return out, err
	}
	defer db.Close()

	row := db.QueryRow(`SELECT
		COUNT(*),
		COALESCE(MAX(agents), 0),
		COALESCE(AVG(step_ms), 0),
		COALESCE(MAX(step_ms), 0),
		COALESCE(SUM(repaths_used), 0),
		COALESCE(SUM(los_checks_used), 0),
		COALESCE(MAX(los_checks_used), 0),
		COALESCE(SUM(direct_chase), 0)
		FROM ticks`)
	if err := row.Scan(&out.Ticks, &out.Agents, &out.AvgStepMS, &out.MaxStepMS,
		&out.TotalRepaths, &out.TotalLOSChecks, &out.MaxLOSChecks, &out.DirectChase); err != nil {
		return out, err
	}
	return out, nil
}
