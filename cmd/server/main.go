package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	telemetrydb "hordesim.ai/internal/persistence/telemetry"
	"hordesim.ai/internal/protocol"
	"hordesim.ai/internal/sim/nav/planemesh"
	"hordesim.ai/internal/sim/swarm"
	"hordesim.ai/internal/sim/tuning"
	"hordesim.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		agents     = flag.Int("agents", 0, "agent count override (0 = tuning value)")
		seed       = flag.Int64("seed", 0, "spawn seed override (0 = tuning value)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite telemetry index")
		disableLog = flag.Bool("disable_log", false, "disable the jsonl telemetry log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	if *agents > 0 {
		tune.AgentCount = *agents
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	mesh := demoMesh()
	target := newLoopTarget(220, demoWaypoints())

	store := swarm.NewStore()
	rng := rand.New(rand.NewSource(tune.Seed))
	spawnRing(store, rng, tune.AgentCount, tune.Movement.AgentRadius)

	sim := swarm.New(tune.Params(), tune.Config(), store, mesh, mesh, target)

	var sinks multiSink
	if !*disableLog {
		w := telemetrydb.NewJSONLZstdWriter(filepath.Join(*dataDir, "telemetry"), "ticks")
		defer w.Close()
		sinks = append(sinks, jsonlSink{w})
	}
	if !*disableDB {
		idx, err := telemetrydb.OpenSQLite(filepath.Join(*dataDir, "telemetry.db"))
		if err != nil {
			logger.Fatalf("open telemetry db: %v", err)
		}
		defer idx.Close()
		sinks = append(sinks, idx)
	}
	if len(sinks) > 0 {
		sim.SetTickSink(sinks)
	}

	hub := ws.NewHub(tune.TickRateHz, store.Live, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", hub.Handler())
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sim.Telemetry())
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (agents=%d tick=%dHz)", *addr, store.Live(), tune.TickRateHz)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runLoop(ctx, sim, target, hub, tune.TickRateHz)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Printf("bye")
}

// runLoop drives the pipeline, the demo motor and target, and the
// observer feed at a fixed rate until ctx is done.
func runLoop(ctx context.Context, sim *swarm.Sim, target *loopTarget, hub *ws.Hub, hz int) {
	interval := time.Second / time.Duration(hz)
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			target.advance(dt)
			sim.Step(dt)
			sim.ApplyMoveTargets()

			tm := sim.Telemetry()
			frame := protocol.FrameMsg{
				Type:             protocol.TypeFrame,
				Tick:             tm.Tick,
				StepMS:           tm.StepMS,
				Agents:           tm.Agents,
				RepathsUsed:      tm.RepathsUsed,
				LOSChecksUsed:    tm.LOSChecksUsed,
				DirectChaseCount: tm.DirectChaseCount,
				YieldingCount:    tm.YieldingCount,
				AvgPathAgeSec:    tm.AvgPathAgeSec,
				StageMS: map[string]float64{
					"target_cache_ms": tm.Stage.TargetCacheMS,
					"build_grid_ms":   tm.Stage.BuildGridMS,
					"policy_ms":       tm.Stage.PolicyMS,
					"perception_ms":   tm.Stage.PerceptionMS,
					"path_replan_ms":  tm.Stage.PathReplanMS,
					"separation_ms":   tm.Stage.SeparationMS,
					"follow_ms":       tm.Stage.FollowMS,
					"integrate_ms":    tm.Stage.IntegrateMS,
				},
			}
			if every := hub.MinSampleEvery(); every > 0 {
				for _, s := range sim.Sample(every) {
					frame.Samples = append(frame.Samples, protocol.FrameSample{
						ID:       int32(s.ID),
						Pos:      s.Pos,
						Vel:      s.Vel,
						HasPath:  s.HasPath,
						HasLOS:   s.HasLOS,
						Yielding: s.Yielding,
						Stuck:    s.Stuck,
					})
				}
			}
			hub.Broadcast(frame)
		}
	}
}

// demoMesh is a 400m x 400m plane with a few wall obstacles.
func demoMesh() *planemesh.Mesh {
	return planemesh.New(planemesh.Config{
		MinX:     -20000,
		MinY:     -20000,
		Width:    40000,
		Height:   40000,
		CellSize: 200,
		Obstacles: []planemesh.Rect{
			{MinX: -6000, MinY: -400, MaxX: -2000, MaxY: 400},
			{MinX: 2000, MinY: 3000, MaxX: 2800, MaxY: 9000},
			{MinX: -1000, MinY: -9000, MaxX: 6000, MaxY: -8200},
		},
	})
}

func demoWaypoints() []swarm.Vec3 {
	return []swarm.Vec3{
		{X: 8000, Y: 0},
		{X: 8000, Y: 8000},
		{X: -8000, Y: 8000},
		{X: -8000, Y: -8000},
		{X: 8000, Y: -8000},
	}
}

// loopTarget walks waypoints at a fixed speed, looping forever.
type loopTarget struct {
	pos       swarm.Vec3
	waypoints []swarm.Vec3
	next      int
	speed     float64
}

func newLoopTarget(speed float64, wps []swarm.Vec3) *loopTarget {
	return &loopTarget{pos: wps[0], waypoints: wps, next: 1, speed: speed}
}

func (t *loopTarget) TargetPos() swarm.Vec3 { return t.pos }

func (t *loopTarget) advance(dt float64) {
	goal := t.waypoints[t.next]
	d := goal.Sub(t.pos)
	dist := math.Hypot(d.X, d.Y)
	step := t.speed * dt
	if dist <= step {
		t.pos = goal
		t.next = (t.next + 1) % len(t.waypoints)
		return
	}
	t.pos = t.pos.Add(d.Scale(step / dist))
}

// spawnRing scatters agents in an annulus around the origin.
func spawnRing(store *swarm.Store, rng *rand.Rand, n int, radius float64) {
	for i := 0; i < n; i++ {
		ang := rng.Float64() * 2 * math.Pi
		r := 4000 + rng.Float64()*12000
		pos := swarm.Vec3{X: math.Cos(ang) * r, Y: math.Sin(ang) * r}
		store.Spawn(pos, radius, rng)
	}
}

// multiSink fans WriteTick out to every configured sink.
type multiSink []swarm.TickSink

func (m multiSink) WriteTick(tm swarm.Telemetry) error {
	for _, s := range m {
		_ = s.WriteTick(tm)
	}
	return nil
}

type jsonlSink struct {
	w *telemetrydb.JSONLZstdWriter
}

func (s jsonlSink) WriteTick(tm swarm.Telemetry) error { return s.w.Write(tm) }
