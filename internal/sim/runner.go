// Package sim is the simulation workbench: scenarios script a drive, the
// Runner advances the vehicle at the fixed tick rate and publishes run
// events to the dispatcher, and the Recorder keeps frames for replay.
package sim

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/stuntrig/vdyn/internal/dispatcher"
	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// RunnerConfig assembles a Runner.
type RunnerConfig struct {
	Vehicle vehicle.Config
	Preset  string // tuning name stamped on all run output

	SampleEvery uint64 // dispatch every Nth telemetry frame, default 1
	MaxTicks    uint64 // hard cap per run, 0 for none
	ReplayCap   int    // replay ring capacity in frames, default 30 s worth
	Realtime    bool   // pace the loop at the tick rate instead of free-running
}

// Result is what a finished run reports back to the caller.
type Result struct {
	RunID    string
	Scenario string
	Preset   string

	StartedAt time.Time
	EndedAt   time.Time     // simulated end: StartedAt + Ticks at the tick rate
	WallTime  time.Duration // how long the loop actually took

	Ticks      uint64
	Digest     string // sha256 over the packed per-tick chassis state
	TopSpeed   float64
	PeakGForce float64
	Upshifts   int
	Impacts    int

	Damage      vehicle.DamageState
	Diagnostics vehicle.Diagnostics
}

// Runner drives scenarios through the dynamics core at the fixed tick
// rate. One Runner serves many runs, one run at a time; each run gets a
// fresh vehicle and body so no state leaks between scenarios.
type Runner struct {
	vehicleCfg vehicle.Config
	preset     string

	disp   *dispatcher.Dispatcher
	runCtx *RunContext
	rec    *Recorder
	logger *slog.Logger

	sampleEvery uint64
	maxTicks    uint64
	realtime    bool

	tickDuration metric.Float64Histogram
	runs         metric.Int64Counter
}

// NewRunner wires a runner to its dispatcher. runCtx may be nil when no
// log stamping or sink tagging is wanted; a nil logger falls back to
// slog.Default.
func NewRunner(cfg RunnerConfig, disp *dispatcher.Dispatcher, runCtx *RunContext, logger *slog.Logger) (*Runner, error) {
	if disp == nil {
		return nil, errors.New("runner: dispatcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SampleEvery == 0 {
		cfg.SampleEvery = 1
	}
	if cfg.ReplayCap <= 0 {
		cfg.ReplayCap = int(30 * vehicle.TickRate)
	}

	r := &Runner{
		vehicleCfg:  cfg.Vehicle,
		preset:      cfg.Preset,
		disp:        disp,
		runCtx:      runCtx,
		rec:         NewRecorder(cfg.ReplayCap),
		logger:      logger,
		sampleEvery: cfg.SampleEvery,
		maxTicks:    cfg.MaxTicks,
		realtime:    cfg.Realtime,
	}

	m := meter()
	var err error

	r.tickDuration, err = m.Float64Histogram(
		"vdyn.sim.tick.duration",
		metric.WithDescription("Wall time spent simulating one tick"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	r.runs, err = m.Int64Counter(
		"vdyn.sim.runs",
		metric.WithDescription("Completed simulation runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}

	return r, nil
}

// Recorder returns the replay ring holding the most recent run's frames.
func (r *Runner) Recorder() *Recorder {
	return r.rec
}

// Run simulates one scenario start to finish. The run ends early when ctx
// is cancelled or the core reports an error; the run.end event is
// published either way so sinks can close out the run.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*Result, error) {
	script, err := ParseScript(sc.Script)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	w, err := sc.World()
	if err != nil {
		return nil, err
	}

	ticks := sc.Ticks()
	if ticks == 0 {
		return nil, fmt.Errorf("scenario %s: duration %v too short to simulate", sc.Name, sc.Duration)
	}
	if r.maxTicks > 0 && ticks > r.maxTicks {
		r.logger.Warn("scenario duration clamped to tick cap",
			slog.String("scenario", sc.Name),
			slog.Uint64("requested", ticks),
			slog.Uint64("cap", r.maxTicks))
		ticks = r.maxTicks
	}
	if d := script.Duration(); d > sc.Duration {
		r.logger.Warn("script runs past the scenario duration",
			slog.String("scenario", sc.Name),
			slog.Float64("script_end", d),
			slog.Float64("duration", sc.Duration))
	}

	// The runner owns the body so scripted impulses can write velocity
	// directly, the same way a host engine's collision response would.
	body := vehicle.NewRigidBody(r.vehicleCfg)
	veh, err := vehicle.New(r.vehicleCfg, vehicle.Dependencies{
		Body:      body,
		Raycaster: w,
		Surfaces:  w,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if err := veh.Reset(sc.Start, sc.StartOrientation()); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	wallStart := time.Now()

	if r.runCtx != nil {
		r.runCtx.Begin(runID, sc.Name, r.preset, startedAt)
		defer r.runCtx.End()
	}

	r.logger.Info("run starting",
		slog.String("scenario", sc.Name),
		slog.String("preset", r.preset),
		slog.Uint64("ticks", ticks))

	r.publish(dispatcher.Event{
		Topic:     dispatcher.TopicRunStart,
		RunID:     runID,
		Timestamp: startedAt,
		Run: &dispatcher.RunSummary{
			Scenario:  sc.Name,
			Preset:    r.preset,
			TickRate:  vehicle.TickRate,
			StartedAt: startedAt,
		},
	})

	res := &Result{
		RunID:     runID,
		Scenario:  sc.Name,
		Preset:    r.preset,
		StartedAt: startedAt,
	}

	var ticker *time.Ticker
	if r.realtime {
		ticker = time.NewTicker(tickInterval)
		defer ticker.Stop()
	}

	digest := sha256.New()
	var frame [digestFrameLen]byte

	steps := script.Steps()
	fired := make([]bool, len(steps))
	prevGear := 1

	var runErr error
	var tick uint64
	for tick = 0; tick < ticks; tick++ {
		t := float64(tick) * vehicle.TickDt
		in := script.InputAt(t)

		// One-shot impulses fire when their window opens.
		for i := range steps {
			st := &steps[i]
			if !st.HasImpulse || fired[i] || t < st.From {
				continue
			}
			fired[i] = true
			res.Impacts++

			vel, ang := body.Velocity()
			body.SetVelocity(vel.Add(st.ImpulseDir.Mul(st.ImpulseMag/r.vehicleCfg.Mass)), ang)
			severity := veh.ReportCollisionImpulse(st.ImpulseMag, st.ImpulseDir)

			r.publish(dispatcher.Event{
				Topic:     dispatcher.TopicImpact,
				RunID:     runID,
				Timestamp: tickTime(startedAt, tick),
				Impact: &dispatcher.Impact{
					Tick:     tick,
					Impulse:  st.ImpulseMag,
					Normal:   st.ImpulseDir,
					Severity: severity,
					Damage:   veh.Damage(),
				},
			})
		}

		tickStart := time.Now()
		if err := veh.Update(in, vehicle.TickDt); err != nil {
			runErr = fmt.Errorf("tick %d: %w", tick, err)
			break
		}
		r.tickDuration.Record(ctx, time.Since(tickStart).Seconds())

		tel := veh.GetTelemetry()

		packDigestFrame(frame[:], &tel)
		digest.Write(frame[:])

		if tel.Speed > res.TopSpeed {
			res.TopSpeed = tel.Speed
		}
		if tel.GForce > res.PeakGForce {
			res.PeakGForce = tel.GForce
		}
		if tel.Gear > prevGear && prevGear >= 1 {
			res.Upshifts++
		}
		prevGear = tel.Gear

		r.rec.Record(veh.Frame())

		if tick%r.sampleEvery == 0 && r.disp.HasHandler(dispatcher.TopicFrame) {
			snap := tel
			if err := r.disp.Dispatch(dispatcher.Event{
				Topic:     dispatcher.TopicFrame,
				RunID:     runID,
				Timestamp: tickTime(startedAt, tick),
				Frame:     &snap,
			}); err != nil {
				r.logger.Debug("frame event dropped", slog.String("error", err.Error()))
			}
		}

		if r.runCtx != nil {
			r.runCtx.SetTick(tick)
		}

		if r.realtime {
			select {
			case <-ctx.Done():
				runErr = ctx.Err()
			case <-ticker.C:
			}
		} else {
			select {
			case <-ctx.Done():
				runErr = ctx.Err()
			default:
			}
		}
		if runErr != nil {
			break
		}
	}

	res.Ticks = veh.Tick()
	res.EndedAt = tickTime(startedAt, res.Ticks)
	res.WallTime = time.Since(wallStart)
	res.Digest = hex.EncodeToString(digest.Sum(nil))
	res.Damage = veh.Damage()
	res.Diagnostics = veh.Diagnostics()

	r.publish(dispatcher.Event{
		Topic:     dispatcher.TopicRunEnd,
		RunID:     runID,
		Timestamp: res.EndedAt,
		Run: &dispatcher.RunSummary{
			Scenario:   sc.Name,
			Preset:     r.preset,
			TickRate:   vehicle.TickRate,
			StartedAt:  startedAt,
			EndedAt:    res.EndedAt,
			Ticks:      res.Ticks,
			Digest:     res.Digest,
			TopSpeed:   res.TopSpeed,
			PeakGForce: res.PeakGForce,
			Damage:     res.Damage,
		},
	})

	r.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("scenario", sc.Name)))

	if d := res.Diagnostics; d.RaycastFaults > 0 || d.SurfaceFaults > 0 {
		r.logger.Warn("sensing faults during run",
			slog.Uint64("raycast", d.RaycastFaults),
			slog.Uint64("surface", d.SurfaceFaults))
	}
	r.logger.Info("run complete",
		slog.String("scenario", sc.Name),
		slog.Uint64("ticks", res.Ticks),
		slog.String("digest", res.Digest[:12]),
		slog.Float64("top_speed", res.TopSpeed),
		slog.Float64("peak_g", res.PeakGForce),
		slog.Float64("damage", res.Damage.Overall),
		slog.Duration("wall_time", res.WallTime))

	return res, runErr
}

// publish routes lifecycle and impact events, logging failures. Frame
// events go through Dispatch directly so drops stay at debug level.
func (r *Runner) publish(e dispatcher.Event) {
	if !r.disp.HasHandler(e.Topic) {
		return
	}
	if err := r.disp.Dispatch(e); err != nil {
		r.logger.Error("event dispatch failed",
			slog.String("topic", e.Topic),
			slog.String("error", err.Error()))
	}
}

// tickTime converts a tick index to its simulated wall-clock instant.
func tickTime(startedAt time.Time, tick uint64) time.Time {
	return startedAt.Add(time.Duration(float64(tick) * vehicle.TickDt * float64(time.Second)))
}

// tickInterval is the realtime pacing period, one simulation tick of
// wall clock.
const tickInterval = time.Second / vehicle.TickRate

// digestFrameLen is the packed size of one digest frame: the tick counter
// and thirteen float64 channels (position, orientation, velocity, angular
// velocity).
const digestFrameLen = 8 * 14

// packDigestFrame serializes the chassis state channels that define a
// run's identity. Two runs match exactly when every packed frame matches.
func packDigestFrame(buf []byte, tel *vehicle.Telemetry) {
	le := binary.LittleEndian
	le.PutUint64(buf[0:], tel.Tick)
	off := 8
	put := func(f float64) {
		le.PutUint64(buf[off:], math.Float64bits(f))
		off += 8
	}
	put(tel.Position.X())
	put(tel.Position.Y())
	put(tel.Position.Z())
	put(tel.Orientation.W)
	put(tel.Orientation.X())
	put(tel.Orientation.Y())
	put(tel.Orientation.Z())
	put(tel.Velocity.X())
	put(tel.Velocity.Y())
	put(tel.Velocity.Z())
	put(tel.AngularVel.X())
	put(tel.AngularVel.Y())
	put(tel.AngularVel.Z())
}
