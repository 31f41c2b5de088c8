package sim

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// RunContext holds the identity of the run currently on the sim loop.
// Sinks read it to tag output and the log handler samples it per record,
// so reads take an RLock while the tick counter stays atomic.
type RunContext struct {
	mu        sync.RWMutex
	runID     string
	scenario  string
	preset    string
	startedAt time.Time
	tick      atomic.Uint64
}

// NewRunContext creates an empty run context.
func NewRunContext() *RunContext {
	return &RunContext{}
}

// Begin installs a new run identity and rewinds the tick counter.
func (rc *RunContext) Begin(runID, scenario, preset string, startedAt time.Time) {
	rc.mu.Lock()
	rc.runID = runID
	rc.scenario = scenario
	rc.preset = preset
	rc.startedAt = startedAt
	rc.mu.Unlock()
	rc.tick.Store(0)
}

// End clears the run identity.
func (rc *RunContext) End() {
	rc.mu.Lock()
	rc.runID = ""
	rc.scenario = ""
	rc.preset = ""
	rc.startedAt = time.Time{}
	rc.mu.Unlock()
}

// RunID returns the current run ID, empty when no run is active.
func (rc *RunContext) RunID() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.runID
}

// Scenario returns the current scenario name.
func (rc *RunContext) Scenario() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.scenario
}

// Preset returns the current preset name.
func (rc *RunContext) Preset() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.preset
}

// StartedAt returns the wall-clock start of the current run.
func (rc *RunContext) StartedAt() time.Time {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.startedAt
}

// SetTick publishes the tick the sim loop is on.
func (rc *RunContext) SetTick(t uint64) {
	rc.tick.Store(t)
}

// Tick returns the last published tick.
func (rc *RunContext) Tick() uint64 {
	return rc.tick.Load()
}

// LogAttrs returns the attributes the context handler stamps onto log
// records. Nil when no run is active.
func (rc *RunContext) LogAttrs() []slog.Attr {
	rc.mu.RLock()
	id := rc.runID
	rc.mu.RUnlock()

	if id == "" {
		return nil
	}
	return []slog.Attr{
		slog.String("run_id", id),
		slog.Uint64("tick", rc.tick.Load()),
	}
}
