// Package monitor reports harness liveness: a JSON status file external
// tooling can poll plus a periodic log line with the sim rate and the
// dispatcher queue depth.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/stuntrig/vdyn/internal/sim"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Logger     *slog.Logger
	Run        *sim.RunContext
	QueueDepth func() int // buffered dispatcher events awaiting delivery

	StatusPath string
	Interval   time.Duration
}

// Status is one sample of harness state, written to the status file.
type Status struct {
	Time       time.Time `json:"time"`
	RunID      string    `json:"runId,omitempty"`
	Scenario   string    `json:"scenario,omitempty"`
	Preset     string    `json:"preset,omitempty"`
	Tick       uint64    `json:"tick"`
	SimRate    float64   `json:"simRate"` // ticks per wall second since the last sample
	QueueDepth int       `json:"queueDepth"`
}

// Service samples harness state on its own ticker goroutine.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}

	lastRunID  string
	lastTick   uint64
	lastSample time.Time
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample captures the current harness state. The sim rate is the tick
// delta over the wall time since the previous sample of the same run;
// the first sample of a run reads zero.
func (s *Service) Sample() Status {
	now := time.Now()
	st := Status{Time: now.UTC()}

	if s.deps.QueueDepth != nil {
		st.QueueDepth = s.deps.QueueDepth()
	}

	if rc := s.deps.Run; rc != nil {
		st.RunID = rc.RunID()
		st.Scenario = rc.Scenario()
		st.Preset = rc.Preset()
		st.Tick = rc.Tick()
	}

	if st.RunID != "" && st.RunID == s.lastRunID && st.Tick >= s.lastTick {
		if elapsed := now.Sub(s.lastSample).Seconds(); elapsed > 0 {
			st.SimRate = float64(st.Tick-s.lastTick) / elapsed
		}
	}
	s.lastRunID = st.RunID
	s.lastTick = st.Tick
	s.lastSample = now

	return st
}

// WriteStatus replaces the status file with the given sample.
func (s *Service) WriteStatus(st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}
	if err := os.WriteFile(s.deps.StatusPath, data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "path", s.deps.StatusPath)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				st := s.Sample()

				if err := s.WriteStatus(st); err != nil {
					logger.Error("Error writing status file", "error", err)
				}

				if st.RunID == "" {
					continue
				}
				logger.Debug("sim status",
					"scenario", st.Scenario,
					"tick", st.Tick,
					"sim_rate", st.SimRate,
					"queue_depth", st.QueueDepth)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
