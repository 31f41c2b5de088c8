package archive

import (
	"fmt"
	"sync"
)

// memoryRun groups a run with all its time-series data.
type memoryRun struct {
	run     RunRecord
	samples []SampleRecord
	impacts []ImpactRecord
}

// memoryBackend keeps runs in process memory. Used in tests and when no
// durable archive is wanted.
type memoryBackend struct {
	mu   sync.RWMutex
	runs map[string]*memoryRun // keyed by RunID
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		runs: make(map[string]*memoryRun),
	}
}

// Init initializes the backend.
func (b *memoryBackend) Init() error {
	return nil
}

// Close cleans up resources.
func (b *memoryBackend) Close() error {
	return nil
}

// StartRun registers a new run.
func (b *memoryBackend) StartRun(run *RunRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.runs[run.RunID]; ok {
		return fmt.Errorf("run already started: %s", run.RunID)
	}
	b.runs[run.RunID] = &memoryRun{run: *run}
	return nil
}

// EndRun stores the run outcome.
func (b *memoryBackend) EndRun(run *RunRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	mr, ok := b.runs[run.RunID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.RunID)
	}
	mr.run.EndedAt = run.EndedAt
	mr.run.Ticks = run.Ticks
	mr.run.Digest = run.Digest
	mr.run.TopSpeed = run.TopSpeed
	mr.run.PeakGForce = run.PeakGForce
	mr.run.DamageOverall = run.DamageOverall
	mr.run.Summary = run.Summary
	return nil
}

// RecordSample appends one telemetry row.
func (b *memoryBackend) RecordSample(s *SampleRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	mr, ok := b.runs[s.RunID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, s.RunID)
	}
	mr.samples = append(mr.samples, *s)
	return nil
}

// RecordImpact appends one collision row.
func (b *memoryBackend) RecordImpact(i *ImpactRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	mr, ok := b.runs[i.RunID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, i.RunID)
	}
	mr.impacts = append(mr.impacts, *i)
	return nil
}

// RunByID returns a copy of the stored run.
func (b *memoryBackend) RunByID(runID string) (*RunRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	mr, ok := b.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	run := mr.run
	return &run, nil
}

// Samples returns copies of the stored telemetry rows.
func (b *memoryBackend) Samples(runID string) ([]SampleRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	mr, ok := b.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	cp := make([]SampleRecord, len(mr.samples))
	copy(cp, mr.samples)
	return cp, nil
}

// Impacts returns copies of the stored collisions.
func (b *memoryBackend) Impacts(runID string) ([]ImpactRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	mr, ok := b.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	cp := make([]ImpactRecord, len(mr.impacts))
	copy(cp, mr.impacts)
	return cp, nil
}
