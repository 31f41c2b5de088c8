package sim

import (
	"fmt"
	"sync"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// Recorder keeps the most recent replay frames of a run in a fixed ring.
// Once the ring is full the oldest frame is overwritten, so recording a
// long run never grows memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	frames []vehicle.ReplayFrame
	head   int // next write slot
	full   bool
}

// NewRecorder creates a recorder holding up to capacity frames. A
// capacity below one is raised to one.
func NewRecorder(capacity int) *Recorder {
	if capacity < 1 {
		capacity = 1
	}
	return &Recorder{
		frames: make([]vehicle.ReplayFrame, capacity),
	}
}

// Record stores a frame, evicting the oldest once the ring is full.
func (r *Recorder) Record(f vehicle.ReplayFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[r.head] = f
	r.head++
	if r.head == len(r.frames) {
		r.head = 0
		r.full = true
	}
}

// Frames returns a copy of the recorded frames, oldest first.
func (r *Recorder) Frames() []vehicle.ReplayFrame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]vehicle.ReplayFrame, r.head)
		copy(out, r.frames[:r.head])
		return out
	}
	out := make([]vehicle.ReplayFrame, 0, len(r.frames))
	out = append(out, r.frames[r.head:]...)
	out = append(out, r.frames[:r.head]...)
	return out
}

// Len reports the number of frames currently held.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.frames)
	}
	return r.head
}

// Cap reports the ring capacity.
func (r *Recorder) Cap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Clear empties the ring without releasing its storage.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.full = false
}

// Playback drives a vehicle through recorded frames in replay mode. The
// visit callback runs after each applied frame with the vehicle posed at
// that frame; a nil visit just scrubs to the last frame. The vehicle is
// always returned to live simulation, even when a frame fails to apply.
func Playback(v *vehicle.VehicleDynamics, frames []vehicle.ReplayFrame, visit func(*vehicle.VehicleDynamics) error) error {
	if err := v.BeginReplay(); err != nil {
		return fmt.Errorf("error entering replay: %w", err)
	}
	for i := range frames {
		if err := v.ApplyReplayFrame(frames[i]); err != nil {
			_ = v.EndReplay()
			return fmt.Errorf("error applying replay frame %d: %w", i, err)
		}
		if visit != nil {
			if err := visit(v); err != nil {
				_ = v.EndReplay()
				return err
			}
		}
	}
	if err := v.EndReplay(); err != nil {
		return fmt.Errorf("error leaving replay: %w", err)
	}
	return nil
}
