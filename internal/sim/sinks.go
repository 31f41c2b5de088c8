package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/stuntrig/vdyn/internal/archive"
	"github.com/stuntrig/vdyn/internal/dispatcher"
	"github.com/stuntrig/vdyn/internal/influx"
	"github.com/stuntrig/vdyn/internal/stream"
	"github.com/stuntrig/vdyn/pkg/streaming"
)

// Sinks are the run event destinations. Any field may be nil; handlers
// only touch the sinks that are present.
type Sinks struct {
	Influx  *influx.Manager
	Stream  *stream.Client
	Archive archive.Backend
	Run     *RunContext // tags frame and impact output with scenario/preset
}

// RegisterHandlers wires the four run topics to the sinks. Lifecycle
// events run synchronously on the sim loop so run identity reaches the
// sinks before any data does; frames and impacts go through buffered
// queues and may drop under backpressure. Frame tags come from the live
// run context, so drain the dispatcher between runs.
func RegisterHandlers(d *dispatcher.Dispatcher, s Sinks, bufferSize int) {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	d.Register(dispatcher.TopicRunStart, s.runStart)
	d.Register(dispatcher.TopicFrame, s.frame, dispatcher.Buffered(bufferSize))
	d.Register(dispatcher.TopicImpact, s.impact, dispatcher.Buffered(bufferSize))
	d.Register(dispatcher.TopicRunEnd, s.runEnd)
}

func (s Sinks) tags() (scenario, preset string) {
	if s.Run == nil {
		return "", ""
	}
	return s.Run.Scenario(), s.Run.Preset()
}

func (s Sinks) runStart(e dispatcher.Event) error {
	var errs []error
	if s.Archive != nil {
		if err := s.Archive.StartRun(archive.NewRunRecord(e.RunID, e.Run)); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	if s.Stream != nil {
		if err := s.Stream.SendRunStart(streaming.RunStartPayload{
			RunID:     e.RunID,
			Scenario:  e.Run.Scenario,
			Preset:    e.Run.Preset,
			TickRate:  e.Run.TickRate,
			StartedAt: e.Run.StartedAt,
		}); err != nil {
			errs = append(errs, fmt.Errorf("stream: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s Sinks) frame(e dispatcher.Event) error {
	scenario, preset := s.tags()

	var errs []error
	if s.Influx != nil {
		if err := s.Influx.WriteTelemetry(context.Background(), e.RunID, scenario, preset, e.Timestamp, e.Frame); err != nil {
			errs = append(errs, fmt.Errorf("influx: %w", err))
		}
	}
	if s.Stream != nil {
		if err := s.Stream.SendFrame(streaming.TelemetryFramePayload{
			RunID:     e.RunID,
			Telemetry: *e.Frame,
		}); err != nil {
			errs = append(errs, fmt.Errorf("stream: %w", err))
		}
	}
	if s.Archive != nil {
		rec, err := archive.NewSampleRecord(e.RunID, e.Frame)
		if err == nil {
			err = s.Archive.RecordSample(rec)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s Sinks) impact(e dispatcher.Event) error {
	scenario, preset := s.tags()

	var errs []error
	if s.Influx != nil {
		if err := s.Influx.WriteImpact(context.Background(), e.RunID, scenario, preset, e.Timestamp, e.Impact); err != nil {
			errs = append(errs, fmt.Errorf("influx: %w", err))
		}
	}
	if s.Stream != nil {
		if err := s.Stream.SendImpact(streaming.ImpactEventPayload{
			RunID:    e.RunID,
			Tick:     e.Impact.Tick,
			Impulse:  e.Impact.Impulse,
			Normal:   e.Impact.Normal,
			Severity: e.Impact.Severity.String(),
			Damage:   e.Impact.Damage,
		}); err != nil {
			errs = append(errs, fmt.Errorf("stream: %w", err))
		}
	}
	if s.Archive != nil {
		if err := s.Archive.RecordImpact(archive.NewImpactRecord(e.RunID, e.Impact)); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s Sinks) runEnd(e dispatcher.Event) error {
	var errs []error
	if s.Influx != nil {
		if err := s.Influx.WriteRun(context.Background(), e.RunID, e.Run); err != nil {
			errs = append(errs, fmt.Errorf("influx: %w", err))
		}
	}
	if s.Stream != nil {
		if err := s.Stream.SendRunEnd(streaming.RunEndPayload{
			RunID:      e.RunID,
			EndedAt:    e.Run.EndedAt,
			Ticks:      e.Run.Ticks,
			Digest:     e.Run.Digest,
			TopSpeed:   e.Run.TopSpeed,
			PeakGForce: e.Run.PeakGForce,
			Damage:     e.Run.Damage,
		}); err != nil {
			errs = append(errs, fmt.Errorf("stream: %w", err))
		}
	}
	if s.Archive != nil {
		rec := archive.NewRunRecord(e.RunID, e.Run)
		if err := rec.ApplyOutcome(e.Run); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		} else if err := s.Archive.EndRun(rec); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	return errors.Join(errs...)
}
