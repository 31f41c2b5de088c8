package influx

import (
	"context"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/stuntrig/vdyn/internal/dispatcher"
	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// TelemetryPoint converts one tick snapshot into an InfluxDB point.
func TelemetryPoint(runID, scenario, preset string, at time.Time, t *vehicle.Telemetry) *influxdb2_write.Point {
	point := influxdb2.NewPointWithMeasurement("vehicle_state").
		AddTag("run_id", runID).
		AddTag("scenario", scenario).
		AddTag("preset", preset).
		AddTag("state", t.State.String()).
		AddTag("gear", strconv.Itoa(t.Gear)).
		AddField("tick", int64(t.Tick)).
		AddField("speed", t.Speed).
		AddField("forward_speed", t.ForwardSpeed).
		AddField("g_force", t.GForce).
		AddField("rpm", t.RPM).
		AddField("engine_torque", t.EngineTorque).
		AddField("pos_x", t.Position.X()).
		AddField("pos_y", t.Position.Y()).
		AddField("pos_z", t.Position.Z()).
		AddField("vel_x", t.Velocity.X()).
		AddField("vel_y", t.Velocity.Y()).
		AddField("vel_z", t.Velocity.Z()).
		AddField("damage_overall", t.Damage.Overall).
		SetTime(at)

	grounded := 0
	for i, w := range t.Wheels {
		if w.Grounded {
			grounded++
		}
		idx := strconv.Itoa(i)
		point.AddField("wheel"+idx+"_compression", w.Compression)
		point.AddField("wheel"+idx+"_slip_ratio", w.SlipRatio)
	}
	point.AddField("wheels_grounded", int64(grounded))

	return point
}

// ImpactPoint converts a collision event into an InfluxDB point.
func ImpactPoint(runID, scenario, preset string, at time.Time, imp *dispatcher.Impact) *influxdb2_write.Point {
	return influxdb2.NewPointWithMeasurement("impact").
		AddTag("run_id", runID).
		AddTag("scenario", scenario).
		AddTag("preset", preset).
		AddTag("severity", imp.Severity.String()).
		AddField("tick", int64(imp.Tick)).
		AddField("impulse", imp.Impulse).
		AddField("normal_x", imp.Normal.X()).
		AddField("normal_y", imp.Normal.Y()).
		AddField("normal_z", imp.Normal.Z()).
		AddField("damage_structural", imp.Damage.Structural).
		AddField("damage_cosmetic", imp.Damage.Cosmetic).
		AddField("damage_mechanical", imp.Damage.Mechanical).
		AddField("damage_overall", imp.Damage.Overall).
		AddField("crash_count", int64(imp.Damage.CrashCount)).
		SetTime(at)
}

// RunPoint converts a finished run's summary into an InfluxDB point,
// stamped at the run's end time.
func RunPoint(runID string, rs *dispatcher.RunSummary) *influxdb2_write.Point {
	return influxdb2.NewPointWithMeasurement("run").
		AddTag("run_id", runID).
		AddTag("scenario", rs.Scenario).
		AddTag("preset", rs.Preset).
		AddField("ticks", int64(rs.Ticks)).
		AddField("duration_s", rs.EndedAt.Sub(rs.StartedAt).Seconds()).
		AddField("tick_rate", rs.TickRate).
		AddField("digest", rs.Digest).
		AddField("top_speed", rs.TopSpeed).
		AddField("peak_g_force", rs.PeakGForce).
		AddField("damage_overall", rs.Damage.Overall).
		SetTime(rs.EndedAt)
}

// WriteTelemetry writes a tick snapshot to the telemetry bucket.
func (m *Manager) WriteTelemetry(ctx context.Context, runID, scenario, preset string, at time.Time, t *vehicle.Telemetry) error {
	return m.WritePoint(ctx, BucketTelemetry, TelemetryPoint(runID, scenario, preset, at, t))
}

// WriteImpact writes a collision event to the impacts bucket.
func (m *Manager) WriteImpact(ctx context.Context, runID, scenario, preset string, at time.Time, imp *dispatcher.Impact) error {
	return m.WritePoint(ctx, BucketImpacts, ImpactPoint(runID, scenario, preset, at, imp))
}

// WriteRun writes a run summary to the runs bucket.
func (m *Manager) WriteRun(ctx context.Context, runID string, rs *dispatcher.RunSummary) error {
	return m.WritePoint(ctx, BucketRuns, RunPoint(runID, rs))
}
