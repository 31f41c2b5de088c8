package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuntrig/vdyn/internal/dispatcher"
	"github.com/stuntrig/vdyn/pkg/vehicle"
)

func lineProtocol(p *influxdb2_write.Point) string {
	return influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
}

func sampleTelemetry() *vehicle.Telemetry {
	t := &vehicle.Telemetry{
		Tick:         900,
		State:        vehicle.StateGrounded,
		Speed:        21.5,
		ForwardSpeed: 21.4,
		GForce:       1.2,
		Gear:         3,
		RPM:          4200,
		EngineTorque: 310,
	}
	t.Position[0] = 10
	t.Position[1] = 0.5
	t.Position[2] = -3
	t.Damage.Overall = 0.25
	for i := range t.Wheels {
		t.Wheels[i].Grounded = true
		t.Wheels[i].Compression = 0.4
		t.Wheels[i].SlipRatio = 0.05
	}
	return t
}

func TestTelemetryPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	line := lineProtocol(TelemetryPoint("r-42", "jump_ramp", "street", at, sampleTelemetry()))

	assert.True(t, strings.HasPrefix(line, "vehicle_state,"))
	assert.Contains(t, line, "run_id=r-42")
	assert.Contains(t, line, "scenario=jump_ramp")
	assert.Contains(t, line, "preset=street")
	assert.Contains(t, line, "state=grounded")
	assert.Contains(t, line, "gear=3")
	assert.Contains(t, line, "tick=900i")
	assert.Contains(t, line, "speed=21.5")
	assert.Contains(t, line, "rpm=4200")
	assert.Contains(t, line, "pos_x=10")
	assert.Contains(t, line, "damage_overall=0.25")
	assert.Contains(t, line, "wheel0_slip_ratio=0.05")
	assert.Contains(t, line, "wheel3_compression=0.4")
	assert.Contains(t, line, "wheels_grounded=4i")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(line), strconv.FormatInt(at.UnixNano(), 10)))
}

func TestImpactPoint(t *testing.T) {
	imp := &dispatcher.Impact{
		Tick:     120,
		Impulse:  22000,
		Severity: vehicle.ImpactMajor,
		Damage: vehicle.DamageState{
			Structural: 0.3,
			Cosmetic:   0.5,
			Mechanical: 0.2,
			Overall:    0.31,
			CrashCount: 2,
		},
	}
	imp.Normal[0] = -1

	at := time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC)
	line := lineProtocol(ImpactPoint("r-42", "crash_test", "street", at, imp))

	assert.True(t, strings.HasPrefix(line, "impact,"))
	assert.Contains(t, line, "severity=major")
	assert.Contains(t, line, "tick=120i")
	assert.Contains(t, line, "impulse=22000")
	assert.Contains(t, line, "normal_x=-1")
	assert.Contains(t, line, "damage_structural=0.3")
	assert.Contains(t, line, "damage_overall=0.31")
	assert.Contains(t, line, "crash_count=2i")
}

func TestRunPoint(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rs := &dispatcher.RunSummary{
		Scenario:   "full_throttle",
		Preset:     "street",
		TickRate:   60,
		StartedAt:  start,
		EndedAt:    start.Add(2500 * time.Millisecond),
		Ticks:      150,
		Digest:     "0123abcd",
		TopSpeed:   41.7,
		PeakGForce: 2.1,
	}

	line := lineProtocol(RunPoint("r-42", rs))

	assert.True(t, strings.HasPrefix(line, "run,"))
	assert.Contains(t, line, "scenario=full_throttle")
	assert.Contains(t, line, "ticks=150i")
	assert.Contains(t, line, "duration_s=2.5")
	assert.Contains(t, line, "tick_rate=60")
	assert.Contains(t, line, `digest="0123abcd"`)
	assert.Contains(t, line, "top_speed=41.7")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(line), strconv.FormatInt(rs.EndedAt.UnixNano(), 10)))
}

func TestManager_BackupFallback(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", true)
	viper.Set("influx.protocol", "http")
	// port 1 refuses immediately, forcing the backup path
	viper.Set("influx.host", "127.0.0.1")
	viper.Set("influx.port", "1")
	viper.Set("influx.token", "")
	viper.Set("influx.org", "stuntrig")

	backupPath := filepath.Join(t.TempDir(), "influx_backup.lp.gz")
	m := NewManager(zerolog.Nop(), backupPath)

	require.NoError(t, m.Connect())
	assert.False(t, m.IsValid)
	require.NotNil(t, m.BackupWriter)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, m.WriteTelemetry(context.Background(), "r-1", "slalom", "street", at, sampleTelemetry()))
	require.NoError(t, m.Close())

	f, err := os.Open(backupPath)
	require.NoError(t, err)
	defer f.Close()

	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	line := string(raw)
	assert.Contains(t, line, "vehicle_state,")
	assert.Contains(t, line, "run_id=r-1")
	assert.Contains(t, line, "scenario=slalom")
}

func TestManager_ConnectDisabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "b.lp.gz"))
	assert.Error(t, m.Connect())
}

func TestManager_WritePointUnknownBucket(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	m.IsValid = true

	err := m.WritePoint(context.Background(), "nope", RunPoint("r-1", &dispatcher.RunSummary{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestManager_WritePointNoBackup(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")

	err := m.WritePoint(context.Background(), BucketTelemetry, RunPoint("r-1", &dispatcher.RunSummary{}))
	assert.Error(t, err)
}
