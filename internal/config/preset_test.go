package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

func writePreset(t *testing.T, name, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadPreset_OverlaysDefaults(t *testing.T) {
	path := writePreset(t, "drift", `
name: drift
description: Loose rear end for drift scenarios
tire:
  longStiffness: 52000
  latStiffness: 38000
  maxForwardForce: 7200
  maxLateralForce: 5600
  loadGripFactor: 1.9
  rollingResistCoef: 0.015
surfaceGrip:
  ice: 0.35
brakes:
  torque: 3100
  frontBias: 0.58
  handbrakeTorque: 3400
maxSpeed: 55
`)

	p, err := LoadPreset(path)
	require.NoError(t, err)

	assert.Equal(t, "drift", p.Name)
	assert.Equal(t, "Loose rear end for drift scenarios", p.Description)

	// Overridden sections.
	assert.Equal(t, 38000.0, p.Vehicle.Tire.LatStiffness)
	assert.Equal(t, 1.9, p.Vehicle.Tire.LoadGripFactor)
	assert.Equal(t, 3400.0, p.Vehicle.Brakes.HandbrakeTorque)
	assert.Equal(t, 55.0, p.Vehicle.MaxSpeed)

	// surfaceGrip overlays per name; other surfaces keep their defaults.
	def := vehicle.DefaultConfig()
	assert.Equal(t, 0.35, p.Vehicle.SurfaceGrip[vehicle.SurfaceIce])
	assert.Equal(t, def.SurfaceGrip[vehicle.SurfaceTarmac], p.Vehicle.SurfaceGrip[vehicle.SurfaceTarmac])

	// Untouched sections keep the default tuning.
	assert.Equal(t, def.Mass, p.Vehicle.Mass)
	assert.Equal(t, def.Transmission.Ratios, p.Vehicle.Transmission.Ratios)
	assert.Equal(t, def.Wheels, p.Vehicle.Wheels)
}

func TestLoadPreset_EmptyFileKeepsDefaults(t *testing.T) {
	path := writePreset(t, "stock", "name: stock\n")

	p, err := LoadPreset(path)
	require.NoError(t, err)

	assert.Equal(t, "stock", p.Name)
	assert.Equal(t, vehicle.DefaultConfig(), p.Vehicle)
}

func TestLoadPreset_NameFallsBackToFileName(t *testing.T) {
	path := writePreset(t, "track-day", "maxSpeed: 72\n")

	p, err := LoadPreset(path)
	require.NoError(t, err)

	assert.Equal(t, "track-day", p.Name)
	assert.Equal(t, 72.0, p.Vehicle.MaxSpeed)
}

func TestLoadPreset_ChassisAndEngine(t *testing.T) {
	path := writePreset(t, "heavy", `
chassis:
  mass: 1800
  comOffset: [-0.1, -0.3, 0]
  bodyDims: [4.9, 1.5, 2.0]
  gravity: 9.81
engine:
  idleRPM: 900
  curve:
    - { rpm: 900, torque: 210 }
    - { rpm: 3500, torque: 420 }
    - { rpm: 6500, torque: 330 }
`)

	p, err := LoadPreset(path)
	require.NoError(t, err)

	assert.Equal(t, 1800.0, p.Vehicle.Mass)
	assert.Equal(t, -0.1, p.Vehicle.COMOffset.X())
	assert.Equal(t, 900.0, p.Vehicle.Engine.IdleRPM)
	require.Len(t, p.Vehicle.Engine.Curve, 3)
	assert.Equal(t, 420.0, p.Vehicle.Engine.Curve[1].Torque)
}

func TestLoadPreset_TransmissionDrive(t *testing.T) {
	path := writePreset(t, "rally", `
transmission:
  ratios: [3.6, 2.6, 1.9, 1.4, 1.1, 0.9]
  reverseRatio: 3.4
  finalDrive: 4.1
  upshiftFrac: 0.92
  downshiftFrac: 0.35
  shiftDwell: 0.25
  drive: awd
`)

	p, err := LoadPreset(path)
	require.NoError(t, err)

	assert.Equal(t, vehicle.DriveAWD, p.Vehicle.Transmission.Drive)
	assert.Len(t, p.Vehicle.Transmission.Ratios, 6)
}

func TestLoadPreset_UnknownDriveType(t *testing.T) {
	path := writePreset(t, "bad", `
transmission:
  ratios: [3.2]
  reverseRatio: 3.1
  finalDrive: 4.4
  upshiftFrac: 0.9
  downshiftFrac: 0.3
  shiftDwell: 0.3
  drive: 4wd
`)

	_, err := LoadPreset(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown drive type")
}

func TestLoadPreset_UnknownSurfaceName(t *testing.T) {
	path := writePreset(t, "bad", `
surfaceGrip:
  lava: 0.1
`)

	_, err := LoadPreset(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown surface kind")
}

func TestLoadPreset_PartialSectionFailsValidation(t *testing.T) {
	// A present section replaces the default whole, so the unspecified
	// tire fields become zero and validation rejects them.
	path := writePreset(t, "partial", `
tire:
  longStiffness: 52000
`)

	_, err := LoadPreset(path)
	require.Error(t, err)
}

func TestLoadPreset_InvalidTuningRejected(t *testing.T) {
	path := writePreset(t, "broken", `
chassis:
  mass: -100
  comOffset: [0, 0, 0]
  bodyDims: [4.4, 1.3, 1.9]
  gravity: 9.81
`)

	_, err := LoadPreset(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mass")
}

func TestLoadPreset_MissingFile(t *testing.T) {
	_, err := LoadPreset(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestPresetPath(t *testing.T) {
	got := PresetPath(filepath.Join("configs", "presets"), "street")
	assert.Equal(t, filepath.Join("configs", "presets", "street.yaml"), got)
}
