package vehicle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDrivetrainVehicle(t *testing.T, drive DriveType) *VehicleDynamics {
	t.Helper()
	world := &flatWorld{surface: tarmacSurface()}
	cfg := DefaultConfig()
	cfg.Transmission.Drive = drive
	v, err := New(cfg, Dependencies{Raycaster: world, Surfaces: world})
	require.NoError(t, err)
	return v
}

func setDrivenSpin(v *VehicleDynamics, spin float64) {
	for i := range v.wheels {
		if v.drivenMask[i] {
			v.wheels[i].SpinVel = spin
		}
	}
}

func TestStepDrivetrain_RPMFollowsDrivenWheels(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)
	setDrivenSpin(v, 20)

	v.stepDrivetrain(Input{}, TickDt)

	want := 20 * 3.20 * 4.40 * 60 / (2 * math.Pi)
	assert.InDelta(t, want, v.drive.RPM, 1e-9)
}

func TestStepDrivetrain_RPMFlooredAtIdle(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)

	v.stepDrivetrain(Input{}, TickDt)

	assert.Equal(t, v.cfg.Engine.IdleRPM, v.drive.RPM)
}

func TestStepDrivetrain_UpshiftGatedByDwell(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)

	// Spin high enough that first gear reads past the upshift threshold.
	setDrivenSpin(v, 50)
	v.stepDrivetrain(Input{Throttle: 1}, TickDt)
	require.Equal(t, 2, v.drive.Gear)
	require.Greater(t, v.drive.ShiftCooldownRemaining, 0.0)

	// Still screaming, but the dwell timer blocks the next shift.
	setDrivenSpin(v, 70)
	v.stepDrivetrain(Input{Throttle: 1}, TickDt)
	assert.Equal(t, 2, v.drive.Gear)

	// Once the dwell expires the shift goes through.
	v.drive.ShiftCooldownRemaining = 0
	v.stepDrivetrain(Input{Throttle: 1}, TickDt)
	assert.Equal(t, 3, v.drive.Gear)
}

func TestStepDrivetrain_DownshiftWhenLugging(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)
	v.drive.Gear = 3
	setDrivenSpin(v, 20) // ~1500 RPM in third, below the downshift line

	v.stepDrivetrain(Input{}, TickDt)

	assert.Equal(t, 2, v.drive.Gear)
}

func TestStepDrivetrain_NoDownshiftBelowFirst(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)
	require.Equal(t, 1, v.drive.Gear)

	v.stepDrivetrain(Input{}, TickDt)

	assert.Equal(t, 1, v.drive.Gear)
}

func TestStepDrivetrain_GovernorCutsTorque(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)
	v.fwdSpeed = v.cfg.MaxSpeed
	setDrivenSpin(v, 40)

	v.stepDrivetrain(Input{Throttle: 1}, TickDt)

	assert.Zero(t, v.drive.EngineTorque)
	for i := range v.driveTorque {
		assert.Zero(t, v.driveTorque[i], "wheel %d", i)
	}
}

func TestStepDrivetrain_RevLimiterCutsTorque(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)
	// Spin equivalent to well past the top of the torque curve in top gear.
	setDrivenSpin(v, 170)
	v.drive.Gear = len(v.cfg.Transmission.Ratios) // no upshift available

	v.stepDrivetrain(Input{Throttle: 1}, TickDt)

	if v.drive.RPM >= v.cfg.Engine.Curve.MaxRPM() {
		assert.Zero(t, v.drive.EngineTorque)
	} else {
		t.Fatalf("test setup: RPM %v should exceed curve max", v.drive.RPM)
	}
}

func TestStepDrivetrain_ReversePedalSwap(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)

	// A brake press at a standstill engages reverse; the brake pedal drives.
	v.stepDrivetrain(Input{Brake: 1}, TickDt)
	require.Equal(t, GearReverse, v.drive.Gear)
	assert.Greater(t, v.drive.EngineTorque, 0.0)
	assert.Less(t, v.driveTorque[WheelRearLeft], 0.0, "reverse torque is negative")

	// Throttle at a standstill swaps back to first.
	v.stepDrivetrain(Input{Throttle: 1}, TickDt)
	assert.Equal(t, 1, v.drive.Gear)
	assert.Greater(t, v.driveTorque[WheelRearLeft], 0.0)
}

func TestStepDrivetrain_HeldBrakeNeedsFreshPressForReverse(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)

	// Pedal goes down at speed and stays down through the stop.
	v.fwdSpeed = 5
	v.stepDrivetrain(Input{Brake: 1}, TickDt)
	v.fwdSpeed = 0
	v.stepDrivetrain(Input{Brake: 1}, TickDt)
	assert.Equal(t, 1, v.drive.Gear, "a held pedal never engages reverse")

	// Release and press again: that is a fresh reverse request.
	v.stepDrivetrain(Input{}, TickDt)
	v.stepDrivetrain(Input{Brake: 1}, TickDt)
	assert.Equal(t, GearReverse, v.drive.Gear)
}

func TestStepDrivetrain_NoReverseAtSpeed(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)
	v.fwdSpeed = 5

	v.stepDrivetrain(Input{Brake: 1}, TickDt)

	assert.Equal(t, 1, v.drive.Gear, "braking at speed is just braking")
}

func TestStepDrivetrain_TorqueSplitByDriveType(t *testing.T) {
	tests := []struct {
		name   string
		drive  DriveType
		driven []int
		idle   []int
	}{
		{"rwd", DriveRWD, []int{WheelRearLeft, WheelRearRight}, []int{WheelFrontLeft, WheelFrontRight}},
		{"fwd", DriveFWD, []int{WheelFrontLeft, WheelFrontRight}, []int{WheelRearLeft, WheelRearRight}},
		{"awd", DriveAWD, []int{WheelFrontLeft, WheelFrontRight, WheelRearLeft, WheelRearRight}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newDrivetrainVehicle(t, tt.drive)
			v.stepDrivetrain(Input{Throttle: 1}, TickDt)

			wheelTorque := v.drive.EngineTorque * v.gearRatio(1) *
				v.cfg.Transmission.FinalDrive / float64(len(tt.driven))
			for _, i := range tt.driven {
				assert.InDelta(t, wheelTorque, v.driveTorque[i], 1e-9, "driven wheel %d", i)
			}
			for _, i := range tt.idle {
				assert.Zero(t, v.driveTorque[i], "idle wheel %d", i)
			}
		})
	}
}

func TestStepDrivetrain_DamageSapsEngineTorque(t *testing.T) {
	clean := newDrivetrainVehicle(t, DriveRWD)
	clean.stepDrivetrain(Input{Throttle: 1}, TickDt)

	hurt := newDrivetrainVehicle(t, DriveRWD)
	hurt.dmg = DamageState{Overall: 1}
	hurt.stepDrivetrain(Input{Throttle: 1}, TickDt)

	wantFactor := 1 - hurt.cfg.Damage.EnginePenaltyMax
	assert.InDelta(t, clean.drive.EngineTorque*wantFactor, hurt.drive.EngineTorque, 1e-9)
}

func TestGearRatio(t *testing.T) {
	v := newDrivetrainVehicle(t, DriveRWD)

	assert.Equal(t, v.cfg.Transmission.Ratios[0], v.gearRatio(1))
	assert.Equal(t, v.cfg.Transmission.Ratios[4], v.gearRatio(5))
	assert.Equal(t, -v.cfg.Transmission.ReverseRatio, v.gearRatio(GearReverse))
	assert.Zero(t, v.gearRatio(0))
	assert.Zero(t, v.gearRatio(99))
}
