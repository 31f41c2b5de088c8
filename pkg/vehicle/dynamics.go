// Package vehicle implements a deterministic fixed-timestep dynamics core
// for arcade stunt racing: four raycast wheels on a single rigid body, a
// torque-curve drivetrain with automatic shifting, quadratic aerodynamics
// and impulse-classified damage. The package owns no clock and performs no
// I/O; callers advance it one tick at a time and read value snapshots back
// out. Identical inputs from an identical start produce bit-identical runs.
package vehicle

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Replay latch sentinels. While a replay is active the simulation refuses
// to advance or reset; frame application is only legal inside one.
var (
	ErrReplayActive = errors.New("vehicle: replay mode active")
	ErrNotReplaying = errors.New("vehicle: not in replay mode")
)

const standardGravity = 9.81 // m/s^2, g-force reference

// SimState is the coarse vehicle situation exposed to game logic.
type SimState uint8

const (
	StateGrounded SimState = iota
	StateAirborne
	StateReset
)

func (s SimState) String() string {
	switch s {
	case StateGrounded:
		return "grounded"
	case StateAirborne:
		return "airborne"
	case StateReset:
		return "reset"
	}
	return "unknown"
}

// Diagnostics counts provider faults since construction. Faults never stop
// a tick; the affected wheel degrades (treated airborne, default surface)
// and the counter moves so the host can notice a broken provider.
type Diagnostics struct {
	RaycastFaults uint64 `json:"raycast_faults"`
	SurfaceFaults uint64 `json:"surface_faults"`
}

// ChassisState mirrors the rigid body once per tick so all four wheels
// read the same pose regardless of force application order.
type ChassisState struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	Velocity    mgl64.Vec3
	AngularVel  mgl64.Vec3
}

// Dependencies are the external hooks the core needs. Raycaster and
// Surfaces are required. Body is optional: leave it nil to run the
// built-in RigidBody integrator, or supply an adapter when the host
// engine owns chassis integration.
type Dependencies struct {
	Body      Body
	Raycaster RaycastProvider
	Surfaces  SurfaceLookup
}

// VehicleDynamics orchestrates one vehicle. It is not safe for concurrent
// use: a single goroutine owns each instance, and everything handed out is
// a copy.
type VehicleDynamics struct {
	cfg  Config
	body Body
	ray  RaycastProvider
	surf SurfaceLookup

	chassis ChassisState
	wheels  [4]WheelState
	drive   DrivetrainState
	dmg     DamageState

	state     SimState
	replaying bool
	tick      uint64
	gForce    float64
	prevBrake float64 // last tick's brake pedal, for the reverse press edge

	// Per-tick scratch, refreshed at the top of Update. Fixed-size so a
	// tick performs no heap allocation.
	axisFwd, axisUp, axisRight mgl64.Vec3

	fwdSpeed          float64
	downforcePerWheel float64
	driveTorque       [4]float64

	drivenMask  [4]bool
	drivenCount int

	diag Diagnostics
}

// New validates the config and assembles a vehicle at the world origin in
// StateReset. Call Reset to place it before the first Update.
func New(cfg Config, deps Dependencies) (*VehicleDynamics, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vehicle config: %w", err)
	}
	if deps.Raycaster == nil {
		return nil, errors.New("vehicle: raycast provider is required")
	}
	if deps.Surfaces == nil {
		return nil, errors.New("vehicle: surface lookup is required")
	}

	body := deps.Body
	if body == nil {
		body = NewRigidBody(cfg)
	}

	v := &VehicleDynamics{
		cfg:   cfg,
		body:  body,
		ray:   deps.Raycaster,
		surf:  deps.Surfaces,
		state: StateReset,
	}
	v.drive.Gear = 1
	v.drive.RPM = cfg.Engine.IdleRPM

	switch cfg.Transmission.Drive {
	case DriveFWD:
		v.drivenMask = [4]bool{WheelFrontLeft: true, WheelFrontRight: true}
	case DriveAWD:
		v.drivenMask = [4]bool{true, true, true, true}
	default:
		v.drivenMask = [4]bool{WheelRearLeft: true, WheelRearRight: true}
	}
	for _, driven := range v.drivenMask {
		if driven {
			v.drivenCount++
		}
	}

	v.refreshPose()
	return v, nil
}

// refreshPose mirrors the body into the chassis snapshot and derives the
// world axes and forward speed every other stage reads.
func (v *VehicleDynamics) refreshPose() {
	pos, rot := v.body.Pose()
	vel, ang := v.body.Velocity()
	v.chassis = ChassisState{Position: pos, Orientation: rot, Velocity: vel, AngularVel: ang}
	v.axisFwd = rot.Rotate(mgl64.Vec3{1, 0, 0})
	v.axisUp = rot.Rotate(mgl64.Vec3{0, 1, 0})
	v.axisRight = rot.Rotate(mgl64.Vec3{0, 0, 1})
	v.fwdSpeed = vel.Dot(v.axisFwd)
}

// Update advances the simulation one fixed step: wheels (suspension,
// surface, tires, spin), then drivetrain, then aero drag, then body
// integration and the state machine. dt must be positive; determinism
// requires it to stay constant over a run, and the engine loop always
// passes TickDt.
func (v *VehicleDynamics) Update(in Input, dt float64) error {
	if v.replaying {
		return ErrReplayActive
	}
	if dt <= 0 {
		return fmt.Errorf("vehicle: non-positive dt %v", dt)
	}
	in = in.clamped()

	v.refreshPose()
	v.downforcePerWheel = aeroDownforce(&v.cfg.Aero, v.fwdSpeed) / 4

	for i := range v.wheels {
		v.stepWheel(i, in, dt)
	}
	v.stepDrivetrain(in, dt)

	v.body.ApplyCentralForce(v.axisFwd.Mul(aeroDrag(&v.cfg.Aero, v.fwdSpeed)))

	prevVel := v.chassis.Velocity
	v.body.Step(dt)
	v.refreshPose()

	grounded := 0
	for i := range v.wheels {
		if v.wheels[i].Grounded {
			grounded++
		}
	}
	if grounded == 0 {
		v.state = StateAirborne
	} else {
		v.state = StateGrounded
	}

	v.gForce = v.chassis.Velocity.Sub(prevVel).Len() / dt / standardGravity
	v.tick++
	return nil
}

// Reset teleports the vehicle to a pose with zeroed velocities, wheel
// state and drivetrain. Accumulated damage is preserved; only ClearDamage
// removes it.
func (v *VehicleDynamics) Reset(pos mgl64.Vec3, orient mgl64.Quat) error {
	if v.replaying {
		return ErrReplayActive
	}
	v.body.SetPose(pos, orient)
	v.body.SetVelocity(mgl64.Vec3{}, mgl64.Vec3{})
	v.wheels = [4]WheelState{}
	v.drive = DrivetrainState{Gear: 1, RPM: v.cfg.Engine.IdleRPM}
	v.driveTorque = [4]float64{}
	v.downforcePerWheel = 0
	v.gForce = 0
	v.prevBrake = 0
	v.state = StateReset
	v.refreshPose()
	return nil
}

// BeginReplay latches the vehicle into replay mode. Update and Reset are
// rejected until EndReplay.
func (v *VehicleDynamics) BeginReplay() error {
	if v.replaying {
		return ErrReplayActive
	}
	v.replaying = true
	return nil
}

// EndReplay releases the latch and behaves like Reset at the last applied
// frame's pose: velocities and wheel state are zeroed and the vehicle sits
// in StateReset until the next Update.
func (v *VehicleDynamics) EndReplay() error {
	if !v.replaying {
		return ErrNotReplaying
	}
	v.replaying = false
	v.body.SetVelocity(mgl64.Vec3{}, mgl64.Vec3{})
	v.wheels = [4]WheelState{}
	v.drive = DrivetrainState{Gear: 1, RPM: v.cfg.Engine.IdleRPM}
	v.driveTorque = [4]float64{}
	v.downforcePerWheel = 0
	v.gForce = 0
	v.prevBrake = 0
	v.state = StateReset
	v.refreshPose()
	return nil
}

// ApplyReplayFrame drives the body straight to a recorded pose. Only legal
// while replaying.
func (v *VehicleDynamics) ApplyReplayFrame(f ReplayFrame) error {
	if !v.replaying {
		return ErrNotReplaying
	}
	v.body.SetPose(f.Position, f.Orientation)
	v.body.SetVelocity(f.Velocity, f.AngularVel)
	for i := range v.wheels {
		v.wheels[i].SpinAngle = f.WheelSpin[i]
		v.wheels[i].SteerAngle = f.WheelSteer[i]
		v.wheels[i].Compression = f.WheelCompression[i]
	}
	v.tick = f.Tick
	v.refreshPose()
	return nil
}

// Frame captures the current tick as a replay frame.
func (v *VehicleDynamics) Frame() ReplayFrame {
	f := ReplayFrame{
		Tick:        v.tick,
		Position:    v.chassis.Position,
		Orientation: v.chassis.Orientation,
		Velocity:    v.chassis.Velocity,
		AngularVel:  v.chassis.AngularVel,
	}
	for i := range v.wheels {
		f.WheelSpin[i] = v.wheels[i].SpinAngle
		f.WheelSteer[i] = v.wheels[i].SteerAngle
		f.WheelCompression[i] = v.wheels[i].Compression
	}
	return f
}

// GetTelemetry snapshots the current tick. The returned value is
// self-contained; callers may retain it without holding the vehicle.
func (v *VehicleDynamics) GetTelemetry() Telemetry {
	t := Telemetry{
		Tick:         v.tick,
		State:        v.state,
		Position:     v.chassis.Position,
		Orientation:  v.chassis.Orientation,
		Velocity:     v.chassis.Velocity,
		AngularVel:   v.chassis.AngularVel,
		Speed:        v.chassis.Velocity.Len(),
		ForwardSpeed: v.fwdSpeed,
		GForce:       v.gForce,
		Gear:         v.drive.Gear,
		RPM:          v.drive.RPM,
		EngineTorque: v.drive.EngineTorque,
		Damage:       v.dmg,
	}
	for i := range v.wheels {
		w := &v.wheels[i]
		t.Wheels[i] = WheelTelemetry{
			Grounded:        w.Grounded,
			Compression:     w.Compression,
			SuspensionForce: w.SuspensionForce,
			Surface:         w.Surface.Kind,
			SlipRatio:       w.SlipRatio,
			SlipAngle:       w.SlipAngle,
			SpinVel:         w.SpinVel,
			SteerAngle:      w.SteerAngle,
		}
	}
	return t
}

// ReportCollisionImpulse feeds one collision from the host engine into the
// damage model. impulse is the magnitude in N*s, normal the world-space
// impact normal. The classified severity is returned so callers can emit
// impact events. Impulses during replay are ignored.
func (v *VehicleDynamics) ReportCollisionImpulse(impulse float64, normal mgl64.Vec3) ImpactSeverity {
	if v.replaying || impulse <= 0 {
		return ImpactNone
	}
	n := normal
	if l := n.Len(); l > 1e-9 {
		n = n.Mul(1 / l)
	} else {
		n = v.axisFwd
	}
	return v.dmg.applyImpact(&v.cfg.Damage, impulse, n, v.axisFwd)
}

// ClearDamage zeroes all damage channels, e.g. on a repair pickup.
func (v *VehicleDynamics) ClearDamage() {
	v.dmg.clear()
}

func (v *VehicleDynamics) Damage() DamageState         { return v.dmg }
func (v *VehicleDynamics) State() SimState             { return v.state }
func (v *VehicleDynamics) Diagnostics() Diagnostics    { return v.diag }
func (v *VehicleDynamics) Chassis() ChassisState       { return v.chassis }
func (v *VehicleDynamics) Drivetrain() DrivetrainState { return v.drive }
func (v *VehicleDynamics) Wheel(i int) WheelState      { return v.wheels[i] }
func (v *VehicleDynamics) Tick() uint64                { return v.tick }
func (v *VehicleDynamics) Replaying() bool             { return v.replaying }
