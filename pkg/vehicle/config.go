package vehicle

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Simulation runs at a fixed 60 Hz. The accumulator loop owns the clock;
// the core only ever sees TickDt.
const (
	TickRate = 60.0
	TickDt   = 1.0 / TickRate
)

// DriveType selects which axle receives engine torque.
type DriveType uint8

const (
	DriveRWD DriveType = iota
	DriveFWD
	DriveAWD
)

func (d DriveType) String() string {
	switch d {
	case DriveRWD:
		return "rwd"
	case DriveFWD:
		return "fwd"
	case DriveAWD:
		return "awd"
	}
	return "unknown"
}

// ParseDriveType maps a preset value to a DriveType.
func ParseDriveType(s string) (DriveType, error) {
	switch s {
	case "rwd":
		return DriveRWD, nil
	case "fwd":
		return DriveFWD, nil
	case "awd":
		return DriveAWD, nil
	}
	return DriveRWD, fmt.Errorf("unknown drive type %q", s)
}

// SuspensionConfig is the per-corner spring/damper setup.
type SuspensionConfig struct {
	Stiffness  float64 // N/m
	Damping    float64 // N·s/m
	RestLength float64 // m, ray length at zero compression
	MaxTravel  float64 // m, compression never exceeds this
}

// WheelConfig is the per-corner geometry.
type WheelConfig struct {
	Offset     mgl64.Vec3 // chassis-space attachment point
	Radius     float64
	Width      float64
	Mass       float64
	Suspension SuspensionConfig
}

// Inertia returns the wheel's spin inertia (solid cylinder about its axle).
func (w WheelConfig) Inertia() float64 {
	return 0.5 * w.Mass * w.Radius * w.Radius
}

// TireConfig is shared by all four tires.
type TireConfig struct {
	LongStiffness     float64 // N per unit slip ratio
	LatStiffness      float64 // N per radian of slip angle
	MaxForwardForce   float64 // N, per-axis clamp
	MaxLateralForce   float64 // N, per-axis clamp
	LoadGripFactor    float64 // friction-circle cap per newton of wheel load
	RollingResistCoef float64
}

// EngineConfig holds the torque source.
type EngineConfig struct {
	Curve   TorqueCurve
	IdleRPM float64
}

// TransmissionConfig holds gearing and the automatic shift policy.
type TransmissionConfig struct {
	Ratios        []float64 // forward gears, index 0 = 1st
	ReverseRatio  float64   // positive; applied with negative sign
	FinalDrive    float64
	UpshiftFrac   float64 // shift up at this fraction of curve max RPM
	DownshiftFrac float64 // shift down below this fraction
	ShiftDwell    float64 // seconds between shifts, prevents gear hunting
	Drive         DriveType
}

// BrakeConfig holds per-wheel braking torques.
type BrakeConfig struct {
	Torque          float64 // N·m at full pedal, scaled by axle bias
	FrontBias       float64 // (0,1), fraction of Torque on each front wheel
	HandbrakeTorque float64 // N·m added to rear wheels while handbrake held
}

// AeroConfig holds the speed-squared force coefficients.
type AeroConfig struct {
	DragCoef      float64 // N per (m/s)²
	DownforceCoef float64 // N per (m/s)²
}

// DamageConfig classifies collision impulses and prices their effects.
type DamageConfig struct {
	MinorImpulse        float64 // N·s, below this an impact is ignored
	MajorImpulse        float64
	CatastrophicImpulse float64

	MinorDelta        float64 // base damage added per severity class
	MajorDelta        float64
	CatastrophicDelta float64

	StructuralWeight float64 // channel weights for the overall rating
	CosmeticWeight   float64
	MechanicalWeight float64

	EnginePenaltyMax float64 // power lost at overall damage 1.0
	GripPenaltyMax   float64 // grip lost at overall damage 1.0
}

// Config is the immutable vehicle setup, loaded once at construction and
// validated before the first tick. All tuning lives here; the models carry
// no magic numbers.
type Config struct {
	Mass      float64
	COMOffset mgl64.Vec3 // chassis-space center of mass
	BodyDims  mgl64.Vec3 // length (x), height (y), width (z) for box inertia
	Gravity   float64    // m/s², positive down

	Wheels [4]WheelConfig
	Tire   TireConfig

	SurfaceGrip     [SurfaceKindCount]float64
	DefaultFriction float64 // used when the surface lookup faults

	Engine       EngineConfig
	Transmission TransmissionConfig
	Brakes       BrakeConfig

	MaxSteerAngle float64 // rad, at full steering input

	Aero     AeroConfig
	MaxSpeed float64 // m/s, drive torque governor

	ReverseEngageSpeed float64 // m/s, standstill window for gear -1 <-> 1
	AngularDamping     float64 // 1/s, arcade attitude stabilizer

	Damage DamageConfig
}

// Validate aggregates every violation rather than stopping at the first,
// so a broken preset reports all its problems in one pass.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Mass <= 0 {
		bad("mass %v must be positive", c.Mass)
	}
	if c.Gravity <= 0 {
		bad("gravity %v must be positive", c.Gravity)
	}
	for _, d := range c.BodyDims {
		if d <= 0 {
			bad("body dims %v must all be positive", c.BodyDims)
			break
		}
	}

	for i, w := range c.Wheels {
		if w.Radius <= 0 || w.Width <= 0 || w.Mass <= 0 {
			bad("wheel %d: radius/width/mass must be positive", i)
		}
		s := w.Suspension
		if s.Stiffness <= 0 || s.Damping <= 0 || s.RestLength <= 0 || s.MaxTravel <= 0 {
			bad("wheel %d: suspension constants must be positive", i)
		}
		// Explicit spring-damper integration at TickDt is stable while
		// damping/stiffness stays above the step size.
		if s.Stiffness > 0 && s.Damping/s.Stiffness <= TickDt {
			bad("wheel %d: damping %v too low for stiffness %v at %v s steps", i, s.Damping, s.Stiffness, TickDt)
		}
	}

	t := c.Tire
	if t.LongStiffness <= 0 || t.LatStiffness <= 0 || t.MaxForwardForce <= 0 || t.MaxLateralForce <= 0 {
		bad("tire stiffness and force clamps must be positive")
	}
	if t.LoadGripFactor <= 0 {
		bad("load grip factor %v must be positive", t.LoadGripFactor)
	}
	if t.RollingResistCoef < 0 {
		bad("rolling resistance %v must not be negative", t.RollingResistCoef)
	}

	for k, g := range c.SurfaceGrip {
		if g <= 0 {
			bad("surface grip for %s must be positive", SurfaceKind(k))
		}
	}
	if c.DefaultFriction <= 0 || c.DefaultFriction > 1 {
		bad("default friction %v out of (0,1]", c.DefaultFriction)
	}

	if err := c.Engine.Curve.Validate(); err != nil {
		bad("engine: %w", err)
	} else {
		if c.Engine.IdleRPM <= 0 {
			bad("idle rpm %v must be positive", c.Engine.IdleRPM)
		}
		if c.Engine.IdleRPM < c.Engine.Curve.MinRPM() || c.Engine.IdleRPM >= c.Engine.Curve.MaxRPM() {
			bad("idle rpm %v outside curve domain [%v,%v)", c.Engine.IdleRPM, c.Engine.Curve.MinRPM(), c.Engine.Curve.MaxRPM())
		}
	}

	tr := c.Transmission
	if len(tr.Ratios) == 0 {
		bad("transmission needs at least one forward ratio")
	}
	for i, r := range tr.Ratios {
		if r <= 0 {
			bad("gear %d ratio %v must be positive", i+1, r)
		}
	}
	if tr.ReverseRatio <= 0 {
		bad("reverse ratio %v must be positive", tr.ReverseRatio)
	}
	if tr.FinalDrive <= 0 {
		bad("final drive %v must be positive", tr.FinalDrive)
	}
	if tr.UpshiftFrac <= 0 || tr.UpshiftFrac > 1 {
		bad("upshift fraction %v out of (0,1]", tr.UpshiftFrac)
	}
	if tr.DownshiftFrac <= 0 || tr.DownshiftFrac >= tr.UpshiftFrac {
		bad("downshift fraction %v must sit in (0, upshift %v)", tr.DownshiftFrac, tr.UpshiftFrac)
	}
	if tr.ShiftDwell < 0 {
		bad("shift dwell %v must not be negative", tr.ShiftDwell)
	}
	if tr.Drive > DriveAWD {
		bad("unknown drive type %d", tr.Drive)
	}

	b := c.Brakes
	if b.Torque <= 0 || b.HandbrakeTorque <= 0 {
		bad("brake torques must be positive")
	}
	if b.FrontBias <= 0 || b.FrontBias >= 1 {
		bad("brake front bias %v out of (0,1)", b.FrontBias)
	}

	if c.MaxSteerAngle <= 0 || c.MaxSteerAngle >= math.Pi/2 {
		bad("max steer angle %v out of (0, pi/2)", c.MaxSteerAngle)
	}
	if c.Aero.DragCoef < 0 || c.Aero.DownforceCoef < 0 {
		bad("aero coefficients must not be negative")
	}
	if c.MaxSpeed <= 0 {
		bad("max speed %v must be positive", c.MaxSpeed)
	}
	if c.ReverseEngageSpeed <= 0 {
		bad("reverse engage speed %v must be positive", c.ReverseEngageSpeed)
	}
	if c.AngularDamping < 0 {
		bad("angular damping %v must not be negative", c.AngularDamping)
	}

	d := c.Damage
	if !(d.MinorImpulse > 0 && d.MinorImpulse < d.MajorImpulse && d.MajorImpulse < d.CatastrophicImpulse) {
		bad("damage impulse thresholds must ascend: %v < %v < %v", d.MinorImpulse, d.MajorImpulse, d.CatastrophicImpulse)
	}
	if !(d.MinorDelta > 0 && d.MinorDelta <= d.MajorDelta && d.MajorDelta <= d.CatastrophicDelta) {
		bad("damage deltas must ascend with severity")
	}
	if d.StructuralWeight <= 0 || d.CosmeticWeight <= 0 || d.MechanicalWeight <= 0 {
		bad("damage channel weights must be positive")
	}
	if d.EnginePenaltyMax < 0 || d.EnginePenaltyMax >= 1 {
		bad("engine penalty max %v out of [0,1)", d.EnginePenaltyMax)
	}
	if d.GripPenaltyMax < 0 || d.GripPenaltyMax >= 1 {
		bad("grip penalty max %v out of [0,1)", d.GripPenaltyMax)
	}

	return errors.Join(errs...)
}

// DefaultConfig returns the reference street car: a rear-driven coupe
// tuned to settle in about a second, launch at roughly 0.85 g, and top out
// just under its speed governor.
func DefaultConfig() Config {
	front := SuspensionConfig{Stiffness: 52000, Damping: 6200, RestLength: 0.35, MaxTravel: 0.22}
	rear := SuspensionConfig{Stiffness: 56000, Damping: 6600, RestLength: 0.35, MaxTravel: 0.22}
	wheel := func(offset mgl64.Vec3, s SuspensionConfig) WheelConfig {
		return WheelConfig{Offset: offset, Radius: 0.33, Width: 0.235, Mass: 16, Suspension: s}
	}

	return Config{
		Mass:      1350,
		COMOffset: mgl64.Vec3{-0.05, -0.25, 0},
		BodyDims:  mgl64.Vec3{4.4, 1.3, 1.9},
		Gravity:   9.81,

		Wheels: [4]WheelConfig{
			WheelFrontLeft:  wheel(mgl64.Vec3{1.25, -0.15, -0.80}, front),
			WheelFrontRight: wheel(mgl64.Vec3{1.25, -0.15, 0.80}, front),
			WheelRearLeft:   wheel(mgl64.Vec3{-1.25, -0.15, -0.80}, rear),
			WheelRearRight:  wheel(mgl64.Vec3{-1.25, -0.15, 0.80}, rear),
		},
		Tire: TireConfig{
			LongStiffness:     60000,
			LatStiffness:      50000,
			MaxForwardForce:   7500,
			MaxLateralForce:   7000,
			LoadGripFactor:    2.1,
			RollingResistCoef: 0.015,
		},

		SurfaceGrip: [SurfaceKindCount]float64{
			SurfaceTarmac: 1.0,
			SurfaceGravel: 0.82,
			SurfaceDirt:   0.70,
			SurfaceGrass:  0.55,
			SurfaceIce:    0.28,
			SurfaceSand:   0.60,
		},
		DefaultFriction: 0.9,

		Engine: EngineConfig{
			Curve: TorqueCurve{
				{RPM: 1000, Torque: 165},
				{RPM: 2000, Torque: 240},
				{RPM: 3000, Torque: 300},
				{RPM: 4000, Torque: 335},
				{RPM: 5000, Torque: 345},
				{RPM: 6000, Torque: 320},
				{RPM: 7000, Torque: 270},
			},
			IdleRPM: 1000,
		},
		Transmission: TransmissionConfig{
			Ratios:        []float64{3.20, 2.38, 1.80, 1.39, 1.03},
			ReverseRatio:  3.10,
			FinalDrive:    4.40,
			UpshiftFrac:   0.90,
			DownshiftFrac: 0.30,
			ShiftDwell:    0.30,
			Drive:         DriveRWD,
		},
		Brakes: BrakeConfig{
			Torque:          2900,
			FrontBias:       0.62,
			HandbrakeTorque: 2600,
		},

		MaxSteerAngle: 0.55,

		Aero: AeroConfig{
			DragCoef:      0.82,
			DownforceCoef: 2.8,
		},
		MaxSpeed: 60,

		ReverseEngageSpeed: 0.5,
		AngularDamping:     0.35,

		Damage: DamageConfig{
			MinorImpulse:        2000,
			MajorImpulse:        8000,
			CatastrophicImpulse: 20000,
			MinorDelta:          0.04,
			MajorDelta:          0.15,
			CatastrophicDelta:   0.40,
			StructuralWeight:    0.5,
			CosmeticWeight:      0.2,
			MechanicalWeight:    0.3,
			EnginePenaltyMax:    0.5,
			GripPenaltyMax:      0.4,
		},
	}
}
