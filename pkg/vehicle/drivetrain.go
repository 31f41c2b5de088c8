package vehicle

import "math"

// GearReverse is the single reverse gear. Forward gears count from 1;
// there is no neutral, the transmission is always engaged.
const GearReverse = -1

const rpmPerRadSec = 60 / (2 * math.Pi)

// DrivetrainState is the engine and transmission side of the vehicle.
type DrivetrainState struct {
	Gear                   int
	RPM                    float64
	EngineTorque           float64 // N*m at the crank, after damage and the speed governor
	ShiftCooldownRemaining float64 // s until the next automatic shift is allowed
}

// gearRatio returns the signed ratio for a gear; reverse is negative so
// the same torque path drives the wheels backwards.
func (v *VehicleDynamics) gearRatio(gear int) float64 {
	if gear == GearReverse {
		return -v.cfg.Transmission.ReverseRatio
	}
	if gear >= 1 && gear <= len(v.cfg.Transmission.Ratios) {
		return v.cfg.Transmission.Ratios[gear-1]
	}
	return 0
}

// stepDrivetrain updates RPM, applies automatic shifting and the reverse
// pedal swap, then fills the per-wheel drive torque consumed by the next
// tick's wheel pass.
func (v *VehicleDynamics) stepDrivetrain(in Input, dt float64) {
	d := &v.drive
	tc := &v.cfg.Transmission
	ec := &v.cfg.Engine

	if d.ShiftCooldownRemaining > 0 {
		d.ShiftCooldownRemaining -= dt
		if d.ShiftCooldownRemaining < 0 {
			d.ShiftCooldownRemaining = 0
		}
	}

	// RPM follows the driven wheels through the current ratio, floored at
	// idle so the engine never reads as stalled.
	ratio := v.gearRatio(d.Gear)
	spin := 0.0
	for i := range v.wheels {
		if v.drivenMask[i] {
			spin += math.Abs(v.wheels[i].SpinVel)
		}
	}
	spin /= float64(v.drivenCount)
	rpm := spin * math.Abs(ratio) * tc.FinalDrive * rpmPerRadSec
	if rpm < ec.IdleRPM {
		rpm = ec.IdleRPM
	}
	d.RPM = rpm

	// Two-pedal reverse: a fresh brake press at a near-standstill engages
	// reverse and the pedals swap roles; holding throttle near standstill
	// swaps back to first. Engaging keys on the press edge, not the held
	// level, so braking to a stop never rolls the car backwards.
	nearStop := math.Abs(v.fwdSpeed) < v.cfg.ReverseEngageSpeed
	if d.Gear == GearReverse {
		if in.Throttle > 0 && nearStop {
			d.Gear = 1
			d.ShiftCooldownRemaining = tc.ShiftDwell
		}
	} else if in.Brake > 0 && v.prevBrake == 0 && nearStop && d.Gear == 1 {
		d.Gear = GearReverse
		d.ShiftCooldownRemaining = tc.ShiftDwell
	}
	v.prevBrake = in.Brake

	maxRPM := ec.Curve.MaxRPM()

	// Automatic shifts between forward gears, gated by the dwell timer.
	if d.Gear >= 1 && d.ShiftCooldownRemaining == 0 {
		switch {
		case d.RPM >= tc.UpshiftFrac*maxRPM && d.Gear < len(tc.Ratios):
			d.Gear++
			d.ShiftCooldownRemaining = tc.ShiftDwell
		case d.RPM <= tc.DownshiftFrac*maxRPM && d.Gear > 1:
			d.Gear--
			d.ShiftCooldownRemaining = tc.ShiftDwell
		}
	}

	throttle := in.Throttle
	if d.Gear == GearReverse {
		throttle = in.Brake
	}

	engineT := ec.Curve.Torque(d.RPM) * throttle
	engineT *= 1 - v.dmg.enginePenalty(&v.cfg.Damage)
	// Governor and rev limiter are both hard fuel cuts. The limiter also
	// keeps free-spinning wheels (airborne, on ice) from winding up
	// without bound.
	if math.Abs(v.fwdSpeed) >= v.cfg.MaxSpeed || d.RPM >= maxRPM {
		engineT = 0
	}
	d.EngineTorque = engineT

	perWheel := engineT * v.gearRatio(d.Gear) * tc.FinalDrive / float64(v.drivenCount)
	for i := range v.driveTorque {
		if v.drivenMask[i] {
			v.driveTorque[i] = perWheel
		} else {
			v.driveTorque[i] = 0
		}
	}
}
