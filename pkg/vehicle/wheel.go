package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Wheel slots in every [4] array, front axle first.
const (
	WheelFrontLeft = iota
	WheelFrontRight
	WheelRearLeft
	WheelRearRight
)

// slipSpeedFloor keeps the slip-ratio and slip-angle denominators away
// from zero at a standstill.
const slipSpeedFloor = 0.25 // m/s

// WheelState is one corner of the vehicle. Contact fields are rebuilt from
// a fresh raycast every tick; SpinVel, SpinAngle and the compression pair
// are the only state that survives between ticks.
type WheelState struct {
	Grounded        bool
	Compression     float64 // m, 0 = fully extended
	PrevCompression float64 // last tick's compression, feeds the damper term
	ContactPoint    mgl64.Vec3
	ContactNormal   mgl64.Vec3
	Surface         Surface
	SuspensionForce float64    // N
	TireForce       mgl64.Vec3 // world space, diagnostics
	SpinVel         float64    // rad/s about the axle
	SpinAngle       float64    // rad, accumulated for rendering
	SteerAngle      float64    // rad, front wheels only
	SlipRatio       float64
	SlipAngle       float64 // rad
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// tireResponse computes slip and clamped tire forces for one grounded
// wheel. mu already folds surface friction, the per-surface grip
// multiplier and the damage grip penalty; load is the instantaneous normal
// force, which sets the friction-circle cap. longMass and latMass are the
// effective masses each force component works against over one step of dt.
func tireResponse(t *TireConfig, spinVel, radius, longVel, latVel, mu, load, longMass, latMass, dt float64) (slipRatio, slipAngle, fLong, fLat float64) {
	denom := math.Abs(longVel)
	if denom < slipSpeedFloor {
		denom = slipSpeedFloor
	}

	slipVel := spinVel*radius - longVel
	slipRatio = slipVel / denom
	slipAngle = math.Atan2(latVel, denom)

	fLong = clamp(slipRatio*t.LongStiffness, -t.MaxForwardForce, t.MaxForwardForce) * mu
	fLat = clamp(-slipAngle*t.LatStiffness, -t.MaxLateralForce, t.MaxLateralForce) * mu

	// Impulse limit: a restoring force may remove at most the velocity it
	// opposes within one step. Anything stronger reverses the contact
	// velocity tick after tick, and the car jitters at a standstill
	// instead of coming to rest.
	if lim := longMass * math.Abs(slipVel) / dt; math.Abs(fLong) > lim {
		fLong = math.Copysign(lim, fLong)
	}
	if lim := latMass * math.Abs(latVel) / dt; math.Abs(fLat) > lim {
		fLat = math.Copysign(lim, fLat)
	}

	// Friction circle: the combined force cannot exceed what the load can
	// carry; scale both components back proportionally when it would.
	cap := mu * t.LoadGripFactor * load
	if cap < 0 {
		cap = 0
	}
	mag := math.Hypot(fLong, fLat)
	if mag > cap {
		scale := 0.0
		if mag > 0 {
			scale = cap / mag
		}
		fLong *= scale
		fLat *= scale
	}
	return slipRatio, slipAngle, fLong, fLat
}

// stepWheel runs one corner for one tick: raycast, suspension, surface,
// tire forces, spin integration. All force application goes through the
// shared body; wheel-to-wheel coupling only ever happens there.
func (v *VehicleDynamics) stepWheel(i int, in Input, dt float64) {
	wc := &v.cfg.Wheels[i]
	ws := &v.wheels[i]

	steer := 0.0
	if i == WheelFrontLeft || i == WheelFrontRight {
		steer = in.Steering * v.cfg.MaxSteerAngle
	}
	ws.SteerAngle = steer

	// Brake pedal mapping follows the two-pedal reverse convention: in
	// reverse the throttle pedal brakes and the brake pedal drives.
	brakePedal := in.Brake
	if v.drive.Gear == GearReverse {
		brakePedal = in.Throttle
	}
	brakeTorque := brakePedal * v.cfg.Brakes.Torque
	if i == WheelFrontLeft || i == WheelFrontRight {
		brakeTorque *= v.cfg.Brakes.FrontBias
	} else {
		brakeTorque *= 1 - v.cfg.Brakes.FrontBias
		if in.Handbrake {
			brakeTorque += v.cfg.Brakes.HandbrakeTorque
		}
	}

	origin := v.chassis.Position.Add(v.chassis.Orientation.Rotate(wc.Offset))
	rayLen := wc.Suspension.RestLength + wc.Suspension.MaxTravel
	down := v.axisUp.Mul(-1)

	hit, ok, err := v.ray.Cast(origin, down, rayLen)
	if err != nil {
		// Sensing fault: fail safe to airborne for this tick and let the
		// caller observe the counter. Never fatal.
		v.diag.RaycastFaults++
		ok = false
	}

	prev := ws.Compression
	ws.PrevCompression = prev

	if !ok {
		ws.Grounded = false
		ws.Compression = 0
		ws.ContactPoint = mgl64.Vec3{}
		ws.ContactNormal = mgl64.Vec3{}
		ws.Surface = Surface{}
		ws.SuspensionForce = 0
		ws.TireForce = mgl64.Vec3{}
		ws.SlipRatio = 0
		ws.SlipAngle = 0

		// The downforce share still pushes on the chassis even when this
		// corner is off the ground.
		if v.downforcePerWheel > 0 {
			v.body.ApplyForce(v.axisUp.Mul(-v.downforcePerWheel), origin)
		}

		// Free spin: only drive and brake torque act, no contact terms.
		integrateSpin(ws, wc, v.driveTorque[i], brakeTorque, 0, 0, dt)
		return
	}

	compression := clamp(rayLen-hit.Distance, 0, wc.Suspension.MaxTravel)
	rate := (compression - prev) / dt
	suspMag := wc.Suspension.Stiffness*compression + wc.Suspension.Damping*rate
	if suspMag < 0 {
		suspMag = 0 // the ray cannot pull the chassis down
	}

	normal := hit.Normal
	if normal.Dot(normal) < 1e-12 {
		normal = v.axisUp
	}

	surf, serr := v.surf.SurfaceAt(hit.Point)
	if serr != nil {
		v.diag.SurfaceFaults++
		surf = Surface{Kind: SurfaceTarmac, Friction: v.cfg.DefaultFriction}
	}

	ws.Grounded = true
	ws.Compression = compression
	ws.ContactPoint = hit.Point
	ws.ContactNormal = normal
	ws.Surface = surf
	ws.SuspensionForce = suspMag

	v.body.ApplyForce(normal.Mul(suspMag), hit.Point)
	if v.downforcePerWheel > 0 {
		v.body.ApplyForce(v.axisUp.Mul(-v.downforcePerWheel), hit.Point)
	}

	// Wheel direction frame: steered forward/right projected onto the
	// contact plane.
	fwdLocal := mgl64.Vec3{math.Cos(steer), 0, math.Sin(steer)}
	rightLocal := mgl64.Vec3{-math.Sin(steer), 0, math.Cos(steer)}
	fwdW := v.chassis.Orientation.Rotate(fwdLocal)
	rightW := v.chassis.Orientation.Rotate(rightLocal)

	fwdT := fwdW.Sub(normal.Mul(fwdW.Dot(normal)))
	rightT := rightW.Sub(normal.Mul(rightW.Dot(normal)))
	fwdLen := fwdT.Dot(fwdT)
	rightLen := rightT.Dot(rightT)
	if fwdLen < 1e-12 || rightLen < 1e-12 {
		// Contact plane is degenerate for this frame (near-vertical face);
		// suspension still acts, tires contribute nothing.
		ws.TireForce = mgl64.Vec3{}
		ws.SlipRatio = 0
		ws.SlipAngle = 0
		integrateSpin(ws, wc, v.driveTorque[i], brakeTorque, 0, 0, dt)
		return
	}
	fwdT = fwdT.Mul(1 / math.Sqrt(fwdLen))
	rightT = rightT.Mul(1 / math.Sqrt(rightLen))

	contactVel := v.body.VelocityAt(hit.Point)
	longVel := contactVel.Dot(fwdT)
	latVel := contactVel.Dot(rightT)

	mu := surf.Friction * v.cfg.SurfaceGrip[surf.Kind] * (1 - v.dmg.gripPenalty(&v.cfg.Damage))
	load := suspMag + v.downforcePerWheel

	// Lateral force pushes only on the chassis share carried by this
	// corner; longitudinal force also reacts on the wheel spin, so its
	// effective mass is the series combination of the chassis share and
	// the wheel's rotational mass at the contact patch.
	latMass := v.cfg.Mass / 4
	longMass := 1 / (1/latMass + wc.Radius*wc.Radius/wc.Inertia())

	slipRatio, slipAngle, fLong, fLat := tireResponse(&v.cfg.Tire, ws.SpinVel, wc.Radius, longVel, latVel, mu, load, longMass, latMass, dt)
	ws.SlipRatio = slipRatio
	ws.SlipAngle = slipAngle

	tire := fwdT.Mul(fLong).Add(rightT.Mul(fLat))
	ws.TireForce = tire
	v.body.ApplyForce(tire, hit.Point)

	reaction := fLong * wc.Radius
	rolling := v.cfg.Tire.RollingResistCoef * load * wc.Radius
	integrateSpin(ws, wc, v.driveTorque[i], brakeTorque, reaction, rolling, dt)
}

// integrateSpin advances wheel angular velocity. Drive torque and the tire
// contact reaction integrate directly; braking and rolling resistance
// oppose the current spin direction and are clamped so they stop at zero
// instead of ringing around it.
func integrateSpin(ws *WheelState, wc *WheelConfig, driveTorque, brakeTorque, reaction, rolling, dt float64) {
	inertia := wc.Inertia()
	ws.SpinVel += (driveTorque - reaction) / inertia * dt

	decel := (brakeTorque + rolling) / inertia * dt
	if math.Abs(ws.SpinVel) <= decel {
		ws.SpinVel = 0
	} else {
		ws.SpinVel -= math.Copysign(decel, ws.SpinVel)
	}

	ws.SpinAngle += ws.SpinVel * dt
}
