package vehicle

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Body is the chassis rigid body, owned by the physics world. The
// orchestrator only reads its pose/velocities, accumulates forces into it,
// and asks it to step; pose writes happen through Reset/ApplyReplayFrame
// so there is never a second writer inside a tick. RigidBody below is the
// reference implementation; a game embedding the core can adapt its own
// solver behind this interface instead.
type Body interface {
	// Pose returns the chassis origin and orientation in world space.
	Pose() (mgl64.Vec3, mgl64.Quat)
	// Velocity returns the linear velocity of the center of mass and the
	// angular velocity, both world space.
	Velocity() (linear, angular mgl64.Vec3)
	// VelocityAt returns the velocity of a world-space point rigidly
	// attached to the body.
	VelocityAt(point mgl64.Vec3) mgl64.Vec3
	// ApplyForce accumulates a world-space force acting at a world-space
	// point; forces clear after every Step.
	ApplyForce(force, at mgl64.Vec3)
	// ApplyCentralForce accumulates a force through the center of mass.
	ApplyCentralForce(force mgl64.Vec3)
	// Step integrates one fixed timestep and clears the accumulators.
	Step(dt float64)
	// SetPose teleports the body, zeroing nothing else.
	SetPose(pos mgl64.Vec3, rot mgl64.Quat)
	// SetVelocity overwrites both velocities.
	SetVelocity(linear, angular mgl64.Vec3)
}

// RigidBody is a single 6-DOF body integrated with semi-implicit Euler:
// velocities first, then pose from the new velocities. Inertia is the
// solid-box approximation of the chassis dimensions about the configured
// center of mass. The orientation is renormalized every step so error
// never accumulates across a long run.
type RigidBody struct {
	mass       float64
	invMass    float64
	comLocal   mgl64.Vec3
	invInertia mgl64.Vec3 // diagonal, body frame
	gravity    mgl64.Vec3
	angDamping float64

	com    mgl64.Vec3 // world-space center of mass
	rot    mgl64.Quat
	vel    mgl64.Vec3
	angVel mgl64.Vec3

	force  mgl64.Vec3
	torque mgl64.Vec3
}

// NewRigidBody builds the reference chassis body from the vehicle config.
func NewRigidBody(cfg Config) *RigidBody {
	m := cfg.Mass
	dx, dy, dz := cfg.BodyDims.X(), cfg.BodyDims.Y(), cfg.BodyDims.Z()
	ix := m / 12.0 * (dy*dy + dz*dz)
	iy := m / 12.0 * (dx*dx + dz*dz)
	iz := m / 12.0 * (dx*dx + dy*dy)

	b := &RigidBody{
		mass:       m,
		invMass:    1.0 / m,
		comLocal:   cfg.COMOffset,
		invInertia: mgl64.Vec3{1.0 / ix, 1.0 / iy, 1.0 / iz},
		gravity:    mgl64.Vec3{0, -cfg.Gravity, 0},
		angDamping: cfg.AngularDamping,
		rot:        mgl64.QuatIdent(),
	}
	b.com = b.rot.Rotate(b.comLocal)
	return b
}

// Pose converts the tracked center of mass back to the chassis origin.
func (b *RigidBody) Pose() (mgl64.Vec3, mgl64.Quat) {
	origin := b.com.Sub(b.rot.Rotate(b.comLocal))
	return origin, b.rot
}

func (b *RigidBody) Velocity() (mgl64.Vec3, mgl64.Vec3) {
	return b.vel, b.angVel
}

func (b *RigidBody) VelocityAt(point mgl64.Vec3) mgl64.Vec3 {
	return b.vel.Add(b.angVel.Cross(point.Sub(b.com)))
}

func (b *RigidBody) ApplyForce(force, at mgl64.Vec3) {
	b.force = b.force.Add(force)
	b.torque = b.torque.Add(at.Sub(b.com).Cross(force))
}

func (b *RigidBody) ApplyCentralForce(force mgl64.Vec3) {
	b.force = b.force.Add(force)
}

// Step integrates velocities, then pose, then clears the accumulators.
func (b *RigidBody) Step(dt float64) {
	accel := b.gravity.Add(b.force.Mul(b.invMass))
	b.vel = b.vel.Add(accel.Mul(dt))

	// Torque to angular acceleration through the body-frame inertia.
	localTorque := b.rot.Conjugate().Rotate(b.torque)
	localAngAccel := mgl64.Vec3{
		localTorque.X() * b.invInertia.X(),
		localTorque.Y() * b.invInertia.Y(),
		localTorque.Z() * b.invInertia.Z(),
	}
	b.angVel = b.angVel.Add(b.rot.Rotate(localAngAccel).Mul(dt))

	damp := 1.0 - b.angDamping*dt
	if damp < 0 {
		damp = 0
	}
	b.angVel = b.angVel.Mul(damp)

	b.com = b.com.Add(b.vel.Mul(dt))

	spin := mgl64.Quat{W: 0, V: b.angVel}
	b.rot = b.rot.Add(spin.Mul(b.rot).Scale(0.5 * dt)).Normalize()

	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}

func (b *RigidBody) SetPose(pos mgl64.Vec3, rot mgl64.Quat) {
	b.rot = rot.Normalize()
	b.com = pos.Add(b.rot.Rotate(b.comLocal))
}

func (b *RigidBody) SetVelocity(linear, angular mgl64.Vec3) {
	b.vel = linear
	b.angVel = angular
}
