package vehicle

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBodyConfig() Config {
	cfg := DefaultConfig()
	cfg.COMOffset = mgl64.Vec3{}
	cfg.AngularDamping = 0
	return cfg
}

func TestRigidBody_FreeFall(t *testing.T) {
	b := NewRigidBody(testBodyConfig())

	for i := 0; i < 60; i++ {
		b.Step(TickDt)
	}

	vel, _ := b.Velocity()
	assert.InDelta(t, -9.81, vel.Y(), 1e-9)

	// Semi-implicit Euler drops g*dt^2*n*(n+1)/2 over n steps.
	pos, _ := b.Pose()
	want := -9.81 * TickDt * TickDt * 60 * 61 / 2
	assert.InDelta(t, want, pos.Y(), 1e-9)
}

func TestRigidBody_CentralForceAccelerates(t *testing.T) {
	cfg := testBodyConfig()
	b := NewRigidBody(cfg)
	antiGravity := mgl64.Vec3{0, cfg.Mass * cfg.Gravity, 0}

	for i := 0; i < 60; i++ {
		b.ApplyCentralForce(antiGravity.Add(mgl64.Vec3{cfg.Mass, 0, 0}))
		b.Step(TickDt)
	}

	vel, _ := b.Velocity()
	assert.InDelta(t, 1.0, vel.X(), 1e-9, "1 N/kg for 1 s is 1 m/s")
	assert.InDelta(t, 0, vel.Y(), 1e-9, "gravity cancelled")
}

func TestRigidBody_OffCenterForceInducesSpin(t *testing.T) {
	b := NewRigidBody(testBodyConfig())

	// Forward push applied out on the right side torques the body about +Y.
	b.ApplyForce(mgl64.Vec3{100, 0, 0}, mgl64.Vec3{0, 0, 1})
	b.Step(TickDt)

	_, angVel := b.Velocity()
	assert.Greater(t, angVel.Y(), 0.0)
	assert.InDelta(t, 0, angVel.X(), 1e-12)
	assert.InDelta(t, 0, angVel.Z(), 1e-12)
}

func TestRigidBody_VelocityAtIncludesRotation(t *testing.T) {
	b := NewRigidBody(testBodyConfig())
	b.SetVelocity(mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})

	// A point one meter forward of the COM moves sideways under yaw.
	at := b.VelocityAt(mgl64.Vec3{1, 0, 0})
	assert.InDelta(t, 0, at.X(), 1e-12)
	assert.InDelta(t, -1, at.Z(), 1e-12)
}

func TestRigidBody_PoseRoundTripWithCOMOffset(t *testing.T) {
	cfg := testBodyConfig()
	cfg.COMOffset = mgl64.Vec3{-0.05, -0.25, 0}
	b := NewRigidBody(cfg)

	rot := mgl64.QuatRotate(0.7, mgl64.Vec3{0, 1, 0})
	target := mgl64.Vec3{1, 2, 3}
	b.SetPose(target, rot)

	pos, got := b.Pose()
	assert.Less(t, pos.Sub(target).Len(), 1e-9)
	assert.InDelta(t, rot.W, got.W, 1e-12)
}

func TestRigidBody_QuaternionStaysNormalized(t *testing.T) {
	b := NewRigidBody(testBodyConfig())
	b.SetVelocity(mgl64.Vec3{}, mgl64.Vec3{3, 5, 2})

	for i := 0; i < 600; i++ {
		b.Step(TickDt)
	}

	_, rot := b.Pose()
	assert.InDelta(t, 1.0, rot.Len(), 1e-9)
}

func TestRigidBody_AngularDampingSlowsSpin(t *testing.T) {
	cfg := testBodyConfig()
	cfg.AngularDamping = 0.35
	b := NewRigidBody(cfg)
	b.SetVelocity(mgl64.Vec3{}, mgl64.Vec3{0, 2, 0})

	for i := 0; i < 60; i++ {
		b.Step(TickDt)
	}

	_, angVel := b.Velocity()
	require.Greater(t, angVel.Y(), 0.0)
	// (1 - 0.35/60)^60 is roughly exp(-0.35).
	assert.InDelta(t, 2*0.7047, angVel.Y(), 0.01)
}

func TestRigidBody_ForceAccumulatorsClearAfterStep(t *testing.T) {
	cfg := testBodyConfig()
	b := NewRigidBody(cfg)
	antiGravity := mgl64.Vec3{0, cfg.Mass * cfg.Gravity, 0}

	b.ApplyCentralForce(antiGravity.Add(mgl64.Vec3{1000, 0, 0}))
	b.Step(TickDt)
	velAfterPush, _ := b.Velocity()

	// No new force: only gravity acts on the second step.
	b.ApplyCentralForce(antiGravity)
	b.Step(TickDt)
	velAfterCoast, _ := b.Velocity()

	assert.InDelta(t, velAfterPush.X(), velAfterCoast.X(), 1e-12,
		"push force must not leak into the next step")
}
