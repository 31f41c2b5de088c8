package vehicle

import "github.com/go-gl/mathgl/mgl64"

// WheelTelemetry is the per-corner slice of a Telemetry snapshot.
type WheelTelemetry struct {
	Grounded        bool        `json:"grounded"`
	Compression     float64     `json:"compression"`
	SuspensionForce float64     `json:"suspension_force"`
	Surface         SurfaceKind `json:"surface"`
	SlipRatio       float64     `json:"slip_ratio"`
	SlipAngle       float64     `json:"slip_angle"`
	SpinVel         float64     `json:"spin_vel"`
	SteerAngle      float64     `json:"steer_angle"`
}

// Telemetry is one tick's observable state. It is a plain value with
// fixed-size arrays, so snapshotting never allocates; the 60 Hz loop hands
// copies to slower consumers without sharing memory.
type Telemetry struct {
	Tick        uint64     `json:"tick"`
	State       SimState   `json:"state"`
	Position    mgl64.Vec3 `json:"position"`
	Orientation mgl64.Quat `json:"orientation"`
	Velocity    mgl64.Vec3 `json:"velocity"`
	AngularVel  mgl64.Vec3 `json:"angular_vel"`

	Speed        float64 `json:"speed"`
	ForwardSpeed float64 `json:"forward_speed"`
	GForce       float64 `json:"g_force"`

	Gear         int     `json:"gear"`
	RPM          float64 `json:"rpm"`
	EngineTorque float64 `json:"engine_torque"`

	Damage DamageState       `json:"damage"`
	Wheels [4]WheelTelemetry `json:"wheels"`
}

// ReplayFrame is the minimal per-tick record needed to play a run back:
// chassis pose and velocities plus the visual wheel state.
type ReplayFrame struct {
	Tick        uint64     `json:"tick"`
	Position    mgl64.Vec3 `json:"position"`
	Orientation mgl64.Quat `json:"orientation"`
	Velocity    mgl64.Vec3 `json:"velocity"`
	AngularVel  mgl64.Vec3 `json:"angular_vel"`

	WheelSpin        [4]float64 `json:"wheel_spin"`
	WheelSteer       [4]float64 `json:"wheel_steer"`
	WheelCompression [4]float64 `json:"wheel_compression"`
}
