package vehicle

// Input is the per-tick driver command snapshot. The input collector is
// expected to pre-clamp values; Update re-clamps anyway so a misbehaving
// caller cannot destabilize the integration.
type Input struct {
	Throttle  float64 `json:"throttle"` // [0,1]
	Brake     float64 `json:"brake"`    // [0,1]
	Steering  float64 `json:"steering"` // [-1,1], positive steers right
	Handbrake bool    `json:"handbrake"`
}

func (in Input) clamped() Input {
	in.Throttle = clamp(in.Throttle, 0, 1)
	in.Brake = clamp(in.Brake, 0, 1)
	in.Steering = clamp(in.Steering, -1, 1)
	return in
}
