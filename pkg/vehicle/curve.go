package vehicle

import "fmt"

// CurvePoint is one sample of the engine torque curve.
type CurvePoint struct {
	RPM    float64 `json:"rpm"`
	Torque float64 `json:"torque"` // Nm at full throttle
}

// TorqueCurve maps engine speed to full-throttle torque. Points must be
// sorted by ascending RPM. Lookups outside the table domain clamp to the
// nearest endpoint; extrapolating a dyno curve produces runaway torque at
// the extremes, so we never do it.
type TorqueCurve []CurvePoint

// Torque returns the interpolated full-throttle torque at the given RPM.
func (c TorqueCurve) Torque(rpm float64) float64 {
	if len(c) == 0 {
		return 0
	}
	if rpm <= c[0].RPM {
		return c[0].Torque
	}
	last := len(c) - 1
	if rpm >= c[last].RPM {
		return c[last].Torque
	}
	for i := 1; i <= last; i++ {
		if rpm > c[i].RPM {
			continue
		}
		lo, hi := c[i-1], c[i]
		t := (rpm - lo.RPM) / (hi.RPM - lo.RPM)
		return lo.Torque + t*(hi.Torque-lo.Torque)
	}
	return c[last].Torque
}

// MinRPM returns the lower end of the curve domain.
func (c TorqueCurve) MinRPM() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[0].RPM
}

// MaxRPM returns the upper end of the curve domain. Shift thresholds are
// expressed as fractions of this value.
func (c TorqueCurve) MaxRPM() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1].RPM
}

// Validate checks the curve is usable: at least two points, strictly
// ascending RPM, nothing negative.
func (c TorqueCurve) Validate() error {
	if len(c) < 2 {
		return fmt.Errorf("torque curve needs at least 2 points, got %d", len(c))
	}
	for i, p := range c {
		if p.RPM <= 0 {
			return fmt.Errorf("torque curve point %d: rpm %v must be positive", i, p.RPM)
		}
		if p.Torque < 0 {
			return fmt.Errorf("torque curve point %d: torque %v must not be negative", i, p.Torque)
		}
		if i > 0 && p.RPM <= c[i-1].RPM {
			return fmt.Errorf("torque curve point %d: rpm %v not ascending", i, p.RPM)
		}
	}
	return nil
}
