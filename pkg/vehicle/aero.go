package vehicle

import "math"

// aeroDrag returns the force along the chassis forward axis for the
// current forward speed. Quadratic and always opposed to motion, so it
// also slows a reversing car.
func aeroDrag(a *AeroConfig, fwdSpeed float64) float64 {
	return -a.DragCoef * fwdSpeed * math.Abs(fwdSpeed)
}

// aeroDownforce returns the total downward aero force. The caller splits
// it evenly across the four wheels, where it raises the friction-circle
// load of grounded corners.
func aeroDownforce(a *AeroConfig, fwdSpeed float64) float64 {
	return a.DownforceCoef * fwdSpeed * fwdSpeed
}
