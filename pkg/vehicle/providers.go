package vehicle

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// SurfaceKind classifies what a tire is rolling on. The kind selects the
// per-surface grip multiplier from Config.SurfaceGrip.
type SurfaceKind uint8

const (
	SurfaceTarmac SurfaceKind = iota
	SurfaceGravel
	SurfaceDirt
	SurfaceGrass
	SurfaceIce
	SurfaceSand

	// SurfaceKindCount sizes lookup tables indexed by SurfaceKind.
	SurfaceKindCount
)

var surfaceNames = [SurfaceKindCount]string{
	SurfaceTarmac: "tarmac",
	SurfaceGravel: "gravel",
	SurfaceDirt:   "dirt",
	SurfaceGrass:  "grass",
	SurfaceIce:    "ice",
	SurfaceSand:   "sand",
}

func (k SurfaceKind) String() string {
	if k >= SurfaceKindCount {
		return "unknown"
	}
	return surfaceNames[k]
}

// ParseSurfaceKind maps a surface name from a preset or zone file to its kind.
func ParseSurfaceKind(s string) (SurfaceKind, error) {
	for k, name := range surfaceNames {
		if name == s {
			return SurfaceKind(k), nil
		}
	}
	return SurfaceTarmac, fmt.Errorf("unknown surface kind %q", s)
}

// Surface is the result of a surface lookup at a contact point.
type Surface struct {
	Kind     SurfaceKind `json:"kind"`
	Friction float64     `json:"friction"` // (0,1]
}

// RaycastHit describes the nearest intersection along a cast ray.
type RaycastHit struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
}

// RaycastProvider is the collision-sensing collaborator. Cast returns
// (hit, true, nil) on contact and (zero, false, nil) on a clean miss.
// A non-nil error signals a transient sensing fault; the wheel is treated
// as airborne for the tick and a diagnostic counter is incremented.
type RaycastProvider interface {
	Cast(origin, dir mgl64.Vec3, maxDist float64) (RaycastHit, bool, error)
}

// SurfaceLookup is the surface-classification collaborator. A non-nil
// error falls back to Config.DefaultFriction on tarmac and increments a
// diagnostic counter; it never fails the tick.
type SurfaceLookup interface {
	SurfaceAt(point mgl64.Vec3) (Surface, error)
}
