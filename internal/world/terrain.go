// Package world provides the ground the simulation drives on: analytic
// terrain profiles raycast by the vehicle's wheels, and polygon surface
// zones that classify what the tires are touching. It implements both
// provider interfaces consumed by pkg/vehicle.
package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// Profile is a terrain height function over the ground plane. X and Z are
// world coordinates; the returned height is the terrain surface Y.
type Profile interface {
	HeightAt(x, z float64) float64
}

// Flat is level ground at a fixed height.
type Flat struct {
	Height float64
}

func (f Flat) HeightAt(x, z float64) float64 { return f.Height }

// Kicker is a jump ramp: ground rises linearly from StartX to EndX, then
// drops back to flat. Driving off the high edge goes airborne.
type Kicker struct {
	StartX float64
	EndX   float64
	Height float64
}

func (k Kicker) HeightAt(x, z float64) float64 {
	if x <= k.StartX || x >= k.EndX {
		return 0
	}
	return k.Height * (x - k.StartX) / (k.EndX - k.StartX)
}

// Waves is a sinusoidal whoops section along X, for suspension torture
// tests.
type Waves struct {
	Amplitude  float64
	Wavelength float64
}

func (w Waves) HeightAt(x, z float64) float64 {
	if w.Wavelength == 0 {
		return 0
	}
	return w.Amplitude * (1 + math.Sin(2*math.Pi*x/w.Wavelength)) / 2
}

// Grid is a sampled heightfield with bilinear interpolation. Heights is
// indexed [row][col] where rows advance along +Z and columns along +X;
// queries outside the grid clamp to the border samples.
type Grid struct {
	Heights [][]float64
	Cell    float64 // sample spacing in meters
	OriginX float64 // world position of Heights[0][0]
	OriginZ float64
}

func (g Grid) HeightAt(x, z float64) float64 {
	rows := len(g.Heights)
	if rows == 0 || len(g.Heights[0]) == 0 || g.Cell <= 0 {
		return 0
	}
	cols := len(g.Heights[0])

	fx := (x - g.OriginX) / g.Cell
	fz := (z - g.OriginZ) / g.Cell
	fx = clampF(fx, 0, float64(cols-1))
	fz = clampF(fz, 0, float64(rows-1))

	c0 := int(fx)
	r0 := int(fz)
	c1 := c0 + 1
	r1 := r0 + 1
	if c1 > cols-1 {
		c1 = cols - 1
	}
	if r1 > rows-1 {
		r1 = rows - 1
	}
	tx := fx - float64(c0)
	tz := fz - float64(r0)

	top := g.Heights[r0][c0] + tx*(g.Heights[r0][c1]-g.Heights[r0][c0])
	bottom := g.Heights[r1][c0] + tx*(g.Heights[r1][c1]-g.Heights[r1][c0])
	return top + tz*(bottom-top)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Raymarch tuning. The march step bounds how thin a terrain feature can
// be without being stepped over; the bisection count fixes precision and
// keeps the cast deterministic.
const (
	marchStep     = 0.05 // m
	bisectRounds  = 32
	normalEpsilon = 0.01 // m, finite-difference width for surface normals
)

// World pairs a terrain profile with a zone overlay and implements the
// vehicle.RaycastProvider and vehicle.SurfaceLookup interfaces.
type World struct {
	profile Profile
	zones   *ZoneSet
}

// New assembles a world. zones may be nil for uniform terrain; the zone
// set's default surface then falls back to dry tarmac.
func New(profile Profile, zones *ZoneSet) *World {
	if zones == nil {
		zones = UniformZones(vehicle.Surface{Kind: vehicle.SurfaceTarmac, Friction: 1.0})
	}
	return &World{profile: profile, zones: zones}
}

// Cast marches the ray against the height function and bisects the
// crossing interval. The march is fixed-step so identical casts return
// identical hits.
func (w *World) Cast(origin, dir mgl64.Vec3, maxDist float64) (vehicle.RaycastHit, bool, error) {
	if maxDist <= 0 {
		return vehicle.RaycastHit{}, false, nil
	}

	below := func(t float64) bool {
		p := origin.Add(dir.Mul(t))
		return p.Y() <= w.profile.HeightAt(p.X(), p.Z())
	}

	if below(0) {
		// Origin already under the surface: immediate contact.
		return w.hitAt(origin, dir, 0), true, nil
	}

	prev := 0.0
	for t := marchStep; ; t += marchStep {
		if t > maxDist {
			t = maxDist
		}
		if below(t) {
			lo, hi := prev, t
			for i := 0; i < bisectRounds; i++ {
				mid := (lo + hi) / 2
				if below(mid) {
					hi = mid
				} else {
					lo = mid
				}
			}
			return w.hitAt(origin, dir, hi), true, nil
		}
		if t >= maxDist {
			return vehicle.RaycastHit{}, false, nil
		}
		prev = t
	}
}

func (w *World) hitAt(origin, dir mgl64.Vec3, t float64) vehicle.RaycastHit {
	p := origin.Add(dir.Mul(t))
	return vehicle.RaycastHit{
		Point:    p,
		Normal:   w.normalAt(p.X(), p.Z()),
		Distance: t,
	}
}

// normalAt derives the surface normal from central height differences.
func (w *World) normalAt(x, z float64) mgl64.Vec3 {
	dx := (w.profile.HeightAt(x+normalEpsilon, z) - w.profile.HeightAt(x-normalEpsilon, z)) / (2 * normalEpsilon)
	dz := (w.profile.HeightAt(x, z+normalEpsilon) - w.profile.HeightAt(x, z-normalEpsilon)) / (2 * normalEpsilon)
	return mgl64.Vec3{-dx, 1, -dz}.Normalize()
}

// SurfaceAt classifies the ground at a contact point via the zone overlay.
func (w *World) SurfaceAt(point mgl64.Vec3) (vehicle.Surface, error) {
	return w.zones.SurfaceAt(point.X(), point.Z()), nil
}
