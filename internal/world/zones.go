package world

import (
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// ZoneDef declares a surface zone as a polygon over the ground plane.
// Points are (x, z) world coordinates in meters; the ring is closed
// automatically if the definition leaves it open.
type ZoneDef struct {
	Name     string       `json:"name" mapstructure:"name"`
	Surface  string       `json:"surface" mapstructure:"surface"`
	Friction float64      `json:"friction" mapstructure:"friction"`
	Points   [][2]float64 `json:"points" mapstructure:"points"`
}

// zone is a compiled ZoneDef. The bounding box rejects most queries
// before the polygon test runs.
type zone struct {
	name       string
	surface    vehicle.Surface
	polygon    geom.Geometry
	minX, maxX float64
	minZ, maxZ float64
}

// ZoneSet resolves ground contact points to surfaces. Zones are tested
// in declaration order and the first containing polygon wins; points in
// no zone get the default surface.
type ZoneSet struct {
	zones      []zone
	defaultSrf vehicle.Surface
}

// UniformZones is a ZoneSet with no polygons: every point resolves to srf.
func UniformZones(srf vehicle.Surface) *ZoneSet {
	return &ZoneSet{defaultSrf: srf}
}

// NewZoneSet compiles zone definitions. Unknown surface names, degenerate
// polygons, and non-positive frictions are reported as errors.
func NewZoneSet(defs []ZoneDef, defaultSrf vehicle.Surface) (*ZoneSet, error) {
	zs := &ZoneSet{
		zones:      make([]zone, 0, len(defs)),
		defaultSrf: defaultSrf,
	}
	for i, def := range defs {
		z, err := compileZone(def)
		if err != nil {
			return nil, fmt.Errorf("zone %d: %w", i, err)
		}
		zs.zones = append(zs.zones, z)
	}
	return zs, nil
}

func compileZone(def ZoneDef) (zone, error) {
	kind, err := vehicle.ParseSurfaceKind(def.Surface)
	if err != nil {
		return zone{}, fmt.Errorf("%q: %w", def.Name, err)
	}
	if def.Friction <= 0 {
		return zone{}, fmt.Errorf("%q: friction must be positive, got %v", def.Name, def.Friction)
	}
	if len(def.Points) < 3 {
		return zone{}, fmt.Errorf("%q: polygon needs at least 3 points, got %d", def.Name, len(def.Points))
	}

	pts := def.Points
	if pts[0] != pts[len(pts)-1] {
		closed := make([][2]float64, 0, len(pts)+1)
		closed = append(closed, pts...)
		closed = append(closed, pts[0])
		pts = closed
	}

	flat := make([]float64, 0, len(pts)*2)
	minX, maxX := pts[0][0], pts[0][0]
	minZ, maxZ := pts[0][1], pts[0][1]
	for _, p := range pts {
		flat = append(flat, p[0], p[1])
		minX = math.Min(minX, p[0])
		maxX = math.Max(maxX, p[0])
		minZ = math.Min(minZ, p[1])
		maxZ = math.Max(maxZ, p[1])
	}

	ring := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	poly := geom.NewPolygon([]geom.LineString{ring})
	if err := poly.Validate(); err != nil {
		return zone{}, fmt.Errorf("%q: invalid polygon: %w", def.Name, err)
	}

	return zone{
		name:    def.Name,
		surface: vehicle.Surface{Kind: kind, Friction: def.Friction},
		polygon: poly.AsGeometry(),
		minX:    minX,
		maxX:    maxX,
		minZ:    minZ,
		maxZ:    maxZ,
	}, nil
}

// SurfaceAt classifies the ground at world coordinates (x, z).
func (zs *ZoneSet) SurfaceAt(x, z float64) vehicle.Surface {
	for i := range zs.zones {
		zn := &zs.zones[i]
		if x < zn.minX || x > zn.maxX || z < zn.minZ || z > zn.maxZ {
			continue
		}
		pt := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x, Y: z}})
		if geom.Intersects(zn.polygon, pt.AsGeometry()) {
			return zn.surface
		}
	}
	return zs.defaultSrf
}

// Len reports the number of compiled zones.
func (zs *ZoneSet) Len() int { return len(zs.zones) }
