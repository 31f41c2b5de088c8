package sim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/stuntrig/vdyn/internal/world"
	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// ErrUnknownScenario is returned when a scenario name resolves to nothing.
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario is a self-contained test drive: the terrain it runs on, where
// the car spawns, and the scripted driver input. Built-in scenarios are
// the regression fleet; ad-hoc ones can be assembled from config.
type Scenario struct {
	Name        string
	Description string

	Duration float64 // seconds; the runner stops here even if the script is longer

	Start    mgl64.Vec3 // chassis spawn position
	StartYaw float64    // rad about +Y, 0 faces +X

	Profile        world.Profile
	Zones          []world.ZoneDef
	DefaultSurface vehicle.Surface

	Script string
}

// Ticks converts the scenario duration to a tick count at the fixed rate.
func (s Scenario) Ticks() uint64 {
	return uint64(s.Duration * vehicle.TickRate)
}

// StartOrientation returns the spawn orientation as a yaw rotation.
func (s Scenario) StartOrientation() mgl64.Quat {
	return mgl64.QuatRotate(s.StartYaw, mgl64.Vec3{0, 1, 0})
}

// World assembles the terrain and zone overlay the scenario drives on.
func (s Scenario) World() (*world.World, error) {
	profile := s.Profile
	if profile == nil {
		profile = world.Flat{}
	}
	srf := s.DefaultSurface
	if srf.Friction <= 0 {
		srf = vehicle.Surface{Kind: vehicle.SurfaceTarmac, Friction: 1.0}
	}
	if len(s.Zones) == 0 {
		return world.New(profile, world.UniformZones(srf)), nil
	}
	zones, err := world.NewZoneSet(s.Zones, srf)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return world.New(profile, zones), nil
}

var builtins = map[string]func() Scenario{
	"full_throttle": fullThrottle,
	"slalom":        slalom,
	"jump_ramp":     jumpRamp,
	"crash_test":    crashTest,
	"reverse_park":  reversePark,
	"rally_sprint":  rallySprint,
}

// Builtin resolves a built-in scenario by name.
func Builtin(name string) (Scenario, error) {
	ctor, ok := builtins[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w %q", ErrUnknownScenario, name)
	}
	return ctor(), nil
}

// BuiltinNames lists the built-in scenarios in stable order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Spawn height that drops the chassis a hand's width onto its springs;
// the suspension settles within the first second of every scenario.
const spawnHeight = 0.8

func fullThrottle() Scenario {
	return Scenario{
		Name:        "full_throttle",
		Description: "Standing launch on level tarmac, pedal pinned until the governor cuts fuel.",
		Duration:    30,
		Start:       mgl64.Vec3{0, spawnHeight, 0},
		Profile:     world.Flat{},
		Script: `
# Hold it flat for the whole run.
0..30 throttle=1
`,
	}
}

func slalom() Scenario {
	return Scenario{
		Name:        "slalom",
		Description: "Alternating lane changes over a whoops section, through gravel and across an ice sheet.",
		Duration:    30,
		Start:       mgl64.Vec3{0, spawnHeight, 0},
		Profile:     world.Waves{Amplitude: 0.1, Wavelength: 35},
		Zones: []world.ZoneDef{
			{
				Name:     "gravel_cut",
				Surface:  "gravel",
				Friction: 0.9,
				Points:   [][2]float64{{100, -80}, {200, -80}, {200, 80}, {100, 80}},
			},
			{
				Name:     "ice_sheet",
				Surface:  "ice",
				Friction: 1.0,
				Points:   [][2]float64{{320, -80}, {420, -80}, {420, 80}, {320, 80}},
			},
		},
		Script: `
# Base throttle with a two-second weave each way, then brake off the speed.
0..26 throttle=0.65
4..6 steer=0.45
6..8 steer=-0.45
8..10 steer=0.45
10..12 steer=-0.45
12..14 steer=0.45
14..16 steer=-0.45
16..18 steer=0.45
18..20 steer=-0.45
20..22 steer=0.45
22..24 steer=-0.45
24..26 steer=0.45
26..30 brake=0.8
`,
	}
}

func jumpRamp() Scenario {
	return Scenario{
		Name:        "jump_ramp",
		Description: "Full send off a kicker into a gravel runoff, then haul it down to a stop.",
		Duration:    18,
		Start:       mgl64.Vec3{0, spawnHeight, 0},
		Profile:     world.Kicker{StartX: 60, EndX: 72, Height: 3.2},
		Zones: []world.ZoneDef{
			{
				Name:     "gravel_runoff",
				Surface:  "gravel",
				Friction: 0.85,
				Points:   [][2]float64{{72, -15}, {160, -15}, {160, 15}, {72, 15}},
			},
		},
		Script: `
# Launch, fly, land, brake. The handbrake holds it at the end.
0..12 throttle=1
12..17 brake=0.8
17..18 handbrake
`,
	}
}

func crashTest() Scenario {
	return Scenario{
		Name:        "crash_test",
		Description: "Slow roll through three scripted hits, one per damage severity class.",
		Duration:    12,
		Start:       mgl64.Vec3{0, spawnHeight, 0},
		Profile:     world.Flat{},
		Script: `
# Impulse magnitudes bracket the minor, major and catastrophic thresholds.
0..12 throttle=0.15
2 impulse=3000@0,0,1
5 impulse=12000@0,0,-1
8 impulse=30000@-1,0,0.2
`,
	}
}

func reversePark() Scenario {
	return Scenario{
		Name:        "reverse_park",
		Description: "Two-pedal reverse out of a bay, swing the nose, pull away and park on the handbrake.",
		Duration:    10,
		Start:       mgl64.Vec3{0, spawnHeight, 0},
		Profile:     world.Flat{},
		Script: `
# A brake press at a standstill engages reverse; throttle swaps it back.
0..3 brake=0.45
1..3 steer=0.7
3..5 throttle=0.8
4..7 steer=-0.35
5..8 throttle=0.45
8..10 handbrake
`,
	}
}

func rallySprint() Scenario {
	return Scenario{
		Name:        "rally_sprint",
		Description: "Flat-out sprint across seeded rolling dirt with three committed direction changes.",
		Duration:    28,
		Start:       mgl64.Vec3{-350, 2.0, 0},
		Profile:     world.NewNoiseGrid(1847, 96, 96, 8, 1.1),
		DefaultSurface: vehicle.Surface{
			Kind:     vehicle.SurfaceDirt,
			Friction: 0.9,
		},
		Script: `
# Let the car settle onto the dirt before the launch.
1..25 throttle=0.8
6..9 steer=0.3
12..15 steer=-0.4
18..20 steer=0.25
25..28 brake=0.8
`,
	}
}
