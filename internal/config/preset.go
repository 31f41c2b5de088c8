package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// Preset is a named vehicle tuning loaded from a YAML file.
type Preset struct {
	Name        string
	Description string
	Vehicle     vehicle.Config
}

// Preset files overlay vehicle.DefaultConfig at section granularity:
// an absent section keeps the default, a present section replaces it
// whole. surfaceGrip is the exception and overlays per surface name.
type presetDoc struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`

	Chassis         *chassisDoc        `mapstructure:"chassis"`
	Wheels          *wheelsDoc         `mapstructure:"wheels"`
	Suspension      *suspensionDoc     `mapstructure:"suspension"`
	Tire            *tireDoc           `mapstructure:"tire"`
	SurfaceGrip     map[string]float64 `mapstructure:"surfaceGrip"`
	DefaultFriction *float64           `mapstructure:"defaultFriction"`
	Engine          *engineDoc         `mapstructure:"engine"`
	Transmission    *transmissionDoc   `mapstructure:"transmission"`
	Brakes          *brakesDoc         `mapstructure:"brakes"`
	MaxSteerAngle   *float64           `mapstructure:"maxSteerAngle"`
	Aero            *aeroDoc           `mapstructure:"aero"`
	MaxSpeed        *float64           `mapstructure:"maxSpeed"`
	Reverse         *float64           `mapstructure:"reverseEngageSpeed"`
	AngularDamping  *float64           `mapstructure:"angularDamping"`
	Damage          *damageDoc         `mapstructure:"damage"`
}

type chassisDoc struct {
	Mass      float64    `mapstructure:"mass"`
	COMOffset [3]float64 `mapstructure:"comOffset"`
	BodyDims  [3]float64 `mapstructure:"bodyDims"`
	Gravity   float64    `mapstructure:"gravity"`
}

type wheelDoc struct {
	Offset [3]float64 `mapstructure:"offset"`
	Radius float64    `mapstructure:"radius"`
	Width  float64    `mapstructure:"width"`
	Mass   float64    `mapstructure:"mass"`
}

type wheelsDoc struct {
	FrontLeft  wheelDoc `mapstructure:"frontLeft"`
	FrontRight wheelDoc `mapstructure:"frontRight"`
	RearLeft   wheelDoc `mapstructure:"rearLeft"`
	RearRight  wheelDoc `mapstructure:"rearRight"`
}

type axleDoc struct {
	Stiffness  float64 `mapstructure:"stiffness"`
	Damping    float64 `mapstructure:"damping"`
	RestLength float64 `mapstructure:"restLength"`
	MaxTravel  float64 `mapstructure:"maxTravel"`
}

type suspensionDoc struct {
	Front axleDoc `mapstructure:"front"`
	Rear  axleDoc `mapstructure:"rear"`
}

type tireDoc struct {
	LongStiffness     float64 `mapstructure:"longStiffness"`
	LatStiffness      float64 `mapstructure:"latStiffness"`
	MaxForwardForce   float64 `mapstructure:"maxForwardForce"`
	MaxLateralForce   float64 `mapstructure:"maxLateralForce"`
	LoadGripFactor    float64 `mapstructure:"loadGripFactor"`
	RollingResistCoef float64 `mapstructure:"rollingResistCoef"`
}

type curvePointDoc struct {
	RPM    float64 `mapstructure:"rpm"`
	Torque float64 `mapstructure:"torque"`
}

type engineDoc struct {
	IdleRPM float64         `mapstructure:"idleRPM"`
	Curve   []curvePointDoc `mapstructure:"curve"`
}

type transmissionDoc struct {
	Ratios        []float64 `mapstructure:"ratios"`
	ReverseRatio  float64   `mapstructure:"reverseRatio"`
	FinalDrive    float64   `mapstructure:"finalDrive"`
	UpshiftFrac   float64   `mapstructure:"upshiftFrac"`
	DownshiftFrac float64   `mapstructure:"downshiftFrac"`
	ShiftDwell    float64   `mapstructure:"shiftDwell"`
	Drive         string    `mapstructure:"drive"`
}

type brakesDoc struct {
	Torque          float64 `mapstructure:"torque"`
	FrontBias       float64 `mapstructure:"frontBias"`
	HandbrakeTorque float64 `mapstructure:"handbrakeTorque"`
}

type aeroDoc struct {
	DragCoef      float64 `mapstructure:"dragCoef"`
	DownforceCoef float64 `mapstructure:"downforceCoef"`
}

type damageDoc struct {
	MinorImpulse        float64 `mapstructure:"minorImpulse"`
	MajorImpulse        float64 `mapstructure:"majorImpulse"`
	CatastrophicImpulse float64 `mapstructure:"catastrophicImpulse"`
	MinorDelta          float64 `mapstructure:"minorDelta"`
	MajorDelta          float64 `mapstructure:"majorDelta"`
	CatastrophicDelta   float64 `mapstructure:"catastrophicDelta"`
	StructuralWeight    float64 `mapstructure:"structuralWeight"`
	CosmeticWeight      float64 `mapstructure:"cosmeticWeight"`
	MechanicalWeight    float64 `mapstructure:"mechanicalWeight"`
	EnginePenaltyMax    float64 `mapstructure:"enginePenaltyMax"`
	GripPenaltyMax      float64 `mapstructure:"gripPenaltyMax"`
}

// LoadPreset reads a preset file and applies it over the default tuning.
// The result is validated before it is returned.
func LoadPreset(path string) (Preset, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Preset{}, fmt.Errorf("reading preset %s: %w", path, err)
	}

	var doc presetDoc
	if err := v.Unmarshal(&doc); err != nil {
		return Preset{}, fmt.Errorf("parsing preset %s: %w", path, err)
	}

	cfg, err := doc.apply(vehicle.DefaultConfig())
	if err != nil {
		return Preset{}, fmt.Errorf("preset %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Preset{}, fmt.Errorf("preset %s: %w", path, err)
	}

	name := doc.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return Preset{Name: name, Description: doc.Description, Vehicle: cfg}, nil
}

// PresetPath resolves a preset name inside the presets directory.
func PresetPath(presetsDir, name string) string {
	return filepath.Join(presetsDir, name+".yaml")
}

func (d *presetDoc) apply(cfg vehicle.Config) (vehicle.Config, error) {
	if c := d.Chassis; c != nil {
		cfg.Mass = c.Mass
		cfg.COMOffset = mgl64.Vec3(c.COMOffset)
		cfg.BodyDims = mgl64.Vec3(c.BodyDims)
		cfg.Gravity = c.Gravity
	}

	if w := d.Wheels; w != nil {
		corners := [4]wheelDoc{
			vehicle.WheelFrontLeft:  w.FrontLeft,
			vehicle.WheelFrontRight: w.FrontRight,
			vehicle.WheelRearLeft:   w.RearLeft,
			vehicle.WheelRearRight:  w.RearRight,
		}
		for i, c := range corners {
			cfg.Wheels[i].Offset = mgl64.Vec3(c.Offset)
			cfg.Wheels[i].Radius = c.Radius
			cfg.Wheels[i].Width = c.Width
			cfg.Wheels[i].Mass = c.Mass
		}
	}

	if s := d.Suspension; s != nil {
		front := vehicle.SuspensionConfig(s.Front)
		rear := vehicle.SuspensionConfig(s.Rear)
		cfg.Wheels[vehicle.WheelFrontLeft].Suspension = front
		cfg.Wheels[vehicle.WheelFrontRight].Suspension = front
		cfg.Wheels[vehicle.WheelRearLeft].Suspension = rear
		cfg.Wheels[vehicle.WheelRearRight].Suspension = rear
	}

	if t := d.Tire; t != nil {
		cfg.Tire = vehicle.TireConfig(*t)
	}

	for name, grip := range d.SurfaceGrip {
		kind, err := vehicle.ParseSurfaceKind(name)
		if err != nil {
			return cfg, fmt.Errorf("surfaceGrip: %w", err)
		}
		cfg.SurfaceGrip[kind] = grip
	}

	if d.DefaultFriction != nil {
		cfg.DefaultFriction = *d.DefaultFriction
	}

	if e := d.Engine; e != nil {
		curve := make(vehicle.TorqueCurve, len(e.Curve))
		for i, p := range e.Curve {
			curve[i] = vehicle.CurvePoint{RPM: p.RPM, Torque: p.Torque}
		}
		cfg.Engine = vehicle.EngineConfig{Curve: curve, IdleRPM: e.IdleRPM}
	}

	if t := d.Transmission; t != nil {
		drive := cfg.Transmission.Drive
		if t.Drive != "" {
			var err error
			drive, err = vehicle.ParseDriveType(t.Drive)
			if err != nil {
				return cfg, fmt.Errorf("transmission: %w", err)
			}
		}
		cfg.Transmission = vehicle.TransmissionConfig{
			Ratios:        t.Ratios,
			ReverseRatio:  t.ReverseRatio,
			FinalDrive:    t.FinalDrive,
			UpshiftFrac:   t.UpshiftFrac,
			DownshiftFrac: t.DownshiftFrac,
			ShiftDwell:    t.ShiftDwell,
			Drive:         drive,
		}
	}

	if b := d.Brakes; b != nil {
		cfg.Brakes = vehicle.BrakeConfig(*b)
	}
	if d.MaxSteerAngle != nil {
		cfg.MaxSteerAngle = *d.MaxSteerAngle
	}
	if a := d.Aero; a != nil {
		cfg.Aero = vehicle.AeroConfig(*a)
	}
	if d.MaxSpeed != nil {
		cfg.MaxSpeed = *d.MaxSpeed
	}
	if d.Reverse != nil {
		cfg.ReverseEngageSpeed = *d.Reverse
	}
	if d.AngularDamping != nil {
		cfg.AngularDamping = *d.AngularDamping
	}
	if dm := d.Damage; dm != nil {
		cfg.Damage = vehicle.DamageConfig(*dm)
	}

	return cfg, nil
}
