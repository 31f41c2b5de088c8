package sim

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// Step is one parsed script line: a time window, the input fields the
// line sets, and an optional one-shot impulse fired when the window
// opens. Unset input fields fall through to earlier steps.
type Step struct {
	From, To float64 // seconds

	Throttle  float64
	Brake     float64
	Steer     float64
	Handbrake bool

	hasThrottle  bool
	hasBrake     bool
	hasSteer     bool
	hasHandbrake bool

	ImpulseMag float64
	ImpulseDir mgl64.Vec3 // unit vector, world space
	HasImpulse bool
}

// Script is a parsed input script. Steps layer in file order: at any
// time t the input starts from zero and each active step overwrites the
// fields it sets.
type Script struct {
	steps []Step
}

// ParseScript parses a scenario input script. Lines look like
//
//	0..26 throttle=0.65
//	4..6 steer=0.45
//	7 impulse=22000@-1,0,0.2
//	9..12 brake=1 handbrake
//
// Blank lines and lines starting with # are skipped. Unset fields fall
// through to earlier active steps, so a coast needs explicit zeros.
func ParseScript(src string) (*Script, error) {
	s := &Script{}

	scanner := bufio.NewScanner(strings.NewReader(src))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		step, err := parseStep(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		s.steps = append(s.steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading script: %w", err)
	}

	return s, nil
}

func parseStep(line string) (Step, error) {
	var step Step

	fields := strings.Fields(line)

	from, to, err := parseTimeRange(fields[0])
	if err != nil {
		return step, err
	}
	step.From = from
	step.To = to

	for _, tok := range fields[1:] {
		if tok == "handbrake" {
			step.Handbrake = true
			step.hasHandbrake = true
			continue
		}

		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return step, fmt.Errorf("unknown directive %q", tok)
		}

		switch key {
		case "throttle":
			step.Throttle, err = strconv.ParseFloat(value, 64)
			if err != nil {
				return step, fmt.Errorf("error parsing throttle: %w", err)
			}
			step.hasThrottle = true
		case "brake":
			step.Brake, err = strconv.ParseFloat(value, 64)
			if err != nil {
				return step, fmt.Errorf("error parsing brake: %w", err)
			}
			step.hasBrake = true
		case "steer":
			step.Steer, err = strconv.ParseFloat(value, 64)
			if err != nil {
				return step, fmt.Errorf("error parsing steer: %w", err)
			}
			step.hasSteer = true
		case "impulse":
			step.ImpulseMag, step.ImpulseDir, err = parseImpulse(value)
			if err != nil {
				return step, err
			}
			step.HasImpulse = true
		default:
			return step, fmt.Errorf("unknown directive %q", tok)
		}
	}

	return step, nil
}

// parseTimeRange parses "a..b" or a single "a" (an instant, used for
// impulses).
func parseTimeRange(spec string) (from, to float64, err error) {
	fromStr, toStr, ranged := strings.Cut(spec, "..")

	from, err = strconv.ParseFloat(fromStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("error parsing time range %q: %w", spec, err)
	}
	to = from
	if ranged {
		to, err = strconv.ParseFloat(toStr, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("error parsing time range %q: %w", spec, err)
		}
	}

	if from < 0 {
		return 0, 0, fmt.Errorf("time range %q starts before zero", spec)
	}
	if to < from {
		return 0, 0, fmt.Errorf("time range %q ends before it starts", spec)
	}
	return from, to, nil
}

// parseImpulse parses "magnitude@x,y,z". The direction is normalized.
func parseImpulse(value string) (float64, mgl64.Vec3, error) {
	magStr, dirStr, ok := strings.Cut(value, "@")
	if !ok {
		return 0, mgl64.Vec3{}, fmt.Errorf("impulse %q missing @direction", value)
	}

	mag, err := strconv.ParseFloat(magStr, 64)
	if err != nil {
		return 0, mgl64.Vec3{}, fmt.Errorf("error parsing impulse magnitude: %w", err)
	}
	if mag <= 0 {
		return 0, mgl64.Vec3{}, fmt.Errorf("impulse magnitude %v must be positive", mag)
	}

	parts := strings.Split(dirStr, ",")
	if len(parts) != 3 {
		return 0, mgl64.Vec3{}, fmt.Errorf("impulse direction %q needs three components", dirStr)
	}
	var dir mgl64.Vec3
	for i, p := range parts {
		dir[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, mgl64.Vec3{}, fmt.Errorf("error parsing impulse direction: %w", err)
		}
	}
	if dir.Len() == 0 {
		return 0, mgl64.Vec3{}, fmt.Errorf("impulse direction %q is zero", dirStr)
	}

	return mag, dir.Normalize(), nil
}

// InputAt returns the driver input at simulated time t. Steps whose
// window contains t apply in file order, later setters winning.
func (s *Script) InputAt(t float64) vehicle.Input {
	var in vehicle.Input
	for i := range s.steps {
		step := &s.steps[i]
		if t < step.From || t >= step.To {
			continue
		}
		if step.hasThrottle {
			in.Throttle = step.Throttle
		}
		if step.hasBrake {
			in.Brake = step.Brake
		}
		if step.hasSteer {
			in.Steering = step.Steer
		}
		if step.hasHandbrake {
			in.Handbrake = step.Handbrake
		}
	}
	return in
}

// Steps returns the parsed steps in file order.
func (s *Script) Steps() []Step {
	return s.steps
}

// Duration returns the end of the last step window.
func (s *Script) Duration() float64 {
	var d float64
	for i := range s.steps {
		if s.steps[i].To > d {
			d = s.steps[i].To
		}
	}
	return d
}
