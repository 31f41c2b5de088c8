package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

func TestParseScript_SingleStep(t *testing.T) {
	s, err := ParseScript("0..26 throttle=0.65")
	require.NoError(t, err)
	require.Len(t, s.Steps(), 1)

	step := s.Steps()[0]
	assert.Equal(t, 0.0, step.From)
	assert.Equal(t, 26.0, step.To)
	assert.Equal(t, 0.65, step.Throttle)
	assert.False(t, step.HasImpulse)
}

func TestParseScript_SkipsBlankAndComments(t *testing.T) {
	s, err := ParseScript(`
# scripted lane change
0..10 throttle=1

4..6 steer=-0.4
`)
	require.NoError(t, err)
	assert.Len(t, s.Steps(), 2)
}

func TestParseScript_BadLines(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"garbage time range", "x..2 throttle=1"},
		{"negative start", "-1..2 throttle=1"},
		{"backwards range", "5..2 throttle=1"},
		{"unknown directive", "0..2 boost=1"},
		{"bare value", "0..2 throttle"},
		{"bad throttle", "0..2 throttle=full"},
		{"bad brake", "0..2 brake=much"},
		{"bad steer", "0..2 steer=left"},
		{"impulse without direction", "2 impulse=3000"},
		{"impulse bad magnitude", "2 impulse=lots@1,0,0"},
		{"impulse zero magnitude", "2 impulse=0@1,0,0"},
		{"impulse two components", "2 impulse=3000@1,0"},
		{"impulse zero direction", "2 impulse=3000@0,0,0"},
		{"impulse bad component", "2 impulse=3000@1,zero,0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestParseScript_ErrorNamesLine(t *testing.T) {
	_, err := ParseScript("0..5 throttle=1\n6..4 brake=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseScript_Handbrake(t *testing.T) {
	s, err := ParseScript("9..12 brake=1 handbrake")
	require.NoError(t, err)

	in := s.InputAt(10)
	assert.Equal(t, 1.0, in.Brake)
	assert.True(t, in.Handbrake)
}

func TestParseScript_Impulse(t *testing.T) {
	s, err := ParseScript("7 impulse=22000@-1,0,0.2")
	require.NoError(t, err)
	require.Len(t, s.Steps(), 1)

	step := s.Steps()[0]
	assert.True(t, step.HasImpulse)
	assert.Equal(t, 22000.0, step.ImpulseMag)
	assert.InDelta(t, 1.0, step.ImpulseDir.Len(), 1e-12)
	assert.InDelta(t, -0.980580, step.ImpulseDir.X(), 1e-6)

	// An instant never contributes to driver input.
	in := s.InputAt(7)
	assert.Equal(t, vehicle.Input{}, in)
}

func TestScript_InputLayering(t *testing.T) {
	s, err := ParseScript(`
0..26 throttle=0.65
4..6 steer=0.45
5..7 steer=-0.45
26..30 brake=1
`)
	require.NoError(t, err)

	tests := []struct {
		name     string
		t        float64
		throttle float64
		brake    float64
		steer    float64
	}{
		{"before steering", 1, 0.65, 0, 0},
		{"first steer window", 4.5, 0.65, 0, 0.45},
		{"overlap, later line wins", 5.5, 0.65, 0, -0.45},
		{"second window only", 6.5, 0.65, 0, -0.45},
		{"steer released", 8, 0.65, 0, 0},
		{"window end is exclusive", 26, 0, 1, 0},
		{"past everything", 31, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := s.InputAt(tt.t)
			assert.Equal(t, tt.throttle, in.Throttle)
			assert.Equal(t, tt.brake, in.Brake)
			assert.Equal(t, tt.steer, in.Steering)
		})
	}
}

func TestScript_Duration(t *testing.T) {
	s, err := ParseScript("0..10 throttle=1\n12 impulse=5000@0,0,1\n4..6 steer=1")
	require.NoError(t, err)
	assert.Equal(t, 12.0, s.Duration())

	empty, err := ParseScript("# nothing but comments")
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Duration())
}
