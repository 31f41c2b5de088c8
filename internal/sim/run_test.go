package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContext_Lifecycle(t *testing.T) {
	rc := NewRunContext()
	assert.Empty(t, rc.RunID())
	assert.Nil(t, rc.LogAttrs())

	started := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	rc.Begin("r-42", "slalom", "street", started)

	assert.Equal(t, "r-42", rc.RunID())
	assert.Equal(t, "slalom", rc.Scenario())
	assert.Equal(t, "street", rc.Preset())
	assert.Equal(t, started, rc.StartedAt())

	rc.End()
	assert.Empty(t, rc.RunID())
	assert.Empty(t, rc.Scenario())
	assert.True(t, rc.StartedAt().IsZero())
	assert.Nil(t, rc.LogAttrs())
}

func TestRunContext_BeginRewindsTick(t *testing.T) {
	rc := NewRunContext()
	rc.Begin("r-1", "a", "p", time.Now())
	rc.SetTick(900)
	require.Equal(t, uint64(900), rc.Tick())

	rc.Begin("r-2", "b", "p", time.Now())
	assert.Equal(t, uint64(0), rc.Tick())
}

func TestRunContext_LogAttrs(t *testing.T) {
	rc := NewRunContext()
	rc.Begin("r-7", "jump_ramp", "street", time.Now())
	rc.SetTick(360)

	attrs := rc.LogAttrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, "run_id", attrs[0].Key)
	assert.Equal(t, "r-7", attrs[0].Value.String())
	assert.Equal(t, "tick", attrs[1].Key)
	assert.Equal(t, uint64(360), attrs[1].Value.Uint64())
}
