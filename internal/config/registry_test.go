package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "drift.yaml"),
		[]byte("name: drift\nmaxSpeed: 55\n"),
		0644,
	))
	return NewRegistry(dir), dir
}

func TestRegistry_GetLoadsFromDisk(t *testing.T) {
	r, _ := newTestRegistry(t)

	p, err := r.Get("drift")
	require.NoError(t, err)
	assert.Equal(t, "drift", p.Name)
	assert.Equal(t, 55.0, p.Vehicle.MaxSpeed)
}

func TestRegistry_GetCaches(t *testing.T) {
	r, dir := newTestRegistry(t)

	first, err := r.Get("drift")
	require.NoError(t, err)

	// Corrupt the file; the cached copy must still be served.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drift.yaml"), []byte(": not yaml"), 0644))

	again, err := r.Get("drift")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Get("missing")
	require.Error(t, err)
}

func TestRegistry_PutAndNames(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.Put(Preset{Name: "custom", Vehicle: vehicle.DefaultConfig()})

	p, err := r.Get("custom")
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name)

	_, err = r.Get("drift")
	require.NoError(t, err)

	assert.Equal(t, []string{"custom", "drift"}, r.Names())
}

func TestRegistry_Reset(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Get("drift")
	require.NoError(t, err)
	require.Len(t, r.Names(), 1)

	r.Reset()
	assert.Empty(t, r.Names())
}
