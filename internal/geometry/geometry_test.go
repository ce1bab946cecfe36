package geometry_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winchlab/servoctl/internal/errors"
	"github.com/winchlab/servoctl/internal/geometry"
)

const validGeometry = `
platform:
  mass: 12.5
  gravity_z: -9.81
  cable_tension_min: 10
  cable_tension_max: 800
actuators:
  - slave_position: 0
    active: true
    winch:
      drum_radius: 0.1
      counts_per_rev: 1048576
    pulley:
      radius: 0.02
      position: [0.5, 0.5, 2.0]
  - slave_position: 1
    active: false
    winch:
      drum_radius: 0.1
      counts_per_rev: 1048576
      transmission_ratio: 2.5
    pulley:
      radius: 0.02
      position: [-0.5, 0.5, 2.0]
`

func writeGeometry(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "robot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	params, err := geometry.Load(writeGeometry(t, validGeometry))
	require.NoError(t, err)

	assert.InDelta(t, 12.5, params.Platform.Mass, 1e-9)
	assert.Len(t, params.Actuators, 2)

	a0, ok := params.Actuator(0)
	require.True(t, ok)
	assert.True(t, a0.Active)
	assert.InDelta(t, 1.0, a0.Winch.TransmissionRatio, 1e-9, "missing ratio defaults to 1")

	a1, ok := params.Actuator(1)
	require.True(t, ok)
	assert.False(t, a1.Active)
	assert.InDelta(t, 2.5, a1.Winch.TransmissionRatio, 1e-9)

	_, ok = params.Actuator(7)
	assert.False(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := geometry.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrReadGeometry))
}

func TestValidateRejectsBadParams(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *geometry.Params)
	}{
		{"zero mass", func(p *geometry.Params) { p.Platform.Mass = 0 }},
		{"tension bounds", func(p *geometry.Params) { p.Platform.CableTauMax = p.Platform.CableTauMin }},
		{"no actuators", func(p *geometry.Params) { p.Actuators = nil }},
		{"duplicate position", func(p *geometry.Params) { p.Actuators[1].SlavePosition = 0 }},
		{"negative position", func(p *geometry.Params) { p.Actuators[0].SlavePosition = -1 }},
		{"zero drum radius", func(p *geometry.Params) { p.Actuators[0].Winch.DrumRadius = 0 }},
		{"negative pulley radius", func(p *geometry.Params) { p.Actuators[0].Pulley.Radius = -0.1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, err := geometry.Load(writeGeometry(t, validGeometry))
			require.NoError(t, err)

			tc.mutate(params)
			err = params.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrInvalidGeometry))
		})
	}
}

func TestCountsPerMeter(t *testing.T) {
	w := geometry.WinchParams{
		DrumRadius:        0.1,
		CountsPerRev:      1048576,
		TransmissionRatio: 1,
	}

	want := 1048576 / (2 * math.Pi * 0.1)
	assert.InDelta(t, want, w.CountsPerMeter(), 1e-6)
}
