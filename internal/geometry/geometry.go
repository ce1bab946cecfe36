// Package geometry loads the read-only robot parameter structure the
// daemon consumes once at startup. The control core never parses this
// itself; it only receives the resolved values.
package geometry

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/winchlab/servoctl/internal/errors"
)

// PlatformParams describes the moving platform the actuators pull on.
type PlatformParams struct {
	Mass        float64    `yaml:"mass"`
	Inertia     [3]float64 `yaml:"inertia"`
	GravityZ    float64    `yaml:"gravity_z"`
	HomePose    [6]float64 `yaml:"home_pose"`
	CableTauMin float64    `yaml:"cable_tension_min"`
	CableTauMax float64    `yaml:"cable_tension_max"`
}

// WinchParams describes the drum geometry that converts drive counts
// into cable length.
type WinchParams struct {
	DrumRadius        float64 `yaml:"drum_radius"`
	DrumPitch         float64 `yaml:"drum_pitch"`
	CountsPerRev      int32   `yaml:"counts_per_rev"`
	TransmissionRatio float64 `yaml:"transmission_ratio"`
}

// PulleyParams describes the exit pulley between winch and platform.
type PulleyParams struct {
	Radius   float64    `yaml:"radius"`
	Position [3]float64 `yaml:"position"`
}

// ActuatorParams is the per-drive geometry record.
type ActuatorParams struct {
	SlavePosition int          `yaml:"slave_position"`
	Active        bool         `yaml:"active"`
	Winch         WinchParams  `yaml:"winch"`
	Pulley        PulleyParams `yaml:"pulley"`
}

// Params is the full robot geometry parameter set.
type Params struct {
	Platform  PlatformParams   `yaml:"platform"`
	Actuators []ActuatorParams `yaml:"actuators"`
}

// Load parses and validates a geometry file.
func Load(path string) (*Params, error) {
	errFactory := errors.New()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrReadGeometry, err)
	}

	params := &Params{}
	if err := yaml.Unmarshal(raw, params); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadGeometry, err)
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return params, nil
}

// Validate rejects parameter sets no actuator could safely run with.
func (p *Params) Validate() error {
	errFactory := errors.New()

	if p.Platform.Mass <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidGeometry, "platform mass must be positive")
	}
	if p.Platform.CableTauMin < 0 || p.Platform.CableTauMax <= p.Platform.CableTauMin {
		return errFactory.WithMessage(errors.ErrInvalidGeometry, "invalid cable tension bounds")
	}
	if len(p.Actuators) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidGeometry, "no actuators defined")
	}

	seen := make(map[int]bool, len(p.Actuators))
	for i := range p.Actuators {
		a := &p.Actuators[i]
		if a.SlavePosition < 0 {
			return errFactory.WithData(errors.ErrInvalidGeometry, a.SlavePosition)
		}
		if seen[a.SlavePosition] {
			return errFactory.WithMessage(errors.ErrInvalidGeometry, "duplicate slave position")
		}
		seen[a.SlavePosition] = true

		if a.Winch.DrumRadius <= 0 || a.Winch.CountsPerRev <= 0 {
			return errFactory.WithMessage(errors.ErrInvalidGeometry, "invalid winch parameters")
		}
		if a.Winch.TransmissionRatio == 0 {
			a.Winch.TransmissionRatio = 1
		}
		if a.Pulley.Radius < 0 {
			return errFactory.WithMessage(errors.ErrInvalidGeometry, "invalid pulley radius")
		}
	}

	return nil
}

// Actuator returns the parameters bound to a slave position.
func (p *Params) Actuator(slavePosition int) (*ActuatorParams, bool) {
	for i := range p.Actuators {
		if p.Actuators[i].SlavePosition == slavePosition {
			return &p.Actuators[i], true
		}
	}

	return nil, false
}

// CountsPerMeter converts the winch geometry into drive counts per meter
// of cable.
func (w *WinchParams) CountsPerMeter() float64 {
	circumference := 2 * math.Pi * w.DrumRadius

	return float64(w.CountsPerRev) * w.TransmissionRatio / circumference
}
