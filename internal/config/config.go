// Package config describes multibody models and run settings in YAML and
// turns them into a matter.Tree with its force set.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/rigidtree/internal/mobilizer"
)

const (
	DefaultDt         = 0.005
	DefaultDuration   = 10.0
	DefaultIntegrator = "rk4"
	DefaultGravity    = 9.81
	DefaultTolerance  = 1e-6
)

var (
	ErrUnknownParent = errors.New("config: unknown parent body")
	ErrDuplicateBody = errors.New("config: duplicate body name")
	ErrUnknownBody   = errors.New("config: unknown body")
	ErrCoordinates   = errors.New("config: wrong number of coordinates")
	ErrInvalid       = errors.New("config: invalid model")
)

// Config is a model plus the settings for one run.
type Config struct {
	Name       string  `yaml:"name" validate:"required"`
	Integrator string  `yaml:"integrator" validate:"required,oneof=euler rk4 rk45 verlet leapfrog"`
	Dt         float64 `yaml:"dt" validate:"gt=0"`
	Duration   float64 `yaml:"duration" validate:"gt=0"`
	Tolerance  float64 `yaml:"tolerance" validate:"gte=0"`
	Seed       int64   `yaml:"seed"`

	// EulerAngles switches every orientation joint to body-fixed XYZ angles.
	EulerAngles bool `yaml:"euler_angles"`

	Gravity GravityConfig  `yaml:"gravity"`
	Bodies  []BodyConfig   `yaml:"bodies" validate:"required,min=1,dive"`
	Springs []SpringConfig `yaml:"springs,omitempty" validate:"dive"`
	Dampers []DamperConfig `yaml:"dampers,omitempty" validate:"dive"`
	Servos  []ServoConfig  `yaml:"servos,omitempty" validate:"dive"`
	Torques []TorqueConfig `yaml:"torques,omitempty" validate:"dive"`
	Loads   []LoadConfig   `yaml:"loads,omitempty" validate:"dive"`
	Efforts []EffortConfig `yaml:"efforts,omitempty" validate:"dive"`
}

type GravityConfig struct {
	Down       []float64 `yaml:"down,omitempty" validate:"omitempty,len=3"`
	G          float64   `yaml:"g" validate:"gte=0"`
	ZeroHeight float64   `yaml:"zero_height,omitempty"`
	Exclude    []string  `yaml:"exclude,omitempty"`
}

// BodyConfig is one body and the joint to its parent. An empty parent is
// ground. Inertia is about the mass center in the body frame, either the
// three principal moments or xx yy zz xy xz yz; without it the body is a
// point mass.
type BodyConfig struct {
	Name     string    `yaml:"name" validate:"required,ne=ground"`
	Parent   string    `yaml:"parent,omitempty"`
	Joint    string    `yaml:"joint" validate:"required,joint"`
	Reversed bool      `yaml:"reversed,omitempty"`
	Pitch    float64   `yaml:"pitch,omitempty"`
	SemiAxes []float64 `yaml:"semi_axes,omitempty" validate:"omitempty,len=3,dive,gt=0"`

	Mass    float64   `yaml:"mass" validate:"gte=0"`
	COM     []float64 `yaml:"com,omitempty" validate:"omitempty,len=3"`
	Inertia []float64 `yaml:"inertia,omitempty" validate:"omitempty,len=3|len=6"`

	Inboard  FrameConfig `yaml:"inboard,omitempty"`
	Outboard FrameConfig `yaml:"outboard,omitempty"`

	Q []float64 `yaml:"q,omitempty"`
	U []float64 `yaml:"u,omitempty"`
	// Orientation, body-fixed XYZ angles of M in F, overrides the
	// rotational part of Q.
	Orientation []float64 `yaml:"orientation,omitempty" validate:"omitempty,len=3"`
}

// FrameConfig places a joint frame: translation, then rotation by Angle
// about Axis.
type FrameConfig struct {
	Position []float64 `yaml:"position,omitempty" validate:"omitempty,len=3"`
	Axis     []float64 `yaml:"axis,omitempty" validate:"omitempty,len=3"`
	Angle    float64   `yaml:"angle,omitempty"`
}

// SpringConfig is a linear spring on one mobility of a body.
type SpringConfig struct {
	Body      string  `yaml:"body" validate:"required"`
	Axis      int     `yaml:"axis" validate:"gte=0,lt=6"`
	Stiffness float64 `yaml:"stiffness" validate:"gte=0"`
	Rest      float64 `yaml:"rest,omitempty"`
}

type DamperConfig struct {
	Body    string  `yaml:"body" validate:"required"`
	Axis    int     `yaml:"axis" validate:"gte=0,lt=6"`
	Damping float64 `yaml:"damping" validate:"gte=0"`
}

// ServoConfig is a PID loop driving one mobility of a body to Target.
type ServoConfig struct {
	Body   string  `yaml:"body" validate:"required"`
	Axis   int     `yaml:"axis" validate:"gte=0,lt=6"`
	Target float64 `yaml:"target"`
	Kp     float64 `yaml:"kp" validate:"gte=0"`
	Ki     float64 `yaml:"ki" validate:"gte=0"`
	Kd     float64 `yaml:"kd" validate:"gte=0"`
}

// TorqueConfig is a constant torque on a body, expressed in Ground.
type TorqueConfig struct {
	Body   string    `yaml:"body" validate:"required"`
	Torque []float64 `yaml:"torque" validate:"len=3"`
}

// LoadConfig is a constant Ground-frame force applied at a point fixed on
// a body; Station defaults to the body origin.
type LoadConfig struct {
	Body    string    `yaml:"body" validate:"required"`
	Station []float64 `yaml:"station,omitempty" validate:"omitempty,len=3"`
	Force   []float64 `yaml:"force" validate:"len=3"`
}

// EffortConfig is a constant generalized force on one mobility.
type EffortConfig struct {
	Body  string  `yaml:"body" validate:"required"`
	Axis  int     `yaml:"axis" validate:"gte=0,lt=6"`
	Value float64 `yaml:"value"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("joint", validateJoint)
}

// validateJoint accepts catalog names and aliases; custom joints cannot be
// described in a file.
func validateJoint(fl validator.FieldLevel) bool {
	k, err := mobilizer.ParseKind(fl.Field().String())
	return err == nil && k != mobilizer.Custom && k != mobilizer.Ground
}

func DefaultConfig() *Config {
	return &Config{
		Name:       "model",
		Integrator: DefaultIntegrator,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Tolerance:  DefaultTolerance,
		Gravity:    GravityConfig{Down: []float64{0, -1, 0}, G: DefaultGravity},
	}
}

// Load reads a YAML model over DefaultConfig and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks struct tags first, then what tags cannot express: body
// names are unique, parents are declared before their children, and the
// coordinate and force references agree with the joints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	joints := map[string]mobilizer.Mobilizer{}
	for i, b := range c.Bodies {
		if _, dup := joints[b.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateBody, b.Name)
		}
		if b.Parent != "" && b.Parent != "ground" {
			if _, ok := joints[b.Parent]; !ok {
				return fmt.Errorf("%w: body %d %q has parent %q", ErrUnknownParent, i, b.Name, b.Parent)
			}
		}
		m, err := b.mobilizer(c.EulerAngles)
		if err != nil {
			return fmt.Errorf("config: body %q: %w", b.Name, err)
		}
		if len(b.Q) != 0 && len(b.Q) != m.NQ() {
			return fmt.Errorf("%w: body %q joint %s takes %d q, got %d", ErrCoordinates, b.Name, m, m.NQ(), len(b.Q))
		}
		if len(b.U) != 0 && len(b.U) != m.NU() {
			return fmt.Errorf("%w: body %q joint %s takes %d u, got %d", ErrCoordinates, b.Name, m, m.NU(), len(b.U))
		}
		joints[b.Name] = m
	}

	axis := func(kind, body string, ax int) error {
		m, ok := joints[body]
		if !ok {
			return fmt.Errorf("%w: %s on %q", ErrUnknownBody, kind, body)
		}
		if ax >= m.NU() {
			return fmt.Errorf("%w: %s on %q axis %d, joint has %d", ErrCoordinates, kind, body, ax, m.NU())
		}
		return nil
	}
	for _, s := range c.Springs {
		if err := axis("spring", s.Body, s.Axis); err != nil {
			return err
		}
	}
	for _, d := range c.Dampers {
		if err := axis("damper", d.Body, d.Axis); err != nil {
			return err
		}
	}
	for _, sv := range c.Servos {
		if err := axis("servo", sv.Body, sv.Axis); err != nil {
			return err
		}
		if !joints[sv.Body].QDotIsU() {
			return fmt.Errorf("%w: servo on %q needs a joint whose qdot is u", ErrCoordinates, sv.Body)
		}
	}
	for _, e := range c.Efforts {
		if err := axis("effort", e.Body, e.Axis); err != nil {
			return err
		}
	}
	for _, tc := range c.Torques {
		if _, ok := joints[tc.Body]; !ok {
			return fmt.Errorf("%w: torque on %q", ErrUnknownBody, tc.Body)
		}
	}
	for _, l := range c.Loads {
		if _, ok := joints[l.Body]; !ok {
			return fmt.Errorf("%w: load on %q", ErrUnknownBody, l.Body)
		}
	}
	for _, name := range c.Gravity.Exclude {
		if _, ok := joints[name]; !ok {
			return fmt.Errorf("%w: gravity exclusion %q", ErrUnknownBody, name)
		}
	}
	return nil
}

func (b BodyConfig) mobilizer(euler bool) (mobilizer.Mobilizer, error) {
	kind, err := mobilizer.ParseKind(b.Joint)
	if err != nil {
		return mobilizer.Mobilizer{}, err
	}
	var opts []mobilizer.Option
	if b.Reversed {
		opts = append(opts, mobilizer.Reversed())
	}
	if euler {
		opts = append(opts, mobilizer.UseEulerAngles())
	}
	if b.Pitch != 0 {
		opts = append(opts, mobilizer.WithPitch(b.Pitch))
	}
	if len(b.SemiAxes) == 3 {
		opts = append(opts, mobilizer.WithSemiAxes(vec(b.SemiAxes)))
	}
	return mobilizer.New(kind, opts...)
}
