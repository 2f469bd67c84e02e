package config

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/san-kum/rigidtree/internal/controllers"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/stage"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Integrator != "rk4" {
		t.Errorf("expected integrator rk4, got %s", cfg.Integrator)
	}
	if cfg.Dt <= 0 || cfg.Duration <= 0 {
		t.Error("dt and duration should be positive")
	}
	if cfg.Gravity.G != DefaultGravity {
		t.Errorf("gravity = %v", cfg.Gravity.G)
	}
}

func TestPresetsBuild(t *testing.T) {
	tests := []struct {
		name   string
		bodies int
		nq, nu int
	}{
		{"pendulum", 2, 1, 1},
		{"double_pendulum", 3, 2, 2},
		{"chain", ChainLinks + 1, ChainLinks, ChainLinks},
		{"reversed_pendulum", 2, 1, 1},
		{"servo_arm", 3, 2, 2},
		{"pin_slider_ball", 4, 6, 5},
		{"gyroscope", 2, 4, 3},
		{"tumbling_box", 2, 7, 6},
		{"ellipsoid_roller", 2, 4, 3},
	}
	if len(tests) != len(Presets) {
		t.Fatalf("%d presets, %d tested", len(Presets), len(tests))
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetPreset(tt.name)
			if cfg == nil {
				t.Fatal("expected preset, got nil")
			}
			m, err := cfg.Build()
			if err != nil {
				t.Fatal(err)
			}
			if m.Tree.NumBodies() != tt.bodies || m.Tree.NQ() != tt.nq || m.Tree.NU() != tt.nu {
				t.Errorf("bodies/nq/nu = %d/%d/%d, want %d/%d/%d",
					m.Tree.NumBodies(), m.Tree.NQ(), m.Tree.NU(), tt.bodies, tt.nq, tt.nu)
			}
			x := m.InitialVector()
			if len(x) != m.System.StateDim() {
				t.Errorf("initial vector has %d entries, want %d", len(x), m.System.StateDim())
			}
			if e := m.System.QuaternionError(x); e > 1e-12 {
				t.Errorf("initial quaternion error %g", e)
			}
		})
	}
}

func TestInitialCoordinates(t *testing.T) {
	m, err := GetPreset("pin_slider_ball").Build()
	if err != nil {
		t.Fatal(err)
	}
	if got, err := m.Tree.MobilizerQ(m.Initial, 1); err != nil || got[0] != 0.7 {
		t.Errorf("arm q = %v (%v), want 0.7", got, err)
	}
	if got, err := m.Tree.MobilizerU(m.Initial, 3); err != nil || got[0] != 1.2 || got[2] != 0.8 {
		t.Errorf("bob u = %v (%v)", got, err)
	}
	if _, ok := m.Forces.Find("spring[slide.0]"); !ok {
		t.Error("spring element missing")
	}
	s := m.Initial.Clone()
	if err := m.System.Realize(s, stage.Position); err != nil {
		t.Fatal(err)
	}
	X, err := m.Tree.MobilizerTransform(s, 3)
	if err != nil {
		t.Fatal(err)
	}
	if d := spatial.RotationDistance(X.R, spatial.BodyXYZ(spatial.Vec3{0.3, 0, 0.2})); d > 1e-12 {
		t.Errorf("bob orientation off by %g", d)
	}
}

func TestColumns(t *testing.T) {
	cfg := GetPreset("pin_slider_ball")
	cfg.Dampers = []DamperConfig{{Body: "arm", Damping: 0.1}}
	m, err := cfg.Build()
	if err != nil {
		t.Fatal(err)
	}
	cols := m.Columns()
	want := []string{"arm.q0", "slide.q0", "bob.q0", "bob.q1", "bob.q2", "bob.q3",
		"arm.u0", "slide.u0", "bob.u0", "bob.u1", "bob.u2", "z0"}
	if len(cols) != len(want) {
		t.Fatalf("columns = %v", cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("column %d = %s, want %s", i, cols[i], want[i])
		}
	}
}

func TestEulerAngles(t *testing.T) {
	cfg := GetPreset("pin_slider_ball")
	cfg.EulerAngles = true
	m, err := cfg.Build()
	if err != nil {
		t.Fatal(err)
	}
	if m.Tree.NQ() != 5 {
		t.Errorf("nq = %d, want 5", m.Tree.NQ())
	}
}

func TestServoController(t *testing.T) {
	m, err := GetPreset("servo_arm").Build()
	if err != nil {
		t.Fatal(err)
	}
	servo, ok := m.Controller.(*controllers.JointServo)
	if !ok {
		t.Fatalf("controller is %T", m.Controller)
	}
	chs := servo.Channels()
	if len(chs) != 2 || chs[1].Q != 1 || chs[1].U != 1 || chs[1].Target != -0.6 {
		t.Errorf("channels = %+v", chs)
	}

	// at rest in the reference pose only the proportional terms act
	c := m.Controller.Compute(m.System.Pack(m.System.NewState()), 0)
	if math.Abs(c[0]-72) > 1e-12 || math.Abs(c[1]+18) > 1e-12 {
		t.Errorf("control = %v", c)
	}

	plain, err := GetPreset("pendulum").Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := plain.Controller.(*controllers.None); !ok {
		t.Errorf("controller without servos is %T", plain.Controller)
	}
}

func TestGetPresetIsFresh(t *testing.T) {
	a := GetPreset("pendulum")
	a.Bodies[0].Mass = 42
	if b := GetPreset("pendulum"); b.Bodies[0].Mass != 1 {
		t.Error("preset shared between calls")
	}
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
	names := ListPresets()
	if len(names) != len(Presets) || names[0] != "chain" {
		t.Errorf("ListPresets() = %v", names)
	}
}

func TestMassProperties(t *testing.T) {
	b := BodyConfig{Mass: 2, COM: []float64{0, -1, 0}, Inertia: []float64{0.1, 0.2, 0.3, 0.01, 0, 0}}
	mp, err := b.massProperties()
	if err != nil {
		t.Fatal(err)
	}
	want := spatial.Mat33{{2.1, 0.01, 0}, {0.01, 0.2, 0}, {0, 0, 2.3}}
	for i := range 3 {
		for j := range 3 {
			if math.Abs(mp.Inertia[i][j]-want[i][j]) > 1e-12 {
				t.Fatalf("inertia = %v, want %v", mp.Inertia, want)
			}
		}
	}

	point, _ := BodyConfig{Mass: 3, COM: []float64{1, 0, 0}}.massProperties()
	if point.Inertia[1][1] != 3 || point.Inertia[0][0] != 0 {
		t.Errorf("point mass inertia = %v", point.Inertia)
	}
}

func TestAppliedLoads(t *testing.T) {
	cfg, err := Parse([]byte(`name: pushed
integrator: rk4
dt: 0.01
duration: 1
gravity: {g: 0}
bodies:
  - name: arm
    joint: pin
    mass: 2
    com: [1, 0, 0]
torques:
  - body: arm
    torque: [0, 0, 0.5]
loads:
  - body: arm
    station: [1, 0, 0]
    force: [0, 2, 0]
efforts:
  - body: arm
    axis: 0
    value: -0.25
`))
	if err != nil {
		t.Fatal(err)
	}
	m, err := cfg.Build()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"torque[arm]", "force[arm]", "mobility_force[arm.0]"} {
		if _, ok := m.Forces.Find(name); !ok {
			t.Errorf("element %s missing", name)
		}
	}

	// 0.5 + 1*2 - 0.25 about the pin, acting on I = m r² = 2
	s := m.Initial.Clone()
	if err := m.System.Realize(s, stage.Acceleration); err != nil {
		t.Fatal(err)
	}
	if got := m.Tree.UDot(s)[0]; math.Abs(got-2.25/2) > 1e-12 {
		t.Errorf("udot = %v, want %v", got, 2.25/2)
	}

	if err := cfg.SetParam("effort0.value", 1); err != nil || cfg.Efforts[0].Value != 1 {
		t.Errorf("SetParam(effort0.value) = %v, value %v", err, cfg.Efforts[0].Value)
	}
	c := cfg.Clone()
	c.Loads[0].Force[1] = 9
	if cfg.Loads[0].Force[1] != 2 {
		t.Error("Clone shares load slices")
	}
}

func TestGravitySettings(t *testing.T) {
	cfg := GetPreset("double_pendulum")
	cfg.Gravity = GravityConfig{Down: []float64{0, 0, -2}, G: 3, ZeroHeight: 0.5, Exclude: []string{"lower"}}
	m, err := cfg.Build()
	if err != nil {
		t.Fatal(err)
	}
	p := m.Gravity.Params(m.Initial)
	if p.Down != (spatial.Vec3{0, 0, -1}) || p.Magnitude != 3 || p.ZeroHeight != 0.5 {
		t.Errorf("params = %+v", p)
	}
	lower, _ := m.Tree.BodyByName("lower")
	if !p.Excluded[lower] || p.Excluded[lower-1] {
		t.Errorf("excluded = %v", p.Excluded)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"negative mass", func(c *Config) { c.Bodies[0].Mass = -1 }, ErrInvalid},
		{"unknown joint", func(c *Config) { c.Bodies[0].Joint = "hinge" }, ErrInvalid},
		{"custom joint", func(c *Config) { c.Bodies[0].Joint = "custom" }, ErrInvalid},
		{"ground name", func(c *Config) { c.Bodies[0].Name = "ground" }, ErrInvalid},
		{"bad integrator", func(c *Config) { c.Integrator = "midpoint" }, ErrInvalid},
		{"zero dt", func(c *Config) { c.Dt = 0 }, ErrInvalid},
		{"inertia length", func(c *Config) { c.Bodies[0].Inertia = []float64{1, 1, 1, 1} }, ErrInvalid},
		{"no bodies", func(c *Config) { c.Bodies = nil }, ErrInvalid},
		{"negative gravity", func(c *Config) { c.Gravity.G = -9.81 }, ErrInvalid},
		{"unknown parent", func(c *Config) { c.Bodies[1].Parent = "nobody" }, ErrUnknownParent},
		{"child before parent", func(c *Config) {
			c.Bodies[0], c.Bodies[1] = c.Bodies[1], c.Bodies[0]
		}, ErrUnknownParent},
		{"duplicate", func(c *Config) { c.Bodies[1].Name = "upper" }, ErrDuplicateBody},
		{"q count", func(c *Config) { c.Bodies[0].Q = []float64{1, 2} }, ErrCoordinates},
		{"u count", func(c *Config) { c.Bodies[1].U = []float64{1, 2} }, ErrCoordinates},
		{"spring axis", func(c *Config) {
			c.Springs = []SpringConfig{{Body: "upper", Axis: 1, Stiffness: 1}}
		}, ErrCoordinates},
		{"damper body", func(c *Config) {
			c.Dampers = []DamperConfig{{Body: "middle", Damping: 1}}
		}, ErrUnknownBody},
		{"servo on ball", func(c *Config) {
			c.Bodies[1].Joint = "ball"
			c.Servos = []ServoConfig{{Body: "lower", Kp: 1}}
		}, ErrCoordinates},
		{"negative servo gain", func(c *Config) {
			c.Servos = []ServoConfig{{Body: "lower", Kp: -1}}
		}, ErrInvalid},
		{"excluded body", func(c *Config) { c.Gravity.Exclude = []string{"middle"} }, ErrUnknownBody},
		{"torque body", func(c *Config) {
			c.Torques = []TorqueConfig{{Body: "middle", Torque: []float64{0, 0, 1}}}
		}, ErrUnknownBody},
		{"torque length", func(c *Config) {
			c.Torques = []TorqueConfig{{Body: "upper", Torque: []float64{1}}}
		}, ErrInvalid},
		{"load body", func(c *Config) {
			c.Loads = []LoadConfig{{Body: "middle", Force: []float64{1, 0, 0}}}
		}, ErrUnknownBody},
		{"effort axis", func(c *Config) {
			c.Efforts = []EffortConfig{{Body: "lower", Axis: 2, Value: 1}}
		}, ErrCoordinates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetPreset("double_pendulum")
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
			if _, err := cfg.Build(); err == nil {
				t.Error("Build accepted an invalid config")
			}
		})
	}
}

func TestBuildRejectsNonPSDInertia(t *testing.T) {
	cfg := GetPreset("pendulum")
	cfg.Bodies[0].Inertia = []float64{1, 1, -5}
	if _, err := cfg.Build(); !errors.Is(err, spatial.ErrBadInertia) {
		t.Errorf("Build() = %v, want ErrBadInertia", err)
	}
}

func TestParse(t *testing.T) {
	doc := []byte(`
name: hanging
integrator: verlet
dt: 0.001
duration: 2
gravity:
  g: 1.62
bodies:
  - name: rod
    joint: torsion
    mass: 1
    com: [0, -0.5, 0]
    q: [0.2]
  - name: tip
    parent: rod
    joint: cartesian
    mass: 0.1
    inboard:
      position: [0, -1, 0]
      axis: [1, 0, 0]
      angle: 0.5
dampers:
  - body: rod
    damping: 0.05
`)
	cfg, err := Parse(doc)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tolerance != DefaultTolerance || cfg.Gravity.Down[1] != -1 {
		t.Error("defaults not kept under the file")
	}
	m, err := cfg.Build()
	if err != nil {
		t.Fatal(err)
	}
	if m.Tree.NQ() != 4 {
		t.Errorf("nq = %d, want 4", m.Tree.NQ())
	}
	tip, _ := m.Tree.BodyByName("tip")
	X := m.Tree.InboardFrame(tip)
	if X.P != (spatial.Vec3{0, -1, 0}) || math.Abs(X.R[1][1]-math.Cos(0.5)) > 1e-15 {
		t.Errorf("inboard frame = %+v", X)
	}
	if _, nu, nz := m.System.Split(); nu != 4 || nz != 1 {
		t.Errorf("nu, nz = %d, %d", nu, nz)
	}
	if rc := cfg.RunConfig(); rc.Dt != 0.001 || rc.Adaptive {
		t.Errorf("run config = %+v", rc)
	}

	if _, err := Parse([]byte("bodies: [")); err == nil {
		t.Error("expected YAML error")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	cfg := GetPreset("pin_slider_ball")
	cfg.Integrator = "rk45"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Integrator != "rk45" || len(got.Bodies) != 3 || got.Bodies[2].Parent != "slide" {
		t.Errorf("loaded %+v", got)
	}
	if !got.RunConfig().Adaptive {
		t.Error("rk45 should run adaptively")
	}
	if _, err := got.Build(); err != nil {
		t.Fatal(err)
	}
}
