package config

import (
	"fmt"

	"github.com/san-kum/rigidtree/internal/controllers"
	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/forces"
	"github.com/san-kum/rigidtree/internal/matter"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/state"
	"github.com/san-kum/rigidtree/internal/system"
)

// Model is a built configuration: the tree, its forces, the system wiring
// them and the initial state described by the file.
type Model struct {
	Config  *Config
	Tree    *matter.Tree
	Forces  *forces.Set
	Gravity *forces.Gravity
	System  *system.System
	Initial *state.State

	// Controller drives the configured servos; without any it is
	// controllers.None.
	Controller dynamo.Controller
}

// InitialVector packs the initial state for an integrator.
func (m *Model) InitialVector() dynamo.State { return m.System.Pack(m.Initial) }

// RunConfig carries the run settings into a dynamo.Config.
func (c *Config) RunConfig() dynamo.Config {
	rc := dynamo.DefaultConfig()
	rc.Dt = c.Dt
	rc.Duration = c.Duration
	rc.Seed = c.Seed
	if c.Tolerance > 0 {
		rc.Tolerance = c.Tolerance
	}
	rc.Adaptive = c.Integrator == "rk45"
	return rc
}

// Build validates c and constructs the model.
func (c *Config) Build(opts ...system.Option) (*Model, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tree := matter.NewTree()
	for _, b := range c.Bodies {
		mob, err := b.mobilizer(c.EulerAngles)
		if err != nil {
			return nil, fmt.Errorf("config: body %q: %w", b.Name, err)
		}
		mass, err := b.massProperties()
		if err != nil {
			return nil, fmt.Errorf("config: body %q: %w", b.Name, err)
		}
		parent := matter.GroundIndex
		if b.Parent != "" {
			parent, _ = tree.BodyByName(b.Parent)
		}
		_, err = tree.AddBody(parent, matter.Body{
			Name:      b.Name,
			Mobilizer: mob,
			Mass:      mass,
			Inboard:   b.Inboard.transform(),
			Outboard:  b.Outboard.transform(),
		})
		if err != nil {
			return nil, err
		}
	}

	down := spatial.Vec3{0, -1, 0}
	if len(c.Gravity.Down) == 3 {
		down = vec(c.Gravity.Down)
	}
	grav, err := forces.NewGravity(tree, down, c.Gravity.G)
	if err != nil {
		return nil, fmt.Errorf("config: gravity: %w", err)
	}
	if err := grav.SetDefaultZeroHeight(c.Gravity.ZeroHeight); err != nil {
		return nil, fmt.Errorf("config: gravity: %w", err)
	}
	for _, name := range c.Gravity.Exclude {
		b, _ := tree.BodyByName(name)
		if err := grav.SetDefaultBodyIsExcluded(b, true); err != nil {
			return nil, err
		}
	}
	fs := forces.NewSet(tree, grav)

	for _, sc := range c.Springs {
		b, _ := tree.BodyByName(sc.Body)
		e, err := forces.NewMobilityLinearSpring(tree, b, sc.Axis, sc.Stiffness, sc.Rest)
		if err != nil {
			return nil, fmt.Errorf("config: spring on %q: %w", sc.Body, err)
		}
		fs.Add(e)
	}
	for _, dc := range c.Dampers {
		b, _ := tree.BodyByName(dc.Body)
		e, err := forces.NewMobilityLinearDamper(tree, b, dc.Axis, dc.Damping)
		if err != nil {
			return nil, fmt.Errorf("config: damper on %q: %w", dc.Body, err)
		}
		fs.Add(e)
	}
	for _, ec := range c.Efforts {
		b, _ := tree.BodyByName(ec.Body)
		e, err := forces.NewMobilityConstantForce(tree, b, ec.Axis, ec.Value)
		if err != nil {
			return nil, fmt.Errorf("config: effort on %q: %w", ec.Body, err)
		}
		fs.Add(e)
	}
	for _, tc := range c.Torques {
		b, _ := tree.BodyByName(tc.Body)
		e, err := forces.NewConstantTorque(tree, b, vec(tc.Torque))
		if err != nil {
			return nil, fmt.Errorf("config: torque on %q: %w", tc.Body, err)
		}
		fs.Add(e)
	}
	for _, lc := range c.Loads {
		b, _ := tree.BodyByName(lc.Body)
		var station spatial.Vec3
		if len(lc.Station) == 3 {
			station = vec(lc.Station)
		}
		e, err := forces.NewConstantForce(tree, b, station, vec(lc.Force))
		if err != nil {
			return nil, fmt.Errorf("config: load on %q: %w", lc.Body, err)
		}
		fs.Add(e)
	}

	sys, err := system.New(tree, fs, opts...)
	if err != nil {
		return nil, err
	}
	s := sys.NewState()
	for i, b := range c.Bodies {
		idx := matter.BodyIndex(i + 1)
		if len(b.Q) > 0 {
			if err := tree.SetMobilizerQ(s, idx, b.Q); err != nil {
				return nil, fmt.Errorf("config: body %q q: %w", b.Name, err)
			}
		}
		if len(b.Orientation) == 3 {
			if err := tree.SetQToFitRotation(s, idx, spatial.BodyXYZ(vec(b.Orientation))); err != nil {
				return nil, fmt.Errorf("config: body %q orientation: %w", b.Name, err)
			}
		}
		if len(b.U) > 0 {
			if err := tree.SetMobilizerU(s, idx, b.U); err != nil {
				return nil, fmt.Errorf("config: body %q u: %w", b.Name, err)
			}
		}
	}
	ctrl, err := c.controller(tree)
	if err != nil {
		return nil, err
	}
	return &Model{
		Config:     c,
		Tree:       tree,
		Forces:     fs,
		Gravity:    grav,
		System:     sys,
		Initial:    s,
		Controller: ctrl,
	}, nil
}

func (c *Config) controller(tree *matter.Tree) (dynamo.Controller, error) {
	if len(c.Servos) == 0 {
		return controllers.NewNone(tree.NU()), nil
	}
	servo := controllers.NewJointServo(tree.NQ(), tree.NU())
	for _, sv := range c.Servos {
		b, _ := tree.BodyByName(sv.Body)
		qOff, _ := tree.QSlot(b)
		uOff, _ := tree.USlot(b)
		g := controllers.Gains{Kp: sv.Kp, Ki: sv.Ki, Kd: sv.Kd}
		if err := servo.AddChannel(qOff+sv.Axis, uOff+sv.Axis, sv.Target, g); err != nil {
			return nil, fmt.Errorf("config: servo on %q: %w", sv.Body, err)
		}
	}
	return servo, nil
}

func (b BodyConfig) massProperties() (spatial.MassProperties, error) {
	var com spatial.Vec3
	if len(b.COM) == 3 {
		com = vec(b.COM)
	}
	if len(b.Inertia) == 0 {
		return spatial.PointMass(b.Mass, com), nil
	}
	var Ic spatial.Mat33
	in := b.Inertia
	Ic[0][0], Ic[1][1], Ic[2][2] = in[0], in[1], in[2]
	if len(in) == 6 {
		Ic[0][1], Ic[1][0] = in[3], in[3]
		Ic[0][2], Ic[2][0] = in[4], in[4]
		Ic[1][2], Ic[2][1] = in[5], in[5]
	}
	return spatial.NewMassProperties(b.Mass, com, Ic.Add(spatial.SteinerShift(b.Mass, com)))
}

func (f FrameConfig) transform() spatial.Transform {
	X := spatial.IdentityTransform()
	if len(f.Position) == 3 {
		X.P = vec(f.Position)
	}
	if f.Angle != 0 {
		axis := spatial.Vec3{0, 0, 1}
		if len(f.Axis) == 3 {
			axis = vec(f.Axis)
		}
		X.R = spatial.RotAxis(axis, f.Angle)
	}
	return X
}

func vec(v []float64) spatial.Vec3 { return spatial.Vec3{v[0], v[1], v[2]} }

// Columns names each entry of the packed state: body.qN, body.uN, then zN.
func (m *Model) Columns() []string {
	nq, nu, nz := m.System.Split()
	cols := make([]string, 0, nq+nu+nz)
	for b := 1; b < m.Tree.NumBodies(); b++ {
		_, n := m.Tree.QSlot(matter.BodyIndex(b))
		for i := range n {
			cols = append(cols, fmt.Sprintf("%s.q%d", m.Tree.Name(matter.BodyIndex(b)), i))
		}
	}
	for b := 1; b < m.Tree.NumBodies(); b++ {
		_, n := m.Tree.USlot(matter.BodyIndex(b))
		for i := range n {
			cols = append(cols, fmt.Sprintf("%s.u%d", m.Tree.Name(matter.BodyIndex(b)), i))
		}
	}
	for i := range nz {
		cols = append(cols, fmt.Sprintf("z%d", i))
	}
	return cols
}
