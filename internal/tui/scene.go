package tui

import (
	"math"

	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/matter"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/stage"
	"github.com/san-kum/rigidtree/internal/state"
	"github.com/san-kum/rigidtree/internal/system"
)

// Link is one body as drawn: from its joint's F frame to its mass center,
// both in Ground.
type Link struct {
	Name   string
	Joint  spatial.Vec3
	Center spatial.Vec3
}

// Frame is what one state looks like.
type Frame struct {
	Time  float64
	Links []Link
	KE    float64
	PE    float64
	QErr  float64
}

// Scene turns packed state vectors into frames on a private State, so
// drawing never disturbs the integration state's caches.
type Scene struct {
	sys *system.System
	s   *state.State
}

func NewScene(sys *system.System) *Scene {
	return &Scene{sys: sys, s: sys.NewState()}
}

func (sc *Scene) Frame(x dynamo.State, t float64) (Frame, error) {
	if err := sc.sys.Unpack(x, t, sc.s); err != nil {
		return Frame{}, err
	}
	if err := sc.sys.Realize(sc.s, stage.Velocity); err != nil {
		return Frame{}, err
	}
	tree := sc.sys.Tree()
	f := Frame{Time: t, Links: make([]Link, 0, tree.NumBodies()-1)}
	for i := 1; i < tree.NumBodies(); i++ {
		b := matter.BodyIndex(i)
		X_GP, err := tree.BodyTransform(sc.s, tree.Parent(b))
		if err != nil {
			return Frame{}, err
		}
		center, err := tree.MassCenterLocation(sc.s, b)
		if err != nil {
			return Frame{}, err
		}
		f.Links = append(f.Links, Link{
			Name:   tree.Name(b),
			Joint:  X_GP.Compose(tree.InboardFrame(b)).P,
			Center: center,
		})
	}
	f.KE = tree.KineticEnergy(sc.s)
	f.PE = sc.sys.EnergyOf(sc.s) - f.KE
	f.QErr = sc.sys.QuaternionError(x)
	return f, nil
}

// Extent is the largest horizontal or vertical reach of f, for scaling.
func (f Frame) Extent() float64 {
	e := 0.0
	for _, l := range f.Links {
		for _, p := range []spatial.Vec3{l.Joint, l.Center} {
			e = math.Max(e, math.Max(math.Abs(p[0]), math.Abs(p[1])))
		}
	}
	return e
}

func (f Frame) draw(c *canvas) {
	for _, l := range f.Links {
		c.segment(l.Joint, l.Center, '·')
	}
	for _, l := range f.Links {
		c.plot(l.Joint, '+')
	}
	for _, l := range f.Links {
		c.plot(l.Center, '●')
	}
	c.plot(spatial.Vec3{}, '▼')
}
