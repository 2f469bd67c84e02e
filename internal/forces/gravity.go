package forces

import (
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/rigidtree/internal/matter"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/stage"
	"github.com/san-kum/rigidtree/internal/state"
)

// GravityParams are the Instance-stage settings of a Gravity element.
type GravityParams struct {
	// Down is a unit vector in Ground.
	Down       spatial.Vec3
	Magnitude  float64
	ZeroHeight float64
	// Excluded[b] removes body b from the field. Ground is always excluded.
	Excluded []bool
}

func (p GravityParams) Clone() GravityParams {
	p.Excluded = slices.Clone(p.Excluded)
	return p
}

// Vector is Magnitude*Down.
func (p GravityParams) Vector() spatial.Vec3 { return p.Down.Scale(p.Magnitude) }

type gravityCache struct {
	body []spatial.SpatialVec
	pe   float64
}

// Gravity is a uniform field. Its body forces and potential energy are
// computed together, lazily, once per configuration; a zero magnitude
// short-circuits both without an evaluation.
type Gravity struct {
	tree     *matter.Tree
	defaults GravityParams

	allocated bool
	params    state.Discrete[GravityParams]
	cache     state.Cache[gravityCache]
}

// NewGravity builds a field pointing along down with magnitude g.
func NewGravity(tree *matter.Tree, down spatial.Vec3, g float64) (*Gravity, error) {
	d, err := unitDirection(down)
	if err != nil {
		return nil, err
	}
	if err := checkMagnitude(g); err != nil {
		return nil, err
	}
	return &Gravity{
		tree: tree,
		defaults: GravityParams{
			Down:      d,
			Magnitude: g,
		},
	}, nil
}

// NewGravityVector builds a field from a vector; a zero vector is a field
// of magnitude zero pointing down the Ground -Y axis.
func NewGravityVector(tree *matter.Tree, g spatial.Vec3) (*Gravity, error) {
	if !g.IsFinite() {
		return nil, fmt.Errorf("%w: %v", ErrBadDirection, g)
	}
	m := g.Norm()
	if m == 0 {
		return NewGravity(tree, spatial.Vec3{0, -1, 0}, 0)
	}
	return NewGravity(tree, g, m)
}

func unitDirection(d spatial.Vec3) (spatial.Vec3, error) {
	n := d.Norm()
	if !d.IsFinite() || n == 0 {
		return spatial.Vec3{}, fmt.Errorf("%w: %v", ErrBadDirection, d)
	}
	return d.Scale(1 / n), nil
}

func checkMagnitude(g float64) error {
	if math.IsNaN(g) || math.IsInf(g, 0) || g < 0 {
		return fmt.Errorf("%w: %g", ErrBadMagnitude, g)
	}
	return nil
}

func (g *Gravity) Name() string { return "gravity" }

// SetDefaultBodyIsExcluded changes the construction-time exclusion list.
// Bodies may be added to the tree after the element is built; the list is
// sized to the tree at Topology.
func (g *Gravity) SetDefaultBodyIsExcluded(b matter.BodyIndex, excluded bool) error {
	if b < 0 || int(b) >= g.tree.NumBodies() {
		return fmt.Errorf("%w: %d", matter.ErrBadBody, b)
	}
	g.defaults.Excluded = sized(g.defaults.Excluded, g.tree.NumBodies())
	g.defaults.Excluded[b] = excluded
	return nil
}

// sized returns a copy of ex padded with false to n entries.
func sized(ex []bool, n int) []bool {
	out := make([]bool, max(n, len(ex)))
	copy(out, ex)
	return out
}

// SetDefaultZeroHeight sets the height of zero potential for new states.
func (g *Gravity) SetDefaultZeroHeight(z float64) error {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return fmt.Errorf("%w: zero height %g", ErrBadParameter, z)
	}
	g.defaults.ZeroHeight = z
	return nil
}

func (g *Gravity) RealizeTopology(s *state.State) error {
	n := g.tree.NumBodies()
	defaults := g.defaults
	defaults.Excluded = sized(g.defaults.Excluded, n)
	params, err := state.AllocateDiscrete(s, stage.Instance, defaults)
	if err != nil {
		return err
	}
	cache, err := state.AllocateCache(s, stage.Position, func() gravityCache {
		return gravityCache{body: make([]spatial.SpatialVec, n)}
	})
	if err != nil {
		return err
	}
	g.params, g.cache, g.allocated = params, cache, true
	return nil
}

func (g *Gravity) Params(s *state.State) GravityParams { return g.params.Get(s) }

func (g *Gravity) SetDirection(s *state.State, down spatial.Vec3) error {
	d, err := unitDirection(down)
	if err != nil {
		return err
	}
	g.params.Update(s, func(p *GravityParams) { p.Down = d })
	return nil
}

func (g *Gravity) SetMagnitude(s *state.State, m float64) error {
	if err := checkMagnitude(m); err != nil {
		return err
	}
	g.params.Update(s, func(p *GravityParams) { p.Magnitude = m })
	return nil
}

func (g *Gravity) SetZeroHeight(s *state.State, z float64) error {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return fmt.Errorf("%w: zero height %g", ErrBadParameter, z)
	}
	g.params.Update(s, func(p *GravityParams) { p.ZeroHeight = z })
	return nil
}

// SetBodyIsExcluded removes body b from (or returns it to) the field.
func (g *Gravity) SetBodyIsExcluded(s *state.State, b matter.BodyIndex, excluded bool) error {
	if b < 0 || int(b) >= g.tree.NumBodies() {
		return fmt.Errorf("%w: %d", matter.ErrBadBody, b)
	}
	g.params.Update(s, func(p *GravityParams) {
		p.Excluded = slices.Clone(p.Excluded)
		p.Excluded[b] = excluded
	})
	return nil
}

// NumEvaluations counts how many times s's force cache was computed.
func (g *Gravity) NumEvaluations(s *state.State) uint64 {
	return g.cache.EvaluationCount(s)
}

// IsForceCacheValid reports whether forces are available without work.
func (g *Gravity) IsForceCacheValid(s *state.State) bool {
	return g.cache.IsValid(s)
}

func (g *Gravity) forces(s *state.State) *gravityCache {
	return g.cache.Get(s, "gravity forces", func(c *gravityCache) {
		p := g.params.Get(s)
		gv := p.Vector()
		c.pe = 0
		for i := range c.body {
			c.body[i] = spatial.SpatialVec{}
		}
		for i := 1; i < g.tree.NumBodies(); i++ {
			b := matter.BodyIndex(i)
			m := g.tree.MassProperties(b).Mass
			if p.Excluded[i] || m == 0 {
				continue
			}
			X := g.tree.Position(s).X_GB[b]
			com := X.R.MulVec(g.tree.MassProperties(b).COM)
			c.body[i] = spatial.ShiftForce(com, spatial.SpatialVec{Lin: gv.Scale(m)})
			c.pe -= m * (gv.Dot(X.P.Add(com)) + p.Magnitude*p.ZeroHeight)
		}
	})
}

func (g *Gravity) CalcForce(s *state.State, f *matter.Forces) {
	if g.params.Get(s).Magnitude == 0 {
		return
	}
	c := g.forces(s)
	for i := range c.body {
		f.Body[i] = f.Body[i].Add(c.body[i])
	}
}

func (g *Gravity) PotentialEnergy(s *state.State) float64 {
	if g.params.Get(s).Magnitude == 0 {
		return 0
	}
	return g.forces(s).pe
}

// BodyForce returns the cached force on b, evaluating if needed.
func (g *Gravity) BodyForce(s *state.State, b matter.BodyIndex) spatial.SpatialVec {
	if g.params.Get(s).Magnitude == 0 {
		return spatial.SpatialVec{}
	}
	return g.forces(s).body[b]
}
