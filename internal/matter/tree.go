// Package matter holds the rigid-body tree and its recursive algorithms.
//
// Bodies live in an arena indexed by BodyIndex. Ground is index 0 and every
// body is added after its parent, so ascending index order is a valid
// base-to-tip traversal and descending order is tip-to-base.
//
// All per-state data (q, u, and every computed quantity) lives in a
// state.State. A Tree only describes structure; one Tree serves any number
// of States, each advanced independently.
package matter

import (
	"errors"
	"fmt"

	"github.com/san-kum/rigidtree/internal/mobilizer"
	"github.com/san-kum/rigidtree/internal/spatial"
)

var (
	ErrBadBody         = errors.New("matter: body index out of range")
	ErrBadParent       = errors.New("matter: parent index out of range")
	ErrBadMobilizer    = errors.New("matter: invalid mobilizer")
	ErrDuplicateName   = errors.New("matter: duplicate body name")
	ErrTopologyFrozen  = errors.New("matter: topology already realized")
	ErrBadAxis         = errors.New("matter: mobility axis out of range")
	ErrLayoutMismatch  = errors.New("matter: state layout differs from the tree's")
	ErrSingularInertia = errors.New("matter: singular articulated-body inertia")
	ErrLength          = errors.New("matter: vector length mismatch")
)

type BodyIndex int

const (
	GroundIndex BodyIndex = 0
	noParent    BodyIndex = -1
)

// Body describes one rigid body and the mobilizer that connects it to its
// parent. Inboard is X_PF, the mobilizer's F frame fixed on the parent;
// Outboard is X_BM, its M frame fixed on this body.
type Body struct {
	Name      string
	Mobilizer mobilizer.Mobilizer
	Mass      spatial.MassProperties
	Inboard   spatial.Transform
	Outboard  spatial.Transform
}

type node struct {
	index    BodyIndex
	name     string
	parent   BodyIndex
	children []BodyIndex
	level    int

	mob  mobilizer.Mobilizer
	mass spatial.MassProperties
	X_PF spatial.Transform
	X_BM spatial.Transform

	qOff, nq int
	uOff, nu int
}

// Tree is the arena of bodies.
type Tree struct {
	nodes  []node
	byName map[string]BodyIndex
	nq, nu int

	frozen bool
	lay    *layout
}

func NewTree() *Tree {
	t := &Tree{byName: map[string]BodyIndex{"ground": GroundIndex}}
	t.nodes = append(t.nodes, node{
		index:  GroundIndex,
		name:   "ground",
		parent: noParent,
		mob:    mobilizer.MustNew(mobilizer.Ground),
		X_PF:   spatial.IdentityTransform(),
		X_BM:   spatial.IdentityTransform(),
	})
	return t
}

// AddBody appends b as a child of parent and returns its index.
func (t *Tree) AddBody(parent BodyIndex, b Body) (BodyIndex, error) {
	if t.frozen {
		return 0, ErrTopologyFrozen
	}
	if parent < 0 || int(parent) >= len(t.nodes) {
		return 0, fmt.Errorf("%w: %d", ErrBadParent, parent)
	}
	if b.Mobilizer.Kind() == mobilizer.Ground {
		return 0, fmt.Errorf("%w: only the root may use a ground mobilizer", ErrBadMobilizer)
	}
	if err := b.Mass.Validate(); err != nil {
		return 0, fmt.Errorf("matter: body %q: %w", b.Name, err)
	}
	idx := BodyIndex(len(t.nodes))
	name := b.Name
	if name == "" {
		name = fmt.Sprintf("body%d", idx)
	}
	if _, dup := t.byName[name]; dup {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	X_PF, X_BM := b.Inboard, b.Outboard
	if X_PF == (spatial.Transform{}) {
		X_PF = spatial.IdentityTransform()
	}
	if X_BM == (spatial.Transform{}) {
		X_BM = spatial.IdentityTransform()
	}
	n := node{
		index:  idx,
		name:   name,
		parent: parent,
		level:  t.nodes[parent].level + 1,
		mob:    b.Mobilizer,
		mass:   b.Mass,
		X_PF:   X_PF,
		X_BM:   X_BM,
		qOff:   t.nq,
		nq:     b.Mobilizer.NQ(),
		uOff:   t.nu,
		nu:     b.Mobilizer.NU(),
	}
	t.nq += n.nq
	t.nu += n.nu
	t.nodes = append(t.nodes, n)
	t.nodes[parent].children = append(t.nodes[parent].children, idx)
	t.byName[name] = idx
	return idx, nil
}

// NumBodies counts Ground.
func (t *Tree) NumBodies() int { return len(t.nodes) }
func (t *Tree) NQ() int        { return t.nq }
func (t *Tree) NU() int        { return t.nu }

func (t *Tree) checkBody(b BodyIndex) error {
	if b < 0 || int(b) >= len(t.nodes) {
		return fmt.Errorf("%w: %d (have %d)", ErrBadBody, b, len(t.nodes))
	}
	return nil
}

// BodyByName looks a body up by name; Ground is "ground".
func (t *Tree) BodyByName(name string) (BodyIndex, bool) {
	b, ok := t.byName[name]
	return b, ok
}

// BodyInfo describes one body's place in the tree.
type BodyInfo struct {
	Index      BodyIndex
	Name       string
	Parent     BodyIndex
	ParentName string
	Level      int
	Mobilizer  mobilizer.Mobilizer
	Mass       spatial.MassProperties
	QOff, NQ   int
	UOff, NU   int
}

// Info validates b and describes it. The single-field accessors below
// expect indices obtained from AddBody, BodyByName or Info.
func (t *Tree) Info(b BodyIndex) (BodyInfo, error) {
	if err := t.checkBody(b); err != nil {
		return BodyInfo{}, err
	}
	n := &t.nodes[b]
	info := BodyInfo{
		Index: b, Name: n.name, Parent: n.parent, Level: n.level,
		Mobilizer: n.mob, Mass: n.mass,
		QOff: n.qOff, NQ: n.nq, UOff: n.uOff, NU: n.nu,
	}
	if b != GroundIndex {
		info.ParentName = t.nodes[n.parent].name
	}
	return info, nil
}

func (t *Tree) Name(b BodyIndex) string                           { return t.nodes[b].name }
func (t *Tree) Parent(b BodyIndex) BodyIndex                      { return t.nodes[b].parent }
func (t *Tree) Children(b BodyIndex) []BodyIndex                  { return t.nodes[b].children }
func (t *Tree) Level(b BodyIndex) int                             { return t.nodes[b].level }
func (t *Tree) Mobilizer(b BodyIndex) mobilizer.Mobilizer         { return t.nodes[b].mob }
func (t *Tree) MassProperties(b BodyIndex) spatial.MassProperties { return t.nodes[b].mass }
func (t *Tree) InboardFrame(b BodyIndex) spatial.Transform        { return t.nodes[b].X_PF }
func (t *Tree) OutboardFrame(b BodyIndex) spatial.Transform       { return t.nodes[b].X_BM }

// QSlot returns the offset and length of b's coordinates within the
// tree's q vector.
func (t *Tree) QSlot(b BodyIndex) (off, n int) { return t.nodes[b].qOff, t.nodes[b].nq }
func (t *Tree) USlot(b BodyIndex) (off, n int) { return t.nodes[b].uOff, t.nodes[b].nu }

// TotalMass sums every body but Ground.
func (t *Tree) TotalMass() float64 {
	var m float64
	for _, n := range t.nodes[1:] {
		m += n.mass.Mass
	}
	return m
}

// DefaultQ returns the reference configuration of every mobilizer.
func (t *Tree) DefaultQ() []float64 {
	q := make([]float64, t.nq)
	for _, n := range t.nodes[1:] {
		n.mob.DefaultQ(q[n.qOff : n.qOff+n.nq])
	}
	return q
}

// EulerVariant returns an unrealized copy of t with every mobilizer that
// has a dual form switched to Euler angles (euler true) or quaternions.
func (t *Tree) EulerVariant(euler bool) *Tree {
	v := NewTree()
	for _, n := range t.nodes[1:] {
		_, err := v.AddBody(n.parent, Body{
			Name:      n.name,
			Mobilizer: n.mob.WithEulerAngles(euler),
			Mass:      n.mass,
			Inboard:   n.X_PF,
			Outboard:  n.X_BM,
		})
		if err != nil {
			panic(err)
		}
	}
	return v
}
