package integrators

import (
	"testing"

	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/forces"
	"github.com/san-kum/rigidtree/internal/matter"
	"github.com/san-kum/rigidtree/internal/mobilizer"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/system"
)

func benchIntegrator(b *testing.B, integ dynamo.Integrator, dyn dynamo.System, x dynamo.State, dt float64) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integ.Step(dyn, x, nil, 0, dt)
	}
}

func BenchmarkEuler(b *testing.B) {
	benchIntegrator(b, NewEuler(), oscillator{}, dynamo.State{1, 0}, 0.01)
}

func BenchmarkRK4(b *testing.B) {
	benchIntegrator(b, NewRK4(), oscillator{}, dynamo.State{1, 0}, 0.01)
}

func BenchmarkRK45(b *testing.B) {
	benchIntegrator(b, NewRK45(), oscillator{}, dynamo.State{1, 0}, 0.01)
}

func BenchmarkVerlet(b *testing.B) {
	benchIntegrator(b, NewVerlet(), oscillator{}, dynamo.State{1, 0}, 0.01)
}

func BenchmarkLeapfrog(b *testing.B) {
	benchIntegrator(b, NewLeapfrog(), oscillator{}, dynamo.State{1, 0}, 0.01)
}

// ballChain is a hanging chain of ball-jointed links under gravity.
func ballChain(b *testing.B, links int) (*system.System, dynamo.State) {
	tree := matter.NewTree()
	parent := matter.GroundIndex
	for i := 0; i < links; i++ {
		var err error
		parent, err = tree.AddBody(parent, matter.Body{
			Mobilizer: mobilizer.MustNew(mobilizer.Ball),
			Mass:      spatial.SolidBox(1, spatial.Vec3{0.05, 0.25, 0.05}, spatial.Vec3{0, -0.25, 0}),
			Inboard:   spatial.Translation(spatial.Vec3{0, -0.5 * float64(min(i, 1)), 0}),
		})
		if err != nil {
			b.Fatal(err)
		}
	}
	grav, err := forces.NewGravityVector(tree, spatial.Vec3{0, -9.81, 0})
	if err != nil {
		b.Fatal(err)
	}
	sys, err := system.New(tree, forces.NewSet(tree, grav))
	if err != nil {
		b.Fatal(err)
	}
	s := sys.NewState()
	if err := tree.SetQToFitRotation(s, 1, spatial.RotZ(0.4)); err != nil {
		b.Fatal(err)
	}
	return sys, sys.Pack(s)
}

func BenchmarkRK4_BallChain10(b *testing.B) {
	sys, x := ballChain(b, 10)
	benchIntegrator(b, NewRK4(), sys, x, 0.001)
}

func BenchmarkVerlet_BallChain10(b *testing.B) {
	sys, x := ballChain(b, 10)
	benchIntegrator(b, NewVerlet(), sys, x, 0.001)
}
