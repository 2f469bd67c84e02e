package matter

import (
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rigidtree/internal/mobilizer"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/stage"
	"github.com/san-kum/rigidtree/internal/state"
)

var _ = Describe("Tree construction", func() {
	It("assigns disjoint slots in body order", func() {
		t := chain(mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(mobilizer.Free), mobilizer.MustNew(mobilizer.Weld))
		Expect(t.NQ()).To(Equal(8))
		Expect(t.NU()).To(Equal(7))
		off, n := t.QSlot(GroundIndex)
		Expect([]int{off, n}).To(Equal([]int{0, 0}))
		off, n = t.QSlot(2)
		Expect([]int{off, n}).To(Equal([]int{1, 7}))
		off, n = t.USlot(3)
		Expect([]int{off, n}).To(Equal([]int{7, 0}))
		Expect(t.Children(1)).To(Equal([]BodyIndex{2}))
		Expect(t.Level(3)).To(Equal(3))
	})

	It("rejects bad input", func() {
		t := NewTree()
		_, err := t.AddBody(5, Body{Mobilizer: mobilizer.MustNew(mobilizer.Pin), Mass: box(1)})
		Expect(errors.Is(err, ErrBadParent)).To(BeTrue())
		_, err = t.AddBody(GroundIndex, Body{Mass: box(1)})
		Expect(errors.Is(err, ErrBadMobilizer)).To(BeTrue())
		_, err = t.AddBody(GroundIndex, Body{Mobilizer: mobilizer.MustNew(mobilizer.Pin), Mass: spatial.PointMass(-1, spatial.Vec3{})})
		Expect(errors.Is(err, spatial.ErrNegativeMass)).To(BeTrue())
		_, err = t.AddBody(GroundIndex, Body{Name: "ground", Mobilizer: mobilizer.MustNew(mobilizer.Pin), Mass: box(1)})
		Expect(errors.Is(err, ErrDuplicateName)).To(BeTrue())

		newState(t)
		_, err = t.AddBody(GroundIndex, Body{Mobilizer: mobilizer.MustNew(mobilizer.Pin), Mass: box(1)})
		Expect(errors.Is(err, ErrTopologyFrozen)).To(BeTrue())
	})

	It("panics with a contract violation when queried too early", func() {
		t := chain(mobilizer.MustNew(mobilizer.Pin))
		s := newState(t)
		Expect(func() { t.BodyTransform(s, 1) }).To(PanicWith(BeAssignableToTypeOf(&stage.ContractViolation{})))
		realizeTo(t, s, stage.Position, nil)
		Expect(func() { t.BodyVelocity(s, 1) }).To(PanicWith(BeAssignableToTypeOf(&stage.ContractViolation{})))
	})

	It("rejects body indices outside the tree", func() {
		t := chain(mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(mobilizer.Ball))
		s := newState(t)
		realizeTo(t, s, stage.Acceleration, nil)
		for _, b := range []BodyIndex{-1, 3, 5} {
			_, err := t.BodyTransform(s, b)
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.MobilizerTransform(s, b)
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.BodyVelocity(s, b)
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.MobilizerVelocity(s, b)
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.BodyAcceleration(s, b)
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.StationLocation(s, b, spatial.Vec3{})
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.StationVelocity(s, b, spatial.Vec3{})
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.StationAcceleration(s, b, spatial.Vec3{})
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.MassCenterLocation(s, b)
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.MobilizerQ(s, b)
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.MobilizerU(s, b)
			Expect(err).To(MatchError(ErrBadBody))
			_, err = t.Info(b)
			Expect(err).To(MatchError(ErrBadBody))
		}

		info := must(t.Info(2))
		Expect(info.ParentName).To(Equal(t.Name(1)))
		Expect(info.Level).To(Equal(2))
		Expect(info.NQ).To(Equal(4))
		Expect(info.NU).To(Equal(3))
		Expect(info.QOff).To(Equal(1))
		Expect(must(t.Info(GroundIndex)).Name).To(Equal("ground"))
	})

	It("gives every state of a tree the same layout", func() {
		t := chain(mobilizer.MustNew(mobilizer.Ball))
		s1, s2 := newState(t), newState(t)
		Expect(s1.NQ()).To(Equal(s2.NQ()))
		Expect(s2.Q()[:4]).To(Equal([]float64{1, 0, 0, 0}))
	})
})

var _ = Describe("Kinematics", func() {
	kinds := []mobilizer.Kind{
		mobilizer.Weld, mobilizer.Translate, mobilizer.Slider, mobilizer.Pin, mobilizer.Screw,
		mobilizer.Cylinder, mobilizer.BendStretch, mobilizer.Universal, mobilizer.Planar,
		mobilizer.Gimbal, mobilizer.Ball, mobilizer.Ellipsoid, mobilizer.Free,
		mobilizer.LineOrientation, mobilizer.FreeLine,
	}

	for _, k := range kinds {
		It("composes body transforms directly for a "+k.String()+" joint", func() {
			rng := rand.New(rand.NewSource(int64(k)))
			leaf := mobilizer.MustNew(k, mobilizer.WithPitch(0.2), mobilizer.WithSemiAxes(spatial.Vec3{0.5, 0.4, 0.3}))
			t := chain(mobilizer.MustNew(mobilizer.Pin), leaf, mobilizer.MustNew(mobilizer.Slider))
			s := newState(t)
			randomize(t, s, rng)
			realizeTo(t, s, stage.Position, nil)

			X := spatial.IdentityTransform()
			for b := BodyIndex(1); b < 4; b++ {
				n := &t.nodes[b]
				X = X.Compose(n.X_PF).Compose(n.mob.Transform(must(t.MobilizerQ(s, b)))).Compose(n.X_BM.Inverse())
				expectTransform(must(t.BodyTransform(s, b)), X, 1e-12)
			}
		})
	}

	It("differentiates body transforms into body velocities and accelerations", func() {
		rng := rand.New(rand.NewSource(1))
		const h = 1e-6
		t := chain(
			mobilizer.MustNew(mobilizer.Free),
			mobilizer.MustNew(mobilizer.BendStretch, mobilizer.Reversed()),
			mobilizer.MustNew(mobilizer.Ellipsoid, mobilizer.WithSemiAxes(spatial.Vec3{0.5, 0.4, 0.3})),
			mobilizer.MustNew(mobilizer.Universal),
			mobilizer.MustNew(mobilizer.Ball, mobilizer.UseEulerAngles(), mobilizer.Reversed()),
			mobilizer.MustNew(mobilizer.FreeLine),
		)
		s := newState(t)
		randomize(t, s, rng)
		realizeTo(t, s, stage.Velocity, nil)
		f := gravityForces(t, s)
		Expect(t.AddInMobilityForce(2, 1, 0.7, f)).To(Succeed())
		realizeTo(t, s, stage.Acceleration, f)

		qdot := t.QDot(s)
		udot := t.UDot(s)
		plus, minus := s.Clone(), s.Clone()
		Expect(plus.SetQ(at(s.Q(), qdot, h))).To(Succeed())
		Expect(plus.SetU(at(s.U(), udot, h))).To(Succeed())
		Expect(minus.SetQ(at(s.Q(), qdot, -h))).To(Succeed())
		Expect(minus.SetU(at(s.U(), udot, -h))).To(Succeed())
		realizeTo(t, plus, stage.Velocity, nil)
		realizeTo(t, minus, stage.Velocity, nil)

		for b := BodyIndex(1); int(b) < t.NumBodies(); b++ {
			Xp, Xm := must(t.BodyTransform(plus, b)), must(t.BodyTransform(minus, b))
			W := Xp.R.Sub(Xm.R).Scale(1 / (2 * h)).Mul(must(t.BodyTransform(s, b)).R.T())
			V := spatial.SpatialVec{
				Ang: spatial.Vec3{W[2][1], W[0][2], W[1][0]},
				Lin: Xp.P.Sub(Xm.P).Scale(1 / (2 * h)),
			}
			expectSpatialVec(must(t.BodyVelocity(s, b)), V, 1e-6)

			A := must(t.BodyVelocity(plus, b)).Sub(must(t.BodyVelocity(minus, b))).Scale(1 / (2 * h))
			expectSpatialVec(must(t.BodyAcceleration(s, b)), A, 1e-5)
		}
	})

	It("keeps kinetic energy fixed across repeated realizations", func() {
		rng := rand.New(rand.NewSource(2))
		t := chain(mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(mobilizer.Slider), mobilizer.MustNew(mobilizer.Ball))
		s := newState(t)
		randomize(t, s, rng)
		realizeTo(t, s, stage.Velocity, nil)
		ke := t.KineticEnergy(s)
		Expect(ke).To(BeNumerically(">", 0))
		for i := 0; i < 5; i++ {
			s.Invalidate(stage.Position)
			realizeTo(t, s, stage.Velocity, nil)
			Expect(t.KineticEnergy(s)).To(Equal(ke))
		}
	})

	It("matches kinetic energy with ½uᵀMu", func() {
		rng := rand.New(rand.NewSource(3))
		t := chain(mobilizer.MustNew(mobilizer.Free), mobilizer.MustNew(mobilizer.Universal), mobilizer.MustNew(mobilizer.Planar))
		s := newState(t)
		randomize(t, s, rng)
		realizeTo(t, s, stage.Velocity, nil)
		Mu := make([]float64, t.NU())
		Expect(t.MultiplyByM(s, s.U(), Mu)).To(Succeed())
		uMu := 0.0
		for i, ui := range s.U() {
			uMu += ui * Mu[i]
		}
		Expect(t.KineticEnergy(s)).To(BeNumerically("~", 0.5*uMu, 1e-12))
	})

	It("fits joint transforms and velocities from requested values", func() {
		t := chain(mobilizer.MustNew(mobilizer.Free, mobilizer.Reversed()))
		s := newState(t)
		X := spatial.NewTransform(spatial.BodyXYZ(spatial.Vec3{0.2, -0.4, 1.1}), spatial.Vec3{1, 2, 3})
		V := spatial.SpatialVec{Ang: spatial.Vec3{0.3, -0.2, 0.5}, Lin: spatial.Vec3{-1, 0.5, 0.25}}
		Expect(t.SetQToFitTransform(s, 1, X)).To(Succeed())
		Expect(t.SetUToFitVelocity(s, 1, V)).To(Succeed())
		realizeTo(t, s, stage.Velocity, nil)
		expectTransform(must(t.MobilizerTransform(s, 1)), X, 1e-12)
		expectSpatialVec(must(t.MobilizerVelocity(s, 1)), V, 1e-12)
		Expect(errors.Is(t.SetQToFitTransform(s, 9, X), ErrBadBody)).To(BeTrue())
	})
})

var _ = Describe("Cache invalidation", func() {
	It("drops Position and later entries but keeps Instance", func() {
		rng := rand.New(rand.NewSource(4))
		t := chain(mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(mobilizer.Slider), mobilizer.MustNew(mobilizer.Ball))
		s := newState(t)
		randomize(t, s, rng)
		realizeTo(t, s, stage.Velocity, nil)
		realizeTo(t, s, stage.Acceleration, gravityForces(t, s))
		Expect(t.lay.acc.IsValid(s)).To(BeTrue())

		Expect(t.SetOneQ(s, 1, 0, 0.25)).To(Succeed())
		Expect(s.Stage()).To(Equal(stage.Time))
		Expect(t.lay.pos.IsValid(s)).To(BeFalse())
		Expect(t.lay.vel.IsValid(s)).To(BeFalse())
		Expect(t.lay.dyn.IsValid(s)).To(BeFalse())
		Expect(t.lay.abi.IsValid(s)).To(BeFalse())
		Expect(t.lay.acc.IsValid(s)).To(BeFalse())

		realizeTo(t, s, stage.Velocity, nil)
		realizeTo(t, s, stage.Acceleration, gravityForces(t, s))

		fresh := newState(t)
		Expect(fresh.SetQ(s.Q())).To(Succeed())
		Expect(fresh.SetU(s.U())).To(Succeed())
		realizeTo(t, fresh, stage.Velocity, nil)
		realizeTo(t, fresh, stage.Acceleration, gravityForces(t, fresh))
		Expect(t.UDot(s)).To(Equal(t.UDot(fresh)))
		Expect(t.Position(s).X_GB).To(Equal(t.Position(fresh).X_GB))
	})

	It("evaluates articulated inertias lazily, once per position", func() {
		t := chain(mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(mobilizer.Pin))
		s := newState(t)
		realizeTo(t, s, stage.Velocity, nil)
		Expect(t.ArticulatedEvaluations(s)).To(BeZero())
		Expect(t.DynamicsEvaluations(s)).To(BeZero())

		realizeTo(t, s, stage.Dynamics, nil)
		t.Articulated(s)
		Expect(t.ArticulatedEvaluations(s)).To(Equal(uint64(1)))
		Expect(t.DynamicsEvaluations(s)).To(Equal(uint64(1)))

		Expect(t.SetOneU(s, 1, 0, 2)).To(Succeed())
		realizeTo(t, s, stage.Dynamics, nil)
		Expect(t.ArticulatedEvaluations(s)).To(Equal(uint64(1)))
		Expect(t.DynamicsEvaluations(s)).To(Equal(uint64(2)))

		Expect(t.SetOneQ(s, 2, 0, 0.3)).To(Succeed())
		realizeTo(t, s, stage.Dynamics, nil)
		Expect(t.ArticulatedEvaluations(s)).To(Equal(uint64(2)))
	})
})

var _ = Describe("Dynamics operators", func() {
	var (
		t   *Tree
		s   *state.State
		f   *Forces
		rng *rand.Rand
	)

	BeforeEach(func() {
		rng = rand.New(rand.NewSource(5))
		t = chain(mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(mobilizer.Slider), mobilizer.MustNew(mobilizer.Ball))
		s = newState(t)
		randomize(t, s, rng)
		realizeTo(t, s, stage.Velocity, nil)
		f = gravityForces(t, s)
		Expect(t.AddInMobilityForce(1, 0, 0.8, f)).To(Succeed())
		Expect(t.AddInStationForce(s, 3, spatial.Vec3{0.1, 0.2, 0.3}, spatial.Vec3{1, -2, 0.5}, f)).To(Succeed())
		Expect(t.AddInBodyTorque(2, spatial.Vec3{0, 0.3, 0}, f)).To(Succeed())
		realizeTo(t, s, stage.Acceleration, f)
	})

	It("agrees with an explicit M⁻¹(f - C) solve", func() {
		M, err := t.CalcM(s)
		Expect(err).NotTo(HaveOccurred())
		for i := range M {
			for j := range M {
				Expect(M[i][j]).To(BeNumerically("~", M[j][i], 1e-12))
			}
		}
		// Inverse dynamics at udot = 0 gives C - f, applied forces included.
		rhs := make([]float64, t.NU())
		Expect(t.CalcInverseDynamics(s, make([]float64, t.NU()), f.Mobility, f.Body, rhs)).To(Succeed())
		for i := range rhs {
			rhs[i] = -rhs[i]
		}
		want, err := spatial.SolveDense(M, rhs)
		Expect(err).NotTo(HaveOccurred())
		expectSlice(t.UDot(s), want, 1e-10)
	})

	It("splits inverse dynamics into M·v plus the bias", func() {
		c := make([]float64, t.NU())
		Expect(t.CalcBias(s, c)).To(Succeed())
		v := []float64{0.3, -1.2, 0.5, 0.25, -0.7}
		want := make([]float64, t.NU())
		Expect(t.MultiplyByM(s, v, want)).To(Succeed())
		for i := range want {
			want[i] += c[i]
		}
		tau := make([]float64, t.NU())
		Expect(t.CalcInverseDynamics(s, v, nil, nil, tau)).To(Succeed())
		expectSlice(tau, want, 1e-10)
	})

	It("weights the system mass center by body mass", func() {
		var sum spatial.Vec3
		for b := BodyIndex(1); int(b) < t.NumBodies(); b++ {
			sum = sum.Add(must(t.MassCenterLocation(s, b)).Scale(t.MassProperties(b).Mass))
		}
		expectVec(t.SystemMassCenter(s), sum.Scale(1/t.TotalMass()), 1e-12)
	})

	It("inverts M with the two-pass operator", func() {
		v := []float64{0.3, -1.2, 0.5, 0.25, -0.7}
		Mv := make([]float64, t.NU())
		Expect(t.MultiplyByM(s, v, Mv)).To(Succeed())
		back := make([]float64, t.NU())
		Expect(t.MultiplyByMInv(s, Mv, back)).To(Succeed())
		expectSlice(back, v, 1e-12)
		Expect(errors.Is(t.MultiplyByM(s, v[:2], Mv), ErrLength)).To(BeTrue())
	})

	It("recovers the applied mobility forces by inverse dynamics", func() {
		tau := make([]float64, t.NU())
		Expect(t.CalcInverseDynamics(s, t.UDot(s), nil, f.Body, tau)).To(Succeed())
		expectSlice(tau, f.Mobility, 1e-10)
	})

	It("leaves the mass center of a torque-free body unaccelerated", func() {
		free := chain(mobilizer.MustNew(mobilizer.Free))
		fs := newState(free)
		randomize(free, fs, rng)
		realizeTo(free, fs, stage.Acceleration, nil)
		expectVec(must(free.StationAcceleration(fs, 1, free.MassProperties(1).COM)), spatial.Vec3{}, 1e-12)

		const h = 1e-6
		plus, minus := fs.Clone(), fs.Clone()
		Expect(plus.SetQ(at(fs.Q(), free.QDot(fs), h))).To(Succeed())
		Expect(plus.SetU(at(fs.U(), free.UDot(fs), h))).To(Succeed())
		Expect(minus.SetQ(at(fs.Q(), free.QDot(fs), -h))).To(Succeed())
		Expect(minus.SetU(at(fs.U(), free.UDot(fs), -h))).To(Succeed())
		realizeTo(free, plus, stage.Velocity, nil)
		realizeTo(free, minus, stage.Velocity, nil)
		hdot := free.Momentum(plus).Sub(free.Momentum(minus)).Scale(1 / (2 * h))
		expectSpatialVec(hdot, spatial.SpatialVec{}, 1e-6)
	})

	It("reports the applied-force helpers' errors", func() {
		g := t.NewForces()
		Expect(errors.Is(t.AddInMobilityForce(3, 3, 1, g), ErrBadAxis)).To(BeTrue())
		Expect(errors.Is(t.AddInBodyTorque(7, spatial.Vec3{}, g), ErrBadBody)).To(BeTrue())
	})
})

var _ = Describe("Reversed mobilizers", func() {
	It("reproduces a pin pendulum with negated coordinates", func() {
		fwd := chain(mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(mobilizer.Pin))
		rev := chain(mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(mobilizer.Pin, mobilizer.Reversed()))
		sf, sr := newState(fwd), newState(rev)
		Expect(sf.SetQ([]float64{0.3, -0.8})).To(Succeed())
		Expect(sf.SetU([]float64{0.5, 1.1})).To(Succeed())
		Expect(sr.SetQ([]float64{0.3, 0.8})).To(Succeed())
		Expect(sr.SetU([]float64{0.5, -1.1})).To(Succeed())
		for _, p := range []struct {
			t *Tree
			s *state.State
		}{{fwd, sf}, {rev, sr}} {
			realizeTo(p.t, p.s, stage.Velocity, nil)
			realizeTo(p.t, p.s, stage.Acceleration, gravityForces(p.t, p.s))
		}
		for b := BodyIndex(1); b <= 2; b++ {
			expectTransform(must(rev.BodyTransform(sr, b)), must(fwd.BodyTransform(sf, b)), 1e-12)
			expectSpatialVec(must(rev.BodyVelocity(sr, b)), must(fwd.BodyVelocity(sf, b)), 1e-12)
			expectSpatialVec(must(rev.BodyAcceleration(sr, b)), must(fwd.BodyAcceleration(sf, b)), 1e-10)
		}
		Expect(rev.UDot(sr)[1]).To(BeNumerically("~", -fwd.UDot(sf)[1], 1e-10))
	})

	// Kinds whose motion set is closed under inversion, so the reversed
	// joint can reproduce any forward pose and velocity.
	kinds := []mobilizer.Kind{
		mobilizer.Translate, mobilizer.Screw, mobilizer.Cylinder, mobilizer.Planar,
		mobilizer.Gimbal, mobilizer.Ball, mobilizer.Free,
	}
	for _, k := range kinds {
		It("matches the forward "+k.String()+" joint after fitting", func() {
			opts := []mobilizer.Option{mobilizer.WithPitch(0.2), mobilizer.WithSemiAxes(spatial.Vec3{0.6, 0.6, 0.6})}
			fwd := chain(mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(k, opts...))
			rev := chain(mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(k, append(opts, mobilizer.Reversed())...))
			sf, sr := newState(fwd), newState(rev)
			randomize(fwd, sf, rand.New(rand.NewSource(int64(10+k))))
			realizeTo(fwd, sf, stage.Velocity, nil)

			Expect(rev.SetMobilizerQ(sr, 1, must(fwd.MobilizerQ(sf, 1)))).To(Succeed())
			Expect(rev.SetMobilizerU(sr, 1, must(fwd.MobilizerU(sf, 1)))).To(Succeed())
			Expect(rev.SetQToFitTransform(sr, 2, must(fwd.MobilizerTransform(sf, 2)))).To(Succeed())
			Expect(rev.SetUToFitVelocity(sr, 2, must(fwd.MobilizerVelocity(sf, 2)))).To(Succeed())

			realizeTo(fwd, sf, stage.Acceleration, gravityForces(fwd, sf))
			realizeTo(rev, sr, stage.Velocity, nil)
			realizeTo(rev, sr, stage.Acceleration, gravityForces(rev, sr))
			for b := BodyIndex(1); b <= 2; b++ {
				expectTransform(must(rev.BodyTransform(sr, b)), must(fwd.BodyTransform(sf, b)), 1e-10)
				expectSpatialVec(must(rev.BodyVelocity(sr, b)), must(fwd.BodyVelocity(sf, b)), 1e-10)
				expectSpatialVec(must(rev.BodyAcceleration(sr, b)), must(fwd.BodyAcceleration(sf, b)), 1e-8)
			}
		})
	}
})

var _ = Describe("Coordinates", func() {
	It("projects drifted quaternions back to unit norm", func() {
		t := chain(mobilizer.MustNew(mobilizer.Ball), mobilizer.MustNew(mobilizer.Pin))
		s := newState(t)
		Expect(t.SetMobilizerQ(s, 1, []float64{1.1, 0.2, 0, 0})).To(Succeed())
		Expect(t.MaxQuaternionError(s)).To(BeNumerically(">", 0.1))
		qErr := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
		Expect(t.ProjectQ(s, qErr)).To(BeTrue())
		Expect(t.MaxQuaternionError(s)).To(BeNumerically("<", 1e-15))
		Expect(qErr[4]).To(Equal(0.5))
		Expect(s.Stage()).To(Equal(stage.Instance))
	})

	It("converts whole states between quaternions and Euler angles", func() {
		rng := rand.New(rand.NewSource(6))
		t := chain(mobilizer.MustNew(mobilizer.Free), mobilizer.MustNew(mobilizer.Pin), mobilizer.MustNew(mobilizer.LineOrientation))
		s := newState(t)
		randomize(t, s, rng)
		realizeTo(t, s, stage.Position, nil)

		qe, err := t.ConvertToEulerAngles(s.Q())
		Expect(err).NotTo(HaveOccurred())
		et := t.EulerVariant(true)
		Expect(qe).To(HaveLen(et.NQ()))
		Expect(et.NQ()).To(Equal(t.NQ() - 2))
		es := newState(et)
		Expect(es.SetQ(qe)).To(Succeed())
		realizeTo(et, es, stage.Position, nil)
		for b := BodyIndex(1); b <= 3; b++ {
			expectTransform(must(et.BodyTransform(es, b)), must(t.BodyTransform(s, b)), 1e-12)
		}
		back, err := et.ConvertToQuaternions(qe)
		Expect(err).NotTo(HaveOccurred())
		expectSlice(back, s.Q(), 1e-12)
	})

	It("round-trips qdot through N and its inverse", func() {
		rng := rand.New(rand.NewSource(8))
		t := chain(mobilizer.MustNew(mobilizer.Free), mobilizer.MustNew(mobilizer.Gimbal), mobilizer.MustNew(mobilizer.FreeLine))
		s := newState(t)
		randomize(t, s, rng)
		qdot := make([]float64, t.NQ())
		Expect(t.MultiplyByN(s, s.U(), qdot)).To(Succeed())
		u := make([]float64, t.NU())
		Expect(t.MultiplyByNInv(s, qdot, u)).To(Succeed())
		expectSlice(u, s.U(), 1e-12)
	})
})
