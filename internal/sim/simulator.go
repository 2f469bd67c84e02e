package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

// Simulator drives an integrator over a system, projecting onto the
// system's constraint manifold after every accepted step.
type Simulator struct {
	dyn        dynamo.System
	integrator dynamo.Integrator
	controller dynamo.Controller
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	log        *slog.Logger
}

// New builds a simulator. A nil controller applies no actuation.
func New(dyn dynamo.System, integrator dynamo.Integrator, controller dynamo.Controller, opts ...Option) *Simulator {
	s := &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) control(x dynamo.State, t float64) dynamo.Control {
	if s.controller == nil {
		return nil
	}
	return s.controller.Compute(x, t)
}

func (s *Simulator) check(x0 dynamo.State, cfg dynamo.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("%w: initial state has %d entries, system wants %d",
			dynamo.ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}
	return nil
}

// project applies the system's projection in place when enabled.
func (s *Simulator) project(x dynamo.State, cfg dynamo.Config) bool {
	if !cfg.Project {
		return false
	}
	p, ok := s.dyn.(dynamo.Projector)
	return ok && p.Project(x, nil)
}

func (s *Simulator) invalid(step int, t float64) SimError {
	msg := "invalid state (NaN/Inf)"
	if f, ok := s.dyn.(interface{ LastError() error }); ok && f.LastError() != nil {
		msg = f.LastError().Error()
	}
	return SimError{Time: t, Step: step, Message: msg}
}

func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*dynamo.Result, error) {
	if err := s.check(x0, cfg); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &dynamo.Result{
		States:   make([]dynamo.State, 0, steps+1),
		Controls: make([]dynamo.Control, 0, steps),
		Times:    make([]float64, 0, steps+1),
		Metrics:  make(map[string]float64),
		Errors:   make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	if s.project(x, cfg) {
		result.Projections++
	}
	t := 0.0
	dt := cfg.Dt

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	initialEnergy := s.computeEnergy(x)
	s.log.Debug("run started", "dim", len(x), "dt", cfg.Dt, "duration", cfg.Duration, "adaptive", cfg.Adaptive)

	const eps = 1e-12
	for i := 0; t < cfg.Duration-eps*cfg.Duration; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		c := s.control(x, t)

		for _, m := range s.metrics {
			m.Observe(x, c, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, c, t)
		}

		used := math.Min(dt, cfg.Duration-t)
		var (
			newX    dynamo.State
			stepErr error
		)
		if cfg.Adaptive {
			var rejected int
			newX, used, dt, rejected, stepErr = s.adaptiveStep(x, c, t, used, cfg)
			result.Rejected += rejected
		} else {
			newX = s.integrator.Step(s.dyn, x, c, t, used)
		}

		if stepErr != nil {
			result.Errors = append(result.Errors, &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: stepErr})
			s.log.Warn("step failed", "step", i, "t", t, "err", stepErr)
			break
		}

		if cfg.ValidateState && !newX.IsValid() {
			err := s.invalid(i, t)
			result.Errors = append(result.Errors, err)
			s.log.Warn("aborting run", "err", err)
			break
		}

		if s.project(newX, cfg) {
			result.Projections++
		}

		x = newX
		t += used
		result.StepsTaken++

		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, c)
		result.Times = append(result.Times, t)
	}

	finalEnergy := s.computeEnergy(x)
	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(finalEnergy-initialEnergy) / math.Abs(initialEnergy)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	s.log.Debug("run finished", "steps", result.StepsTaken, "rejected", result.Rejected,
		"projections", result.Projections, "energy_drift", result.EnergyDrift)
	return result, nil
}

func (s *Simulator) computeEnergy(x dynamo.State) float64 {
	if ec, ok := s.dyn.(dynamo.Hamiltonian); ok {
		return ec.Energy(x)
	}
	return 0
}

// adaptiveStep returns the accepted state, the step it used, the next
// suggested step and how many attempts were rejected on the way.
func (s *Simulator) adaptiveStep(x dynamo.State, c dynamo.Control, t, dt float64, cfg dynamo.Config) (dynamo.State, float64, float64, int, error) {
	clamp := func(h float64) float64 { return math.Max(cfg.MinDt, math.Min(h, cfg.MaxDt)) }

	if adaptive, ok := s.integrator.(dynamo.AdaptiveIntegrator); ok {
		rejected := 0
		for {
			newX, next, err := adaptive.StepAdaptive(s.dyn, x, c, t, dt, cfg.Tolerance)
			if !errors.Is(err, dynamo.ErrStepRejected) {
				return newX, dt, clamp(next), rejected, err
			}
			rejected++
			if dt <= cfg.MinDt {
				return nil, dt, dt, rejected, dynamo.ErrStepTooSmall
			}
			dt = math.Max(next, cfg.MinDt)
		}
	}

	// step doubling for fixed-step schemes
	x1 := s.integrator.Step(s.dyn, x, c, t, dt)
	xHalf := s.integrator.Step(s.dyn, x, c, t, dt/2)
	x2 := s.integrator.Step(s.dyn, xHalf, c, t+dt/2, dt/2)

	diff := x1.Sub(x2)
	if p, ok := s.dyn.(dynamo.Projector); ok && cfg.Project {
		p.Project(x2, diff)
	}
	err := diff.Norm()

	if !(err <= cfg.Tolerance) {
		if dt/2 < cfg.MinDt {
			return nil, dt, dt, 1, dynamo.ErrStepTooSmall
		}
		newX, used, next, rejected, e := s.adaptiveStep(x, c, t, dt/2, cfg)
		return newX, used, next, rejected + 1, e
	}

	next := dt
	if err < cfg.Tolerance/10 {
		next = dt * 2
	}
	return x2, dt, clamp(next), 0, nil
}

// RunWithCallback steps without recording, handing every state to
// callback until it returns false or the duration is reached.
func (s *Simulator) RunWithCallback(ctx context.Context, x0 dynamo.State, cfg dynamo.Config, callback func(dynamo.State, dynamo.Control, float64) bool) error {
	if err := s.check(x0, cfg); err != nil {
		return err
	}

	x := x0.Clone()
	s.project(x, cfg)
	t := 0.0
	dt := cfg.Dt

	for step := 0; t < cfg.Duration; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c := s.control(x, t)

		if !callback(x, c, t) {
			return nil
		}

		x = s.integrator.Step(s.dyn, x, c, t, dt)
		t += dt

		if cfg.ValidateState && !x.IsValid() {
			return &dynamo.SimulationError{Step: step, Time: t, Wrapped: fmt.Errorf("%w: %s", dynamo.ErrInvalidState, s.invalid(step, t).Message)}
		}
		s.project(x, cfg)
	}

	return nil
}

// SimError is the non-fatal per-step record kept in a Result.
type SimError = dynamo.SimError
