// Package experiment assembles a configured model, an integrator and the
// diagnostics into a runnable simulation.
package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/sim"
	"github.com/san-kum/rigidtree/internal/system"
)

type Option func(*options)

type options struct {
	log       *slog.Logger
	registry  *Registry
	metrics   []string
	observers []dynamo.Observer
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithMetrics replaces DefaultMetrics.
func WithMetrics(names ...string) Option {
	return func(o *options) { o.metrics = names }
}

func WithObserver(obs dynamo.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

type Experiment struct {
	cfg       *config.Config
	model     *config.Model
	simulator *sim.Simulator
	log       *slog.Logger
}

// New builds everything a run needs from cfg.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}

	model, err := cfg.Build(system.WithLogger(o.log))
	if err != nil {
		return nil, err
	}
	integrator, err := o.registry.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	ms, err := o.registry.Metrics(model, o.metrics...)
	if err != nil {
		return nil, err
	}

	simulator := sim.New(model.System, integrator, model.Controller, sim.WithLogger(o.log))
	for _, m := range ms {
		simulator.AddMetric(m)
	}
	for _, obs := range o.observers {
		simulator.AddObserver(obs)
	}
	return &Experiment{cfg: cfg, model: model, simulator: simulator, log: o.log}, nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }
func (e *Experiment) Model() *config.Model   { return e.model }

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	e.log.Info("running", "model", e.cfg.Name, "integrator", e.cfg.Integrator,
		"bodies", e.model.Tree.NumBodies()-1, "dt", e.cfg.Dt, "duration", e.cfg.Duration)
	res, err := e.simulator.Run(ctx, e.model.InitialVector(), e.cfg.RunConfig())
	if err != nil {
		return res, fmt.Errorf("experiment %s: %w", e.cfg.Name, err)
	}
	return res, nil
}

// Summary condenses a result with the system's evaluation counts.
type Summary struct {
	Steps           int
	Rejected        int
	Projections     int
	EnergyDrift     float64
	QuaternionDrift float64
	Metrics         map[string]float64
	Evaluations     map[string]uint64
	Counters        system.Counters
	Errors          []error
}

func (e *Experiment) Summarize(res *dynamo.Result) Summary {
	sys := e.model.System
	return Summary{
		Steps:           res.StepsTaken,
		Rejected:        res.Rejected,
		Projections:     res.Projections,
		EnergyDrift:     res.EnergyDrift,
		QuaternionDrift: res.Metrics["quaternion_drift"],
		Metrics:         res.Metrics,
		Evaluations:     sys.Evaluations(),
		Counters:        sys.Counters(),
		Errors:          res.Errors,
	}
}
