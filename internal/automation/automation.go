// Package automation runs batches of simulations: scripted scenarios from
// YAML, one-parameter sweeps and Monte Carlo trials over perturbed initial
// states.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/experiment"
	"github.com/san-kum/rigidtree/internal/sim"
	"github.com/san-kum/rigidtree/internal/storage"
)

var ErrEmpty = errors.New("automation: nothing to run")

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run: a preset or a model file, with optional
// overrides applied through config.Config.SetParam.
type ScenarioStep struct {
	Preset     string             `yaml:"preset,omitempty"`
	Config     string             `yaml:"config,omitempty"`
	Integrator string             `yaml:"integrator,omitempty"`
	Params     map[string]float64 `yaml:"params,omitempty"`
	Save       bool               `yaml:"save,omitempty"`
}

// StepResult is what one scenario step produced. RunID is empty unless
// the step was saved.
type StepResult struct {
	Model   string
	RunID   string
	Summary experiment.Summary
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: %w", path, ErrEmpty)
	}
	return &scenario, nil
}

func (step ScenarioStep) build() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case step.Config != "":
		c, err := config.Load(step.Config)
		if err != nil {
			return nil, err
		}
		cfg = c
	case step.Preset != "":
		if cfg = config.GetPreset(step.Preset); cfg == nil {
			return nil, fmt.Errorf("%w: %s", experiment.ErrUnknownModel, step.Preset)
		}
	default:
		return nil, errors.New("automation: step names neither a preset nor a config")
	}
	if step.Integrator != "" {
		cfg.Integrator = step.Integrator
	}
	for name, v := range step.Params {
		if err := cfg.SetParam(name, v); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// RunScenario executes the steps in order. Steps marked save are stored
// when st is non-nil. It stops at the first failing step and returns what
// completed.
func RunScenario(ctx context.Context, sc *Scenario, reg *experiment.Registry, st *storage.Store, log *slog.Logger) ([]StepResult, error) {
	results := make([]StepResult, 0, len(sc.Steps))

	for i, step := range sc.Steps {
		cfg, err := step.build()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		log.Info("scenario step", "scenario", sc.Name, "step", i+1, "of", len(sc.Steps), "model", cfg.Name)

		exp, err := experiment.New(cfg, experiment.WithRegistry(reg), experiment.WithLogger(log))
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		sr := StepResult{Model: cfg.Name, Summary: exp.Summarize(res)}
		if step.Save && st != nil {
			m := exp.Model()
			nq, nu, nz := m.System.Split()
			sr.RunID, err = st.Save(storage.RunInfo{
				Model:       cfg.Name,
				Integrator:  cfg.Integrator,
				Dt:          cfg.Dt,
				Duration:    cfg.Duration,
				Seed:        cfg.Seed,
				NQ:          nq,
				NU:          nu,
				NZ:          nz,
				Columns:     m.Columns(),
				Evaluations: m.System.Evaluations(),
			}, res)
			if err != nil {
				return results, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// ParameterSweep runs Base once per value of Param spread evenly over
// [Min, Max].
type ParameterSweep struct {
	Base     *config.Config
	Param    string
	Min, Max float64
	Steps    int
	// Workers bounds concurrent runs; zero means GOMAXPROCS.
	Workers int
}

type SweepResult struct {
	Value       float64
	Final       dynamo.State
	MinEnergy   float64
	MaxEnergy   float64
	EnergyDrift float64
	Steps       int
	Err         error
}

// Values lists the sweep points.
func (sw *ParameterSweep) Values() []float64 {
	if sw.Steps <= 1 {
		return []float64{sw.Min}
	}
	vals := make([]float64, sw.Steps)
	h := (sw.Max - sw.Min) / float64(sw.Steps-1)
	for i := range vals {
		vals[i] = sw.Min + float64(i)*h
	}
	vals[len(vals)-1] = sw.Max
	return vals
}

// RunSweep runs every point concurrently, each on its own model. A point
// whose model fails to build or run records the error in its result; only
// cancellation and a bad parameter name abort the sweep.
func RunSweep(ctx context.Context, sw *ParameterSweep, reg *experiment.Registry) ([]SweepResult, error) {
	if err := sw.Base.Clone().SetParam(sw.Param, sw.Min); err != nil {
		return nil, err
	}
	vals := sw.Values()
	results := make([]SweepResult, len(vals))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(sw.Workers))
	for i, v := range vals {
		g.Go(func() error {
			results[i] = sweepPoint(ctx, sw.Base, sw.Param, v, reg)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func sweepPoint(ctx context.Context, base *config.Config, param string, v float64, reg *experiment.Registry) SweepResult {
	r := SweepResult{Value: v}
	cfg := base.Clone()
	if r.Err = cfg.SetParam(param, v); r.Err != nil {
		return r
	}
	exp, err := experiment.New(cfg, experiment.WithRegistry(reg), experiment.WithMetrics(), experiment.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		r.Err = err
		return r
	}
	res, err := exp.Run(ctx)
	if err != nil {
		r.Err = err
		return r
	}

	sys := exp.Model().System
	r.Final = res.Final()
	r.EnergyDrift = res.EnergyDrift
	r.Steps = res.StepsTaken
	r.MinEnergy, r.MaxEnergy = math.Inf(1), math.Inf(-1)
	for _, x := range res.States {
		e := sys.Energy(x)
		r.MinEnergy = math.Min(r.MinEnergy, e)
		r.MaxEnergy = math.Max(r.MaxEnergy, e)
	}
	return r
}

func workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// MonteCarlo runs Trials copies of Base, each starting from the base
// initial state with every q and u entry moved uniformly within
// ±Perturbation. Quaternions are renormalized after the move.
type MonteCarlo struct {
	Base         *config.Config
	Perturbation float64
	Trials       int
	Seed         int64
	// Bound is the largest |x| a stable trial may end with; zero means 1e6.
	Bound   float64
	Workers int
}

type MonteCarloResult struct {
	Trial  int
	Start  dynamo.State
	Final  dynamo.State
	Stable bool
}

// RunMonteCarlo fans the trials out over a sim.Ensemble; trial i draws
// from a generator seeded with Seed+i, so results do not depend on
// scheduling.
func RunMonteCarlo(ctx context.Context, mc *MonteCarlo, reg *experiment.Registry) ([]MonteCarloResult, error) {
	if mc.Trials <= 0 {
		return nil, ErrEmpty
	}
	bound := mc.Bound
	if bound == 0 {
		bound = 1e6
	}
	starts := make([]dynamo.State, mc.Trials)

	ens := sim.NewEnsemble(func(i int, seed int64) (sim.Member, error) {
		m, err := mc.Base.Build()
		if err != nil {
			return sim.Member{}, err
		}
		integ, err := reg.GetIntegrator(mc.Base.Integrator)
		if err != nil {
			return sim.Member{}, err
		}
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(i)))
		x := m.InitialVector()
		nq, nu, _ := m.System.Split()
		for k := range nq + nu {
			x[k] += (2*rng.Float64() - 1) * mc.Perturbation
		}
		m.System.Project(x, nil)
		starts[i] = x.Clone()
		return sim.Member{System: m.System, Integrator: integ, Controller: m.Controller, X0: x}, nil
	}, mc.Trials)
	ens.SetLimit(workers(mc.Workers))
	ens.SetLogger(slog.New(slog.DiscardHandler))

	cfg := mc.Base.RunConfig()
	cfg.Seed = mc.Seed
	// a diverging trial is a result, not a failure
	cfg.ValidateState = false
	runs, err := ens.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, mc.Trials)
	for i, res := range runs {
		final := res.Final()
		stable := final != nil
		for _, v := range final {
			if !(math.Abs(v) <= bound) {
				stable = false
				break
			}
		}
		results[i] = MonteCarloResult{Trial: i, Start: starts[i], Final: final, Stable: stable}
	}
	return results, nil
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
