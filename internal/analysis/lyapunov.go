package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/experiment"
	"github.com/san-kum/rigidtree/internal/sim"
)

// Divergence is the finite-time growth rate of a perturbation of one
// generalized coordinate: ln(|δx(T)| / |δx(0)|) / T.
type Divergence struct {
	Coordinate int
	Rate       float64
}

// Sensitivity perturbs each q of cfg's initial state by eps and runs the
// reference and every perturbed copy concurrently, each on its own
// system. Quaternion perturbations are projected back onto the unit
// sphere, and the separation is measured from the projected start.
func Sensitivity(ctx context.Context, cfg *config.Config, reg *experiment.Registry, eps float64) ([]Divergence, error) {
	if !(eps > 0) {
		return nil, fmt.Errorf("analysis: perturbation must be positive, got %g", eps)
	}
	ref, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	nq, _, _ := ref.System.Split()
	starts := make([]dynamo.State, nq+1)
	starts[0] = ref.InitialVector()
	for i := range nq {
		x := starts[0].Clone()
		x[i] += eps
		ref.System.Project(x, nil)
		starts[i+1] = x
	}

	ens := sim.NewEnsemble(func(i int, _ int64) (sim.Member, error) {
		m, err := cfg.Build()
		if err != nil {
			return sim.Member{}, err
		}
		integ, err := reg.GetIntegrator(cfg.Integrator)
		if err != nil {
			return sim.Member{}, err
		}
		return sim.Member{
			System:     m.System,
			Integrator: integ,
			Controller: m.Controller,
			X0:         starts[i].Clone(),
		}, nil
	}, nq+1)

	results, err := ens.Run(ctx, cfg.RunConfig())
	if err != nil {
		return nil, err
	}
	end := results[0].Final()
	T := results[0].Times[len(results[0].Times)-1]

	divs := make([]Divergence, 0, nq)
	for i := 1; i <= nq; i++ {
		d0 := starts[i].Sub(starts[0]).Norm()
		dT := results[i].Final().Sub(end).Norm()
		rate := math.Inf(-1)
		if d0 > 0 && dT > 0 && T > 0 {
			rate = math.Log(dT/d0) / T
		}
		divs = append(divs, Divergence{Coordinate: i - 1, Rate: rate})
	}
	return divs, nil
}

// Largest returns the fastest-growing divergence, or a zero value for an
// empty slice.
func Largest(divs []Divergence) Divergence {
	var best Divergence
	for i, d := range divs {
		if i == 0 || d.Rate > best.Rate {
			best = d
		}
	}
	return best
}
