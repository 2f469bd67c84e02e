// Package optim searches model parameters for the run that minimizes a
// diagnostic.
package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/experiment"
)

var ErrNoRuns = errors.New("optim: no grid point produced a finite objective")

// Objective scores a finished run; lower is better.
type Objective func(experiment.Summary) float64

// MetricObjective scores by a named metric, or by energy drift for
// "energy_drift".
func MetricObjective(name string) Objective {
	return func(s experiment.Summary) float64 {
		if name == "energy_drift" {
			return s.EnergyDrift
		}
		v, ok := s.Metrics[name]
		if !ok {
			return math.Inf(1)
		}
		return v
	}
}

// GridSearch tries every combination of the given values, parameters named
// as for config.Config.SetParam.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	log        *slog.Logger
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, log: slog.Default()}
}

func (g *GridSearch) SetLogger(l *slog.Logger) { g.log = l }

// Points is the number of runs a search makes.
func (g *GridSearch) Points() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search runs base once per grid point and returns the best parameters
// and score. Points that fail to build or run are skipped.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, reg *experiment.Registry, score Objective) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("optim: %d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}
	for _, name := range g.paramNames {
		if err := base.Clone().SetParam(name, 0); err != nil {
			return nil, 0, err
		}
	}

	best := math.Inf(1)
	var bestParams map[string]float64
	err := g.searchRecursive(ctx, 0, map[string]float64{}, func(params map[string]float64) error {
		cfg := base.Clone()
		for k, v := range params {
			if err := cfg.SetParam(k, v); err != nil {
				return err
			}
		}
		exp, err := experiment.New(cfg, experiment.WithRegistry(reg), experiment.WithLogger(slog.New(slog.DiscardHandler)))
		if err != nil {
			g.log.Debug("grid point rejected", "params", params, "err", err)
			return nil
		}
		res, err := exp.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.log.Debug("grid point failed", "params", params, "err", err)
			return nil
		}
		val := score(exp.Summarize(res))
		g.log.Debug("grid point", "params", params, "score", val)
		if val < best {
			best = val
			bestParams = maps.Clone(params)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		return nil, 0, ErrNoRuns
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64) error) error {
	if depth == len(g.paramNames) {
		return visit(current)
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		if err := ctx.Err(); err != nil {
			return err
		}
		newParams := maps.Clone(current)
		newParams[paramName] = val
		if err := g.searchRecursive(ctx, depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}
