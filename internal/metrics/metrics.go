// Package metrics holds dynamo.Metric implementations for multibody runs.
package metrics

import (
	"fmt"
	"sort"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

// Subject is the system interface the built-in metrics need.
type Subject interface {
	dynamo.Hamiltonian
	QuaternionSource
}

var builders = map[string]func(Subject) dynamo.Metric{
	"energy":           func(s Subject) dynamo.Metric { return NewEnergy(s) },
	"energy_drift":     func(s Subject) dynamo.Metric { return NewEnergyDrift(s) },
	"quaternion_drift": func(s Subject) dynamo.Metric { return NewQuaternionDrift(s) },
	"control_effort":   func(Subject) dynamo.Metric { return NewControlEffort() },
	"stability":        stability,
}

func stability(s Subject) dynamo.Metric {
	if sp, ok := s.(Splitter); ok {
		return NewSpeedStability(1e6, sp)
	}
	return NewStability(1e6)
}

// Names lists the built-in metrics in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build creates the named metrics for s.
func Build(s Subject, names ...string) ([]dynamo.Metric, error) {
	out := make([]dynamo.Metric, 0, len(names))
	for _, n := range names {
		b, ok := builders[n]
		if !ok {
			return nil, fmt.Errorf("metrics: unknown metric %q", n)
		}
		out = append(out, b(s))
	}
	return out, nil
}
