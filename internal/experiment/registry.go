package experiment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/integrators"
	"github.com/san-kum/rigidtree/internal/metrics"
	"github.com/san-kum/rigidtree/internal/system"
)

var (
	ErrUnknownIntegrator = errors.New("experiment: unknown integrator")
	ErrUnknownModel      = errors.New("experiment: unknown model")
)

// DefaultMetrics are attached to every run.
var DefaultMetrics = []string{"energy_drift", "quaternion_drift", "control_effort", "stability"}

type Registry struct {
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }
	r.integrators["verlet"] = func() dynamo.Integrator { return integrators.NewVerlet() }
	r.integrators["leapfrog"] = func() dynamo.Integrator { return integrators.NewLeapfrog() }

	return r
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIntegrator, name)
	}
	return fn(), nil
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetModel builds the named preset.
func (r *Registry) GetModel(name string, opts ...system.Option) (*config.Model, error) {
	cfg := config.GetPreset(name)
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return cfg.Build(opts...)
}

func (r *Registry) ListModels() []string { return config.ListPresets() }

func (r *Registry) Metrics(m *config.Model, names ...string) ([]dynamo.Metric, error) {
	if len(names) == 0 {
		names = DefaultMetrics
	}
	return metrics.Build(m.System, names...)
}
