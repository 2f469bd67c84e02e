package automation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/experiment"
	"github.com/san-kum/rigidtree/internal/storage"
)

const scenarioYAML = `name: warmup
description: two short runs
steps:
  - preset: pendulum
    params:
      duration: 0.5
      bob.q0: 0.2
    save: true
  - preset: double_pendulum
    integrator: verlet
    params:
      duration: 0.2
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quiet() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeFile(t, "s.yaml", scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "warmup" || len(sc.Steps) != 2 {
		t.Fatalf("scenario = %+v", sc)
	}

	st := storage.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), st, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("%d results", len(results))
	}
	if results[0].RunID == "" || results[1].RunID != "" {
		t.Errorf("run ids %q %q: only the first step saves", results[0].RunID, results[1].RunID)
	}
	if results[0].Summary.Steps != 100 {
		t.Errorf("pendulum steps = %d, want 100", results[0].Summary.Steps)
	}
	q, _, err := st.Column(results[0].RunID, "bob.q0")
	if err != nil {
		t.Fatal(err)
	}
	if q[0] != 0.2 {
		t.Errorf("saved start q = %v, want 0.2", q[0])
	}
}

func TestScenarioErrors(t *testing.T) {
	if _, err := LoadScenario(writeFile(t, "e.yaml", "name: empty\n")); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty scenario: %v", err)
	}
	sc := &Scenario{Steps: []ScenarioStep{
		{Preset: "pendulum", Params: map[string]float64{"duration": 0.1}},
		{Preset: "pendulum", Params: map[string]float64{"bob.q3": 1}},
	}}
	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), nil, quiet())
	if !errors.Is(err, config.ErrUnknownParam) {
		t.Errorf("bad param: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("%d completed steps, want 1", len(results))
	}
	sc = &Scenario{Steps: []ScenarioStep{{Preset: "nope"}}}
	if _, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), nil, quiet()); !errors.Is(err, experiment.ErrUnknownModel) {
		t.Errorf("unknown preset: %v", err)
	}
}

func TestRunSweep(t *testing.T) {
	base := config.GetPreset("pendulum")
	base.Duration = 0.5
	sw := &ParameterSweep{Base: base, Param: "bob.q0", Min: 0.1, Max: 0.5, Steps: 3, Workers: 2}
	results, err := RunSweep(context.Background(), sw, experiment.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.1, 0.3, 0.5}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("point %d: %v", i, r.Err)
		}
		if math.Abs(r.Value-want[i]) > 1e-12 {
			t.Errorf("value %d = %v, want %v", i, r.Value, want[i])
		}
		if r.Steps != 100 || r.MaxEnergy < r.MinEnergy {
			t.Errorf("point %d: steps %d, energy [%v, %v]", i, r.Steps, r.MinEnergy, r.MaxEnergy)
		}
		// higher release means more energy
		if i > 0 && !(r.MaxEnergy > results[i-1].MaxEnergy) {
			t.Errorf("energy did not grow with amplitude: %v then %v", results[i-1].MaxEnergy, r.MaxEnergy)
		}
	}
	if base.Bodies[0].Q[0] != 0.5 {
		t.Error("sweep modified the base config")
	}

	sw.Param = "bob.z0"
	if _, err := RunSweep(context.Background(), sw, experiment.NewRegistry()); !errors.Is(err, config.ErrUnknownParam) {
		t.Errorf("bad param: %v", err)
	}
}

func TestRunMonteCarlo(t *testing.T) {
	base := config.GetPreset("gyroscope")
	base.Duration = 0.1
	mc := &MonteCarlo{Base: base, Perturbation: 0.05, Trials: 4, Seed: 7}
	reg := experiment.NewRegistry()

	a, err := RunMonteCarlo(context.Background(), mc, reg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := RunMonteCarlo(context.Background(), mc, reg)
	if err != nil {
		t.Fatal(err)
	}
	stable, unstable := MonteCarloStats(a)
	if stable != 4 || unstable != 0 {
		t.Errorf("stable %d unstable %d", stable, unstable)
	}
	for i := range a {
		if a[i].Trial != i {
			t.Errorf("trial %d out of order", i)
		}
		for k := range a[i].Start {
			if a[i].Start[k] != b[i].Start[k] {
				t.Fatalf("trial %d start differs between runs with one seed", i)
			}
		}
		if i > 0 && a[i].Start[4] == a[0].Start[4] {
			t.Errorf("trials 0 and %d start alike", i)
		}
		// ball quaternion stays unit after the move
		q := a[i].Start[:4]
		if n := q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]; n < 1-1e-12 || n > 1+1e-12 {
			t.Errorf("trial %d start quaternion norm² %v", i, n)
		}
	}

	if _, err := RunMonteCarlo(context.Background(), &MonteCarlo{Base: base}, reg); !errors.Is(err, ErrEmpty) {
		t.Errorf("zero trials: %v", err)
	}
}

func TestMonteCarloStats(t *testing.T) {
	s, u := MonteCarloStats([]MonteCarloResult{{Stable: true}, {Stable: false}, {Stable: true}})
	if s != 2 || u != 1 {
		t.Errorf("stats = %d, %d", s, u)
	}
}

func TestSweepValuesHitEndpoints(t *testing.T) {
	sw := &ParameterSweep{Min: 0.1, Max: 0.7, Steps: 7}
	vals := sw.Values()
	if len(vals) != 7 || vals[0] != 0.1 || vals[6] != 0.7 {
		t.Fatalf("values = %v", vals)
	}
	for i, v := range vals {
		if want := 0.1 + 0.1*float64(i); math.Abs(v-want) > 1e-12 {
			t.Errorf("value %d = %v, want %v", i, v, want)
		}
	}
	if got := (&ParameterSweep{Min: 2, Max: 3, Steps: 1}).Values(); len(got) != 1 || got[0] != 2 {
		t.Errorf("single step values = %v", got)
	}
}
