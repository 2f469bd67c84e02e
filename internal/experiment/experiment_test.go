package experiment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/stage"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.ListIntegrators() {
		if _, err := r.GetIntegrator(name); err != nil {
			t.Errorf("GetIntegrator(%q): %v", name, err)
		}
	}
	if got := strings.Join(r.ListIntegrators(), ","); got != "euler,leapfrog,rk4,rk45,verlet" {
		t.Errorf("integrators = %s", got)
	}
	if _, err := r.GetIntegrator("midpoint"); !errors.Is(err, ErrUnknownIntegrator) {
		t.Errorf("expected ErrUnknownIntegrator, got %v", err)
	}
	if _, err := r.GetModel("cartpole"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
	m, err := r.GetModel("pendulum")
	if err != nil {
		t.Fatal(err)
	}
	ms, err := r.Metrics(m)
	if err != nil || len(ms) != len(DefaultMetrics) {
		t.Errorf("metrics = %v, %v", ms, err)
	}
	if len(r.ListModels()) != len(config.Presets) {
		t.Error("models do not mirror the presets")
	}
}

func TestRunPendulum(t *testing.T) {
	cfg := config.GetPreset("pendulum")
	cfg.Duration = 2
	var buf bytes.Buffer
	exp, err := New(cfg, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	if err != nil {
		t.Fatal(err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sum := exp.Summarize(res)
	if sum.Steps != 400 {
		t.Errorf("steps = %d, want 400", sum.Steps)
	}
	if sum.EnergyDrift > 1e-6 || sum.Metrics["energy_drift"] > 1e-6 {
		t.Errorf("energy drift %g / %g", sum.EnergyDrift, sum.Metrics["energy_drift"])
	}
	if sum.Counters.Realizations[stage.Acceleration] == 0 || sum.Evaluations["gravity"] == 0 {
		t.Errorf("no work recorded: %+v %v", sum.Counters, sum.Evaluations)
	}
	if sum.Metrics["stability"] != 1 || len(sum.Errors) != 0 {
		t.Errorf("unstable run: %+v", sum)
	}
	if !strings.Contains(buf.String(), "model=pendulum") {
		t.Errorf("missing run log: %s", buf.String())
	}
}

func TestRunGyroscopeAdaptive(t *testing.T) {
	cfg := config.GetPreset("gyroscope")
	cfg.Integrator = "rk45"
	cfg.Duration = 0.5
	cfg.Tolerance = 1e-8
	exp, err := New(cfg, WithMetrics("quaternion_drift", "energy_drift"))
	if err != nil {
		t.Fatal(err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sum := exp.Summarize(res)
	if sum.Projections == 0 {
		t.Error("quaternion was never projected")
	}
	if sum.QuaternionDrift > 1e-10 {
		t.Errorf("quaternion drift %g", sum.QuaternionDrift)
	}
	if sum.Metrics["energy_drift"] > 1e-5 {
		t.Errorf("energy drift %g", sum.Metrics["energy_drift"])
	}
}

func TestRunServo(t *testing.T) {
	cfg := config.GetPreset("servo_arm")
	cfg.Duration = 5
	exp, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if q := res.Final()[0]; q < 0.5 || q > 1.6 {
		t.Errorf("shoulder ended at %v, target 1.2", q)
	}
	if res.Metrics["control_effort"] <= 0 {
		t.Error("servo did no work")
	}
}

func TestRunCancelled(t *testing.T) {
	exp, err := New(config.GetPreset("chain"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := exp.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewRejects(t *testing.T) {
	cfg := config.GetPreset("pendulum")
	if _, err := New(cfg, WithMetrics("bogus")); err == nil {
		t.Error("expected unknown metric error")
	}
	cfg.Bodies[0].Mass = -1
	if _, err := New(cfg); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected config.ErrInvalid, got %v", err)
	}
}
