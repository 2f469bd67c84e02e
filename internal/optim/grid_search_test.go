package optim

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/experiment"
)

func pendulum() *config.Config {
	cfg := config.GetPreset("pendulum")
	cfg.Duration = 1
	return cfg
}

func TestGridSearchFindsSmallestDrift(t *testing.T) {
	g := NewGridSearch([]string{"dt", "bob.q0"}, [][]float64{{0.05, 0.01}, {0.3, 0.6}})
	g.SetLogger(slog.New(slog.DiscardHandler))
	if g.Points() != 4 {
		t.Fatalf("points = %d", g.Points())
	}
	best, score, err := g.Search(context.Background(), pendulum(), experiment.NewRegistry(), MetricObjective("energy_drift"))
	if err != nil {
		t.Fatal(err)
	}
	if best["dt"] != 0.01 {
		t.Errorf("best = %v (score %v), want dt 0.01", best, score)
	}
	if score < 0 || score > 1e-5 {
		t.Errorf("score = %v", score)
	}
}

func TestGridSearchErrors(t *testing.T) {
	reg := experiment.NewRegistry()
	ctx := context.Background()

	g := NewGridSearch([]string{"dt"}, [][]float64{{0.01}})
	if _, _, err := g.Search(ctx, pendulum(), reg, MetricObjective("no_such_metric")); !errors.Is(err, ErrNoRuns) {
		t.Errorf("unknown metric: %v", err)
	}

	g = NewGridSearch([]string{"bob.x"}, [][]float64{{1}})
	if _, _, err := g.Search(ctx, pendulum(), reg, MetricObjective("energy_drift")); !errors.Is(err, config.ErrUnknownParam) {
		t.Errorf("unknown param: %v", err)
	}

	g = NewGridSearch([]string{"dt", "g"}, [][]float64{{0.01}})
	if _, _, err := g.Search(ctx, pendulum(), reg, MetricObjective("energy_drift")); err == nil {
		t.Error("mismatched ranges accepted")
	}

	// a negative dt fails validation, so only the good point scores
	g = NewGridSearch([]string{"dt"}, [][]float64{{-1, 0.01}})
	g.SetLogger(slog.New(slog.DiscardHandler))
	best, _, err := g.Search(ctx, pendulum(), reg, MetricObjective("energy_drift"))
	if err != nil || best["dt"] != 0.01 {
		t.Errorf("best = %v, err %v", best, err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := g.Search(canceled, pendulum(), reg, MetricObjective("energy_drift")); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: %v", err)
	}
}
