package sim

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

// Member is one independently built ensemble run: its own system, which
// owns its own state, and its starting vector.
type Member struct {
	System     dynamo.System
	Integrator dynamo.Integrator
	Controller dynamo.Controller
	Metrics    []dynamo.Metric
	X0         dynamo.State
}

// Factory builds member i. It is called from the member's goroutine.
type Factory func(i int, seed int64) (Member, error)

// Ensemble runs independent members concurrently. Systems are never
// shared between goroutines.
type Ensemble struct {
	build   Factory
	numRuns int
	limit   int
	log     *slog.Logger
}

func NewEnsemble(build Factory, numRuns int) *Ensemble {
	return &Ensemble{build: build, numRuns: numRuns, limit: -1, log: slog.Default()}
}

// SetLimit caps the number of members running at once; n <= 0 removes it.
func (e *Ensemble) SetLimit(n int) {
	if n <= 0 {
		n = -1
	}
	e.limit = n
}

func (e *Ensemble) SetLogger(l *slog.Logger) { e.log = l }

// Run returns one result per member, in member order. The first member
// error cancels the rest.
func (e *Ensemble) Run(ctx context.Context, cfg dynamo.Config) ([]*dynamo.Result, error) {
	results := make([]*dynamo.Result, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			cfgCopy := cfg
			cfgCopy.Seed = cfg.Seed + int64(i)

			m, err := e.build(i, cfgCopy.Seed)
			if err != nil {
				return fmt.Errorf("ensemble member %d: %w", i, err)
			}
			s := New(m.System, m.Integrator, m.Controller, WithLogger(e.log.With("member", i)))
			for _, metric := range m.Metrics {
				s.AddMetric(metric)
			}
			res, err := s.Run(ctx, m.X0, cfgCopy)
			if err != nil {
				return fmt.Errorf("ensemble member %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
