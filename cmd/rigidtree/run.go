package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/experiment"
	"github.com/san-kum/rigidtree/internal/stage"
	"github.com/san-kum/rigidtree/internal/storage"
	"github.com/san-kum/rigidtree/internal/telemetry"
	"github.com/san-kum/rigidtree/internal/tui"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	model := exp.Model()

	if metricsAddr != "" {
		collector := telemetry.NewCollector("rigidtree", model.System)
		exp.GetSimulator().AddObserver(collector)
		stop, err := serveMetrics(metricsAddr, collector)
		if err != nil {
			return err
		}
		defer stop()
	}
	if watch {
		r := tui.NewLiveRenderer(cfg.Name, tui.NewScene(model.System), os.Stdout, frameRate)
		exp.GetSimulator().AddObserver(r)
		r.Start()
		defer r.Stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	result, runErr := exp.Run(ctx)
	if runErr != nil && (result == nil || !errors.Is(runErr, context.Canceled)) {
		return runErr
	}
	elapsed := time.Since(start)

	nq, nu, nz := model.System.Split()
	runID, err := st.Save(storage.RunInfo{
		Model:       cfg.Name,
		Integrator:  cfg.Integrator,
		Controller:  controllerName(cfg),
		Dt:          cfg.Dt,
		Duration:    cfg.Duration,
		Seed:        cfg.Seed,
		NQ:          nq,
		NU:          nu,
		NZ:          nz,
		Columns:     model.Columns(),
		Evaluations: model.System.Evaluations(),
	}, result)
	if err != nil {
		return err
	}

	sum := exp.Summarize(result)
	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d", sum.Steps)
	if sum.Rejected > 0 {
		fmt.Printf(" (%d rejected)", sum.Rejected)
	}
	fmt.Printf(", projections: %d\n", sum.Projections)
	fmt.Printf("energy drift: %.3e\n", sum.EnergyDrift)
	if model.Tree.NumQuaternions() > 0 {
		fmt.Printf("max quaternion error: %.3e\n", sum.QuaternionDrift)
	}

	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(sum.Metrics) {
		fmt.Printf("  %-18s %.6g\n", name, sum.Metrics[name])
	}
	fmt.Println("\nrealizations:")
	for k := stage.Topology; k <= stage.Report; k++ {
		if n := sum.Counters.Realizations[k]; n > 0 {
			fmt.Printf("  %-18s %d\n", k, n)
		}
	}
	fmt.Printf("  %-18s %d\n", "derivatives", sum.Counters.Derivatives)
	if len(sum.Evaluations) > 0 {
		fmt.Println("\ncache evaluations:")
		for _, name := range sortedKeys(sum.Evaluations) {
			fmt.Printf("  %-18s %d\n", name, sum.Evaluations[name])
		}
	}
	for _, e := range sum.Errors {
		fmt.Printf("warning: %v\n", e)
	}
	return runErr
}

func controllerName(cfg *config.Config) string {
	if len(cfg.Servos) > 0 {
		return "servo"
	}
	return "none"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// serveMetrics exposes the collector until the returned stop is called.
func serveMetrics(addr string, c *telemetry.Collector) (func(), error) {
	h, err := telemetry.Handler(c)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server", "addr", addr, "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	return tui.RunInteractive(cfg)
}
