package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/rigidtree/internal/automation"
	"github.com/san-kum/rigidtree/internal/experiment"
	"github.com/san-kum/rigidtree/internal/optim"
	"github.com/san-kum/rigidtree/internal/storage"
)

var (
	sweepParam  string
	sweepFrom   float64
	sweepTo     float64
	sweepSteps  int
	workerCount int
	trials      int
	mcEps       float64
	tuneGrid    []string
	tuneMetric  string
)

func batchCommands() []*cobra.Command {
	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "run a model across a range of one parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	modelFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "g", "parameter name (dt, g, <body>.q0, servo0.kp, ...)")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 20, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")
	sweepCmd.Flags().IntVar(&workerCount, "workers", 0, "concurrent runs (0: one per cpu)")

	mcCmd := &cobra.Command{
		Use:   "montecarlo [preset]",
		Short: "run trials from randomly perturbed initial states",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonteCarlo,
	}
	modelFlags(mcCmd)
	mcCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	mcCmd.Flags().Float64Var(&mcEps, "eps", 0.05, "largest change to each q and u")
	mcCmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	mcCmd.Flags().IntVar(&workerCount, "workers", 0, "concurrent runs (0: one per cpu)")

	tuneCmd := &cobra.Command{
		Use:   "tune [preset]",
		Short: "grid-search parameters for the smallest metric value",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTune,
	}
	modelFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&tuneGrid, "grid", nil, "name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "energy_drift", "metric to minimize")

	return []*cobra.Command{scenarioCmd, sweepCmd, mcCmd, tuneCmd}
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	results, err := automation.RunScenario(ctx, sc, experiment.NewRegistry(), st, slog.Default())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tMODEL\tSTEPS\tDRIFT\tRUN")
	for i, r := range results {
		id := r.RunID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2e\t%s\n", i+1, r.Model, r.Summary.Steps, r.Summary.EnergyDrift, id)
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sw := &automation.ParameterSweep{
		Base: cfg, Param: sweepParam,
		Min: sweepFrom, Max: sweepTo, Steps: sweepSteps,
		Workers: workerCount,
	}
	results, err := automation.RunSweep(ctx, sw, experiment.NewRegistry())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSTEPS\tMIN E\tMAX E\tDRIFT\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%g\terror: %v\n", r.Value, r.Err)
			continue
		}
		fmt.Fprintf(w, "%g\t%d\t%.6g\t%.6g\t%.2e\n", r.Value, r.Steps, r.MinEnergy, r.MaxEnergy, r.EnergyDrift)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	results, err := automation.RunMonteCarlo(ctx, &automation.MonteCarlo{
		Base:         cfg,
		Perturbation: mcEps,
		Trials:       trials,
		Seed:         seed,
		Workers:      workerCount,
	}, experiment.NewRegistry())
	if err != nil {
		return err
	}
	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("%s: %d trials, eps=%g, seed=%d\n", cfg.Name, len(results), mcEps, seed)
	fmt.Printf("stable: %d, unstable: %d\n", stable, unstable)
	return nil
}

// parseGrid reads "name=v1,v2,..." entries in flag order.
func parseGrid(entries []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(entries))
	ranges := make([][]float64, 0, len(entries))
	for _, e := range entries {
		name, list, ok := strings.Cut(e, "=")
		if !ok || name == "" || list == "" {
			return nil, nil, fmt.Errorf("bad --grid %q, want name=v1,v2", e)
		}
		var vals []float64
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("bad --grid %q: %w", e, err)
			}
			vals = append(vals, v)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(tuneGrid)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no --grid given")
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	g := optim.NewGridSearch(names, ranges)
	fmt.Printf("searching %d points of %s for the smallest %s\n", g.Points(), cfg.Name, tuneMetric)
	best, score, err := g.Search(ctx, cfg, experiment.NewRegistry(), optim.MetricObjective(tuneMetric))
	if err != nil {
		return err
	}
	for _, k := range sortedKeys(best) {
		fmt.Printf("  %s = %g\n", k, best[k])
	}
	fmt.Printf("%s: %.6g\n", tuneMetric, score)
	return nil
}
