package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/tui"
)

var (
	dataDir  string
	logLevel string

	configFile  string
	dt          float64
	duration    float64
	integrator  string
	euler       bool
	gravity     float64
	seed        int64
	metricsAddr string
	watch       bool
	frameRate   int
)

// main registers the commands and runs the interactive app when no
// subcommand is given.
func main() {
	rootCmd := &cobra.Command{
		Use:           "rigidtree",
		Short:         "multibody tree dynamics lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunInteractive(nil)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rigidtree", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a preset or --config model and store the trajectory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	modelFlags(runCmd)
	runCmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	runCmd.Flags().BoolVar(&watch, "watch", false, "draw the system in the terminal while running")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate for --watch")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "step a model interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	modelFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run]",
		Short: "plot stored coordinates against time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&plotColumns, "columns", nil, "columns to plot (default: the first six)")

	exportCmd := &cobra.Command{
		Use:   "export [run]",
		Short: "export a stored run as json, csv or an svg phase curve",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json|csv|svg")
	exportCmd.Flags().StringVar(&xColumn, "x", "", "svg x column (default: first q)")
	exportCmd.Flags().StringVar(&yColumn, "y", "", "svg y column (default: first u)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run]",
		Short: "power spectrum of a stored column",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&xColumn, "column", "", "column to analyze (default: first q)")

	phaseCmd := &cobra.Command{
		Use:   "phase [run]",
		Short: "phase portrait or poincaré section of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().StringVar(&xColumn, "x", "", "x column (default: first q)")
	phaseCmd.Flags().StringVar(&yColumn, "y", "", "y column (default: first u)")
	phaseCmd.Flags().StringVar(&sectionColumn, "section", "", "only keep upward crossings of this column through --level")
	phaseCmd.Flags().Float64Var(&sectionLevel, "level", 0, "section level")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in models",
		RunE:  listPresets,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect [preset]",
		Short: "show a model's tree topology and state layout",
		Args:  cobra.MaximumNArgs(1),
		RunE:  inspectModel,
	}
	inspectCmd.Flags().StringVar(&configFile, "config", "", "model file (yaml)")
	inspectCmd.Flags().BoolVar(&euler, "euler", false, "use Euler angles instead of quaternions")

	benchCmd := &cobra.Command{
		Use:   "bench [preset]",
		Short: "time articulated-body forward dynamics against an explicit mass-matrix solve",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchModel,
	}
	benchCmd.Flags().StringVar(&configFile, "config", "", "model file (yaml)")
	benchCmd.Flags().IntVar(&benchIterations, "n", 2000, "evaluations per method")

	sensitivityCmd := &cobra.Command{
		Use:   "sensitivity [preset]",
		Short: "finite-time divergence of perturbed initial coordinates",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sensitivity,
	}
	modelFlags(sensitivityCmd)
	sensitivityCmd.Flags().Float64Var(&perturbation, "eps", 1e-8, "perturbation size")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, analyzeCmd, phaseCmd,
		presetsCmd, inspectCmd, benchCmd, sensitivityCmd)
	rootCmd.AddCommand(batchCommands()...)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func modelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "model file (yaml)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "euler|rk4|rk45|verlet|leapfrog")
	cmd.Flags().BoolVar(&euler, "euler", false, "use Euler angles instead of quaternions")
	cmd.Flags().Float64Var(&gravity, "g", config.DefaultGravity, "gravity magnitude")
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return fmt.Errorf("bad --log-level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

// loadConfig resolves the model: a --config file, else the named preset,
// else the pendulum. Flags the user set override what was loaded.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	case len(args) > 0:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %s)", args[0], strings.Join(config.ListPresets(), ", "))
		}
	default:
		cfg = config.GetPreset("pendulum")
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("euler") {
		cfg.EulerAngles = euler
	}
	if flags.Changed("g") {
		cfg.Gravity.G = gravity
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Seed = seed
	}
	return cfg, nil
}
