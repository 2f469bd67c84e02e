package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/san-kum/rigidtree/internal/analysis"
	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/experiment"
	"github.com/san-kum/rigidtree/internal/matter"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/stage"
	"github.com/san-kum/rigidtree/internal/state"
	"github.com/san-kum/rigidtree/internal/system"
)

var (
	benchIterations int
	perturbation    float64
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBODIES\tJOINTS\tINTEG")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		joints := make([]string, len(cfg.Bodies))
		for i, b := range cfg.Bodies {
			joints[i] = b.Joint
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", name, len(cfg.Bodies), strings.Join(joints, ","), cfg.Integrator)
	}
	return w.Flush()
}

func slot(off, n int) string {
	switch n {
	case 0:
		return "-"
	case 1:
		return strconv.Itoa(off)
	}
	return fmt.Sprintf("%d..%d", off, off+n-1)
}

func inspectModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	m, err := cfg.Build()
	if err != nil {
		return err
	}
	tree := m.Tree

	rows := make([][]string, 0, tree.NumBodies()-1)
	for i := 1; i < tree.NumBodies(); i++ {
		info, err := tree.Info(matter.BodyIndex(i))
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			info.Name,
			info.ParentName,
			strconv.Itoa(info.Level),
			info.Mobilizer.String(),
			slot(info.QOff, info.NQ),
			slot(info.UOff, info.NU),
			strconv.FormatFloat(info.Mass.Mass, 'g', 4, 64),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("#", "BODY", "PARENT", "LEVEL", "MOBILIZER", "Q", "U", "MASS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})

	nq, nu, nz := m.System.Split()
	fmt.Printf("%s: %d bodies, nq=%d nu=%d nz=%d, %d quaternions, total mass %g\n",
		cfg.Name, tree.NumBodies()-1, nq, nu, nz, tree.NumQuaternions(), tree.TotalMass())
	fmt.Println(t.Render())

	if err := m.System.Realize(m.Initial, stage.Velocity); err != nil {
		return err
	}
	c := tree.SystemMassCenter(m.Initial)
	fmt.Printf("initial energy: KE %.6g, total %.6g; mass center (%.4g, %.4g, %.4g)\n",
		tree.KineticEnergy(m.Initial), m.System.EnergyOf(m.Initial), c[0], c[1], c[2])
	return nil
}

// explicitUDot solves M udot = -(C - applied), the mass matrix built column
// by column from M·v.
func explicitUDot(sys *system.System, s *state.State, x dynamo.State) ([]float64, error) {
	if err := sys.Unpack(x, 0, s); err != nil {
		return nil, err
	}
	if err := sys.Realize(s, stage.Dynamics); err != nil {
		return nil, err
	}
	tree := sys.Tree()
	f := sys.AppliedForces(s)
	tau := make([]float64, tree.NU())
	if err := tree.CalcInverseDynamics(s, make([]float64, tree.NU()), f.Mobility, f.Body, tau); err != nil {
		return nil, err
	}
	for i := range tau {
		tau[i] = -tau[i]
	}
	M, err := tree.CalcM(s)
	if err != nil {
		return nil, err
	}
	return spatial.SolveDense(M, tau)
}

func benchModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	m, err := cfg.Build()
	if err != nil {
		return err
	}
	sys := m.System
	nq, nu, _ := sys.Split()
	x := m.InitialVector()
	// nonzero speeds exercise the velocity-dependent terms
	for i := nq; i < nq+nu; i++ {
		x[i] += 0.3
	}
	c := make(dynamo.Control, nu)
	n := max(benchIterations, 1)

	start := time.Now()
	var abi []float64
	for i := range n {
		abi = sys.Derive(x, c, float64(i))[nq : nq+nu]
	}
	abiTime := time.Since(start)
	if err := sys.LastError(); err != nil {
		return err
	}

	s := sys.NewState()
	start = time.Now()
	var explicit []float64
	for range n {
		if explicit, err = explicitUDot(sys, s, x); err != nil {
			return err
		}
	}
	explicitTime := time.Since(start)

	diff := 0.0
	for i := range abi {
		diff = math.Max(diff, math.Abs(abi[i]-explicit[i]))
	}

	fmt.Printf("benchmarking %s: %d bodies, nu=%d, %d evaluations each\n\n", cfg.Name, m.Tree.NumBodies()-1, nu, n)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tTOTAL\tPER CALL\tCALLS/SEC")
	for _, r := range []struct {
		name string
		d    time.Duration
	}{{"articulated body", abiTime}, {"mass matrix solve", explicitTime}} {
		fmt.Fprintf(w, "%s\t%v\t%v\t%.0f\n", r.name, r.d.Round(time.Microsecond),
			(r.d / time.Duration(n)).Round(time.Nanosecond), float64(n)/r.d.Seconds())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nmax |udot difference|: %.3e\n", diff)
	return nil
}

func sensitivity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	divs, err := analysis.Sensitivity(ctx, cfg, experiment.NewRegistry(), perturbation)
	if err != nil {
		return err
	}
	m, err := cfg.Build()
	if err != nil {
		return err
	}
	cols := m.Columns()

	fmt.Printf("finite-time divergence over %gs, eps=%g\n\n", cfg.Duration, perturbation)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COORDINATE\tRATE (1/s)")
	for _, d := range divs {
		fmt.Fprintf(w, "%s\t%.4f\n", cols[d.Coordinate], d.Rate)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if l := analysis.Largest(divs); l.Rate > 0 {
		fmt.Printf("\nlargest: %.4f via %s (sensitive)\n", l.Rate, cols[l.Coordinate])
	}
	return nil
}
