package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/rigidtree/internal/analysis"
	"github.com/san-kum/rigidtree/internal/storage"
)

var (
	plotColumns   []string
	exportFormat  string
	xColumn       string
	yColumn       string
	sectionColumn string
	sectionLevel  float64
)

// openRun resolves a run id prefix against the data directory.
func openRun(prefix string) (*storage.Store, *storage.RunMetadata, error) {
	st := storage.New(dataDir)
	id, err := st.Resolve(prefix)
	if err != nil {
		return nil, nil, err
	}
	meta, err := st.Load(id)
	if err != nil {
		return nil, nil, err
	}
	return st, meta, nil
}

// defaultColumn picks the named column, or the first entry of the q (u for
// speeds) block.
func defaultColumn(meta *storage.RunMetadata, name string, speeds bool) (string, error) {
	if name != "" {
		return name, nil
	}
	idx := 0
	if speeds {
		idx = meta.NQ
	}
	if idx >= len(meta.Columns) || (speeds && meta.NU == 0) || (!speeds && meta.NQ == 0) {
		return "", fmt.Errorf("run %s has no default column; name one", meta.ID)
	}
	return meta.Columns[idx], nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tDT\tINTEG\tCTRL\tSTEPS\tDRIFT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%s\t%d\t%.2e\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Controller,
			run.Steps,
			run.EnergyDrift,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}

	cols := plotColumns
	if len(cols) == 0 {
		cols = meta.Columns[:min(6, len(meta.Columns))]
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n\n", meta.Model)

	for _, name := range cols {
		data, _, err := st.Column(meta.ID, name)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("no data to plot")
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		return st.Export(meta.ID, os.Stdout)
	case "csv":
		return exportCSV(st, meta)
	case "svg":
		p, err := portrait(st, meta)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(os.Stdout, analysis.SVG(p.Points, 800, 600, "#5fd7ff"))
		return err
	}
	return fmt.Errorf("unknown export format %q", exportFormat)
}

func exportCSV(st *storage.Store, meta *storage.RunMetadata) error {
	states, times, err := st.LoadStates(meta.ID)
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := append([]string{"time"}, meta.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range states {
		row := []string{strconv.FormatFloat(times[i], 'f', 6, 64)}
		for _, val := range states[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}
	name, err := defaultColumn(meta, xColumn, false)
	if err != nil {
		return err
	}
	data, times, err := st.Column(meta.ID, name)
	if err != nil {
		return err
	}
	if len(data) < 4 {
		return fmt.Errorf("run %s has too few samples", meta.ID)
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("model: %s, column: %s\n\n", meta.Model, name)

	ps := analysis.PowerSpectrum(data)
	graph := asciigraph.Plot(ps[:max(len(ps)/4, 2)],
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum ("+name+")"),
	)
	fmt.Println(graph)
	fmt.Println()

	peak := analysis.DominantFrequency(data, analysis.SampleInterval(times))
	fmt.Printf("dominant frequency: %.3f hz\n", peak.Frequency)
	if peak.Frequency > 0 {
		fmt.Printf("period: %.3f s\n", 1/peak.Frequency)
	}
	return nil
}

func portrait(st *storage.Store, meta *storage.RunMetadata) (*analysis.Portrait, error) {
	xName, err := defaultColumn(meta, xColumn, false)
	if err != nil {
		return nil, err
	}
	yName, err := defaultColumn(meta, yColumn, true)
	if err != nil {
		return nil, err
	}
	xs, _, err := st.Column(meta.ID, xName)
	if err != nil {
		return nil, err
	}
	ys, _, err := st.Column(meta.ID, yName)
	if err != nil {
		return nil, err
	}
	return analysis.NewPortrait(xName, xs, yName, ys)
}

func phasePlot(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}
	p, err := portrait(st, meta)
	if err != nil {
		return err
	}

	pts := p.Points
	title := "phase portrait"
	if sectionColumn != "" {
		trig, _, err := st.Column(meta.ID, sectionColumn)
		if err != nil {
			return err
		}
		xs, ys := make([]float64, len(pts)), make([]float64, len(pts))
		for i, pt := range pts {
			xs[i], ys[i] = pt.X, pt.Y
		}
		if pts, err = analysis.Section(trig, sectionLevel, xs, ys); err != nil {
			return err
		}
		title = fmt.Sprintf("poincaré section (%s = %g)", sectionColumn, sectionLevel)
		if len(pts) == 0 {
			fmt.Println("no crossings")
			return nil
		}
	}

	fmt.Printf("%s: %s\n", title, meta.ID)
	fmt.Printf("model: %s, x: %s, y: %s\n\n", meta.Model, p.XName, p.YName)
	fmt.Print(analysis.ASCII(pts, 70, 20))
	fmt.Printf("\nlegend: . = early, o = middle, ● = late\n")
	return nil
}
