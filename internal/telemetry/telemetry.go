// Package telemetry exports a multibody system's realization and lazy
// evaluation counts to Prometheus. Counts are read-only diagnostics: they
// are snapshotted on the simulation goroutine and served from the copy.
package telemetry

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/stage"
	"github.com/san-kum/rigidtree/internal/system"
)

// Source is what a Collector reads; *system.System satisfies it.
type Source interface {
	Counters() system.Counters
	Evaluations() map[string]uint64
}

type snapshot struct {
	counters system.Counters
	evals    map[string]uint64
	simTime  float64
	steps    uint64
}

// Collector is a prometheus.Collector and a dynamo.Observer. Attach it to
// the simulator that owns the source; it refreshes every Every steps.
type Collector struct {
	src   Source
	Every int

	mu   sync.Mutex
	snap snapshot
	seen int

	realizations *prometheus.Desc
	derivatives  *prometheus.Desc
	failures     *prometheus.Desc
	evaluations  *prometheus.Desc
	simTime      *prometheus.Desc
	steps        *prometheus.Desc
}

func NewCollector(namespace string, src Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		src:          src,
		Every:        1,
		realizations: desc("realizations_total", "Stage realizations.", "stage"),
		derivatives:  desc("derivatives_total", "Derivative evaluations."),
		failures:     desc("derivative_failures_total", "Derivative evaluations that failed."),
		evaluations:  desc("cache_evaluations_total", "Lazy cache evaluations on the integration state.", "entry"),
		simTime:      desc("simulated_seconds", "Simulated time of the last observed step."),
		steps:        desc("observed_steps_total", "Simulator steps observed."),
	}
}

// Refresh snapshots the source now. Call it only from the goroutine that
// drives the source.
func (c *Collector) Refresh(t float64) {
	counters := c.src.Counters()
	evals := c.src.Evaluations()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.counters = counters
	c.snap.evals = evals
	c.snap.simTime = t
}

func (c *Collector) OnStep(_ dynamo.State, _ dynamo.Control, t float64) {
	c.mu.Lock()
	c.snap.steps++
	c.seen++
	due := c.Every <= 1 || c.seen%c.Every == 0
	c.mu.Unlock()
	if due {
		c.Refresh(t)
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.realizations
	ch <- c.derivatives
	ch <- c.failures
	ch <- c.evaluations
	ch <- c.simTime
	ch <- c.steps
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	snap := c.snap
	c.mu.Unlock()

	for st := stage.Topology; st <= stage.Report; st++ {
		ch <- prometheus.MustNewConstMetric(c.realizations, prometheus.CounterValue,
			float64(snap.counters.Realizations[st]), st.String())
	}
	ch <- prometheus.MustNewConstMetric(c.derivatives, prometheus.CounterValue, float64(snap.counters.Derivatives))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(snap.counters.Failures))

	names := make([]string, 0, len(snap.evals))
	for name := range snap.evals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ch <- prometheus.MustNewConstMetric(c.evaluations, prometheus.CounterValue, float64(snap.evals[name]), name)
	}
	ch <- prometheus.MustNewConstMetric(c.simTime, prometheus.GaugeValue, snap.simTime)
	ch <- prometheus.MustNewConstMetric(c.steps, prometheus.CounterValue, float64(snap.steps))
}

// Handler registers c on a fresh registry and serves it.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

var (
	_ prometheus.Collector = (*Collector)(nil)
	_ dynamo.Observer      = (*Collector)(nil)
)
