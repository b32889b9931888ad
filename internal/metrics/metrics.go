// Package metrics records sync and generation counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives run observations. A nil *Prometheus is a valid no-op
// recorder.
type Recorder interface {
	ObserveRun(mode string, d time.Duration, failed bool)
	AddPages(generated, changed, deleted int)
	AddIngested(n int)
	AddPageErrors(n int)
	SetPending(n int)
}

// Prometheus implements Recorder.
type Prometheus struct {
	reg          *prom.Registry
	runDuration  *prom.HistogramVec
	runOutcomes  *prom.CounterVec
	pages        *prom.CounterVec
	ingested     prom.Counter
	pageErrors   prom.Counter
	pendingEdits prom.Gauge
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus builds the collectors and registers them on reg, or on a
// fresh registry when reg is nil.
func NewPrometheus(reg *prom.Registry) *Prometheus {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	p := &Prometheus{
		reg: reg,
		runDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "palimpsest",
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of sync runs by mode",
			Buckets:   prom.DefBuckets,
		}, []string{"mode"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "palimpsest",
			Name:      "sync_runs_total",
			Help:      "Sync runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		pages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "palimpsest",
			Name:      "wiki_pages_total",
			Help:      "Pages handled by the generator, by action",
		}, []string{"action"}),
		ingested: prom.NewCounter(prom.CounterOpts{
			Namespace: "palimpsest",
			Name:      "sync_pages_ingested_total",
			Help:      "Editable pages applied to the store",
		}),
		pageErrors: prom.NewCounter(prom.CounterOpts{
			Namespace: "palimpsest",
			Name:      "sync_page_errors_total",
			Help:      "Pages rejected by validation, parsing or ingest",
		}),
		pendingEdits: prom.NewGauge(prom.GaugeOpts{
			Namespace: "palimpsest",
			Name:      "pending_edit_files",
			Help:      "Files listed in the pending-edit marker",
		}),
	}
	reg.MustRegister(p.runDuration, p.runOutcomes, p.pages, p.ingested, p.pageErrors, p.pendingEdits)
	return p
}

// WithRuntimeCollectors adds the Go and process collectors.
func (p *Prometheus) WithRuntimeCollectors() *Prometheus {
	p.reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return p
}

// Registry returns the registry the collectors live on.
func (p *Prometheus) Registry() *prom.Registry { return p.reg }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *Prometheus) ObserveRun(mode string, d time.Duration, failed bool) {
	if p == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failed"
	}
	p.runDuration.WithLabelValues(mode).Observe(d.Seconds())
	p.runOutcomes.WithLabelValues(mode, outcome).Inc()
}

func (p *Prometheus) AddPages(generated, changed, deleted int) {
	if p == nil {
		return
	}
	p.pages.WithLabelValues("generated").Add(float64(generated))
	p.pages.WithLabelValues("written").Add(float64(changed))
	p.pages.WithLabelValues("deleted").Add(float64(deleted))
}

func (p *Prometheus) AddIngested(n int) {
	if p == nil {
		return
	}
	p.ingested.Add(float64(n))
}

func (p *Prometheus) AddPageErrors(n int) {
	if p == nil {
		return
	}
	p.pageErrors.Add(float64(n))
}

func (p *Prometheus) SetPending(n int) {
	if p == nil {
		return
	}
	p.pendingEdits.Set(float64(n))
}
