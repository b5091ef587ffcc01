package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	saveDuration prom.Histogram
	saveOutcomes *prom.CounterVec
	mirrorWrites *prom.CounterVec
	loadSources  *prom.CounterVec
	sheetCount   prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.saveDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "kruplan",
			Name:      "save_duration_seconds",
			Help:      "Duration of full remote save operations",
			Buckets:   prom.DefBuckets,
		})
		pr.saveOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "kruplan",
			Name:      "save_outcomes_total",
			Help:      "Remote save outcomes by result",
		}, []string{"result"})
		pr.mirrorWrites = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "kruplan",
			Name:      "mirror_writes_total",
			Help:      "Local mirror write attempts by result",
		}, []string{"result"})
		pr.loadSources = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "kruplan",
			Name:      "load_sources_total",
			Help:      "Initial loads by data source",
		}, []string{"source"})
		pr.sheetCount = prom.NewGauge(prom.GaugeOpts{
			Namespace: "kruplan",
			Name:      "sheet_count",
			Help:      "Number of schedule sheets currently held in memory",
		})
		reg.MustRegister(pr.saveDuration, pr.saveOutcomes, pr.mirrorWrites, pr.loadSources, pr.sheetCount)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveSaveDuration(d time.Duration) {
	if p == nil || p.saveDuration == nil {
		return
	}
	p.saveDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSaveOutcome(success bool) {
	if p == nil || p.saveOutcomes == nil {
		return
	}
	p.saveOutcomes.WithLabelValues(resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncMirrorWrite(success bool) {
	if p == nil || p.mirrorWrites == nil {
		return
	}
	p.mirrorWrites.WithLabelValues(resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncLoadSource(source LoadSource) {
	if p == nil || p.loadSources == nil {
		return
	}
	p.loadSources.WithLabelValues(string(source)).Inc()
}

func (p *PrometheusRecorder) SetSheetCount(n int) {
	if p == nil || p.sheetCount == nil {
		return
	}
	p.sheetCount.Set(float64(n))
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
