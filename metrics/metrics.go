package metrics

import (
	"time"

	"github.com/angas/solarcast/forecast"
	"github.com/angas/solarcast/source"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "solarcast"

// Recorder collects pipeline metrics on its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	fetches       *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	reports       *prometheus.CounterVec
	netProfit     prometheus.Gauge
	lastRun       prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connector_fetches_total",
				Help:      "Connector results by where the data came from",
			},
			[]string{"connector", "origin"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_fallbacks_total",
				Help:      "Preferred algorithms that could not be fitted",
			},
			[]string{"model", "algorithm"},
		),
		reports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reporter_failures_total",
				Help:      "Failed post-decision reporters",
			},
			[]string{"reporter"},
		),
		netProfit: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_net_profit_brl",
			Help:      "Total forecast net profit of the last successful run",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordFetch has the shape of a source.Observer.
func (r *Recorder) RecordFetch(connector string, origin source.Origin) {
	r.fetches.WithLabelValues(connector, string(origin)).Inc()
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordFallback has the shape of a forecast.FallbackObserver.
func (r *Recorder) RecordFallback(kind forecast.Kind, from forecast.Algorithm, _ error) {
	r.fallbacks.WithLabelValues(kind.String(), from.String()).Inc()
}

func (r *Recorder) RecordReporterFailure(reporter string) {
	r.reports.WithLabelValues(reporter).Inc()
}

func (r *Recorder) RecordFailure() {
	r.runs.WithLabelValues("failed").Inc()
}

func (r *Recorder) RecordSuccess(at time.Time, netProfit float64) {
	r.runs.WithLabelValues("succeeded").Inc()
	r.netProfit.Set(netProfit)
	r.lastRun.Set(float64(at.Unix()))
}
