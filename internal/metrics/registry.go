package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Propagation results
const (
	ResultOK          = "ok"
	ResultInvalidKind = "invalid_kind"
	ResultStoreError  = "store_error"
)

// Registry holds all Prometheus metrics for MesoHOPS
type Registry struct {
	reg *prometheus.Registry

	Propagations    *prometheus.CounterVec
	Initializations prometheus.Counter
	RunDuration     prometheus.Histogram
	WaveFunctionDim prometheus.Gauge
	MonitorRequests *prometheus.CounterVec
}

// NewRegistry creates a registry with all MesoHOPS metrics registered
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Propagations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mesohops_propagations_total",
				Help: "Propagate calls by result",
			},
			[]string{"result"},
		),

		Initializations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mesohops_initializations_total",
				Help: "Trajectory initializations",
			},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mesohops_run_duration_seconds",
				Help:    "Duration of a full run including persistence",
				Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),

		WaveFunctionDim: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mesohops_last_wavefunction_dim",
				Help: "Dimension of the most recent initial wave function",
			},
		),

		MonitorRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mesohops_monitor_requests_total",
				Help: "Monitor HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	r.reg.MustRegister(
		r.Propagations,
		r.Initializations,
		r.RunDuration,
		r.WaveFunctionDim,
		r.MonitorRequests,
	)

	return r
}

// Handler exposes the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Snapshot flattens the current counter, gauge and histogram-count values.
// Labeled series are keyed as name{label="value"}.
func (r *Registry) Snapshot() (map[string]float64, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := seriesKey(mf.GetName(), m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[key+"_count"] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

func seriesKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	key := name + "{"
	for i, lp := range labels {
		if i > 0 {
			key += ","
		}
		key += lp.GetName() + `="` + lp.GetValue() + `"`
	}
	return key + "}"
}
