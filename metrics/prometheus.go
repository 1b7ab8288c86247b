package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KanavDutta/tokenfence/pkg/tokenfence"
)

// Prometheus exports the last finished window of every limiter as gauges.
// It implements tokenfence.Observer.
type Prometheus struct {
	registry *prometheus.Registry

	accepted    *prometheus.GaugeVec
	incoming    *prometheus.GaugeVec
	averageTime *prometheus.GaugeVec
	limit       *prometheus.GaugeVec
	rollovers   *prometheus.CounterVec
}

var _ tokenfence.Observer = (*Prometheus)(nil)

// NewPrometheus registers the tokenfence collectors on registry. A nil
// registry gets a fresh one.
func NewPrometheus(registry *prometheus.Registry) *Prometheus {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Prometheus{
		registry: registry,

		accepted: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tokenfence_window_accepted_tokens",
				Help: "Tokens granted in the last finished window",
			},
			[]string{"limiter"},
		),

		incoming: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tokenfence_window_incoming_calls",
				Help: "Accept calls seen in the last finished window",
			},
			[]string{"limiter"},
		),

		averageTime: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tokenfence_window_average_time_milliseconds",
				Help: "Average recorded time per accepted token in the last finished window",
			},
			[]string{"limiter"},
		),

		limit: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tokenfence_window_limit_tokens",
				Help: "Per-window token cap",
			},
			[]string{"limiter"},
		),

		rollovers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenfence_window_rollovers_total",
				Help: "Total number of finished interval windows",
			},
			[]string{"limiter"},
		),
	}
}

// Observe updates the gauges for name.
func (p *Prometheus) Observe(name string, stat tokenfence.Stat) {
	p.accepted.WithLabelValues(name).Set(float64(stat.Accepted))
	p.incoming.WithLabelValues(name).Set(float64(stat.Incoming))
	p.averageTime.WithLabelValues(name).Set(float64(stat.AverageTimeMs))
	p.limit.WithLabelValues(name).Set(float64(stat.Limit))
	p.rollovers.WithLabelValues(name).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
