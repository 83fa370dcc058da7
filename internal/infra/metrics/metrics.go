// Package metrics exports session controller activity to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/session/state"
)

// Collector implements session.Observer.
type Collector struct {
	registry *prometheus.Registry

	commands    *prometheus.CounterVec
	transitions *prometheus.HistogramVec
	statuses    *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry. Go runtime and
// process collectors are registered alongside the session metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "memo_commands_total", Help: "Commands handled by the session controller"},
			[]string{"command", "accepted", "code"},
		),
		transitions: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memo_transition_duration_seconds",
				Help:    "Recording transition time",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"transition", "outcome"},
		),
		statuses: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "memo_device_statuses_total", Help: "Status callbacks received from the audio device"},
			[]string{"resource", "dropped"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "memo_failures_total", Help: "Failures reported to clients"},
			[]string{"kind"},
		),
	}
	c.registry.MustRegister(
		c.commands, c.transitions, c.statuses, c.failures,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) CommandHandled(cmd guard.Command, result guard.Result) {
	c.commands.WithLabelValues(cmd.String(), strconv.FormatBool(result.Accepted), result.Code).Inc()
}

func (c *Collector) TransitionFinished(name string, outcome string, elapsed time.Duration) {
	c.transitions.WithLabelValues(name, outcome).Observe(elapsed.Seconds())
}

func (c *Collector) StatusReceived(kind state.ResourceKind, dropped bool) {
	c.statuses.WithLabelValues(string(kind), strconv.FormatBool(dropped)).Inc()
}

func (c *Collector) FailureReported(kind state.FailureKind) {
	c.failures.WithLabelValues(string(kind)).Inc()
}
