// Package health exposes the server's liveness endpoint and Prometheus
// counters over HTTP. It is optional: a Config with HealthCheckPort unset
// runs the UDP server with no HTTP surface at all.
package health

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters are the two running totals original_source's status line logs
// every status_interval: responses sent and malformed datagrams dropped.
type Counters struct {
	ResponsesSent prometheus.Counter
	BadRequests   prometheus.Counter
}

// NewCounters registers the Counters with a fresh registry and returns
// both: the event loop increments ResponsesSent/BadRequests directly, and
// the registry serves their values at /metrics (see Router).
func NewCounters() (*Counters, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	c := &Counters{
		ResponsesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roughtimed_responses_sent_total",
			Help: "Total number of signed responses sent to clients.",
		}),
		BadRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roughtimed_bad_requests_total",
			Help: "Total number of datagrams rejected before reaching the batch.",
		}),
	}
	reg.MustRegister(c.ResponsesSent, c.BadRequests)
	return c, reg
}

// Router builds the HTTP handler for the optional health-check listener:
// a plain 200 at /healthz and a Prometheus scrape endpoint at /metrics.
func Router(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
