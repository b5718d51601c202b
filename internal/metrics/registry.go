package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Default records into prometheus.DefaultRegisterer. The CLI uses it;
	// servers and tests build their own registry with NewRegistry.
	Default *Metrics
	once    sync.Once
)

// InitDefault registers the default metrics once
func InitDefault() *Metrics {
	once.Do(func() {
		Default = NewMetrics(prometheus.DefaultRegisterer)
	})
	return Default
}

// GetDefault returns the default metrics, registering them on first use
func GetDefault() *Metrics {
	return InitDefault()
}

// NewRegistry returns a private registry with a fresh set of metrics, so
// several servers in one process never collide on registration.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return reg, NewMetrics(reg)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves reg. Gather errors are reported in the response body
// rather than failing the scrape.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}
