package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	once      sync.Once
	collected []prometheus.Collector
	registry  = prometheus.NewRegistry()
)

// register is called from init() in each metrics file.
func register(cs ...prometheus.Collector) {
	collected = append(collected, cs...)
}

// MustRegister adds the bot collectors plus the Go runtime and process
// collectors to the bot registry. Later calls are no-ops.
func MustRegister() {
	once.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry.MustRegister(collected...)
	})
}

// Registry is what /metrics serves.
func Registry() *prometheus.Registry { return registry }
