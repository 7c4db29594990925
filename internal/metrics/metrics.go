// Package metrics counts per-run outcomes of the image pipeline so that
// excluded and failed images are never silent. Counters live on a private
// registry and can be written in the node-exporter textfile format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the run counters.
type Recorder struct {
	registry  *prometheus.Registry
	processed prometheus.Counter
	retained  prometheus.Counter
	excluded  *prometheus.CounterVec
	failed    prometheus.Counter
}

// New registers a fresh set of counters.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog_prep",
			Name:      "images_processed_total",
			Help:      "Source images visited by the cleaning pipeline.",
		}),
		retained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog_prep",
			Name:      "images_retained_total",
			Help:      "Images written to the manifest.",
		}),
		excluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog_prep",
			Name:      "images_excluded_total",
			Help:      "Images dropped because their label did not resolve.",
		}, []string{"reason"}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog_prep",
			Name:      "images_failed_total",
			Help:      "Images that could not be read or transformed.",
		}),
	}
	r.registry.MustRegister(r.processed, r.retained, r.excluded, r.failed)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Processed counts one source image taken from the directory.
func (r *Recorder) Processed() {
	r.processed.Inc()
}

// Retained counts one image written and added to the manifest.
func (r *Recorder) Retained() {
	r.retained.Inc()
}

// Failed counts one image that could not be processed.
func (r *Recorder) Failed() {
	r.failed.Inc()
}

// Excluded counts one image dropped for an unresolved label, keyed by reason.
func (r *Recorder) Excluded(reason string) {
	r.excluded.WithLabelValues(reason).Inc()
}

// WriteTextfile writes all counters to path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
