// Package metrics counts transfer outcomes. The launcher is not a server, so
// instead of an HTTP endpoint the counters are written to a node_exporter
// style textfile after each run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Transfers struct {
	registry *prometheus.Registry
	objects  *prometheus.CounterVec
	bytes    prometheus.Counter
	batches  prometheus.Counter
}

func New() *Transfers {
	t := &Transfers{
		registry: prometheus.NewRegistry(),
		objects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patchr",
			Name:      "objects_total",
			Help:      "Objects transferred from the remote store, by outcome.",
		}, []string{"status"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "patchr",
			Name:      "bytes_total",
			Help:      "Bytes written to the install root.",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "patchr",
			Name:      "batches_total",
			Help:      "Download batches started.",
		}),
	}
	t.registry.MustRegister(t.objects, t.bytes, t.batches)
	return t
}

// The methods below are safe on a nil receiver so callers can skip metrics.

func (t *Transfers) ObjectDone(bytes int64) {
	if t == nil {
		return
	}
	t.objects.WithLabelValues("done").Inc()
	t.bytes.Add(float64(bytes))
}

func (t *Transfers) ObjectFailed() {
	if t == nil {
		return
	}
	t.objects.WithLabelValues("failed").Inc()
}

func (t *Transfers) BatchStarted() {
	if t == nil {
		return
	}
	t.batches.Inc()
}

// WriteFile dumps the counters in text exposition format.
func (t *Transfers) WriteFile(path string) error {
	if t == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, t.registry)
}
