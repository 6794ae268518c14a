package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "ransomware_detector"

// Metrics holds the collectors of one service instance. Each instance uses its
// own registry so tests can create services side by side.
type Metrics struct {
	Registry *prometheus.Registry

	Scans         *prometheus.CounterVec
	Verdicts      *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
	InFlight      prometheus.Gauge
	InferenceTime prometheus.Histogram
	UploadedBytes prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Submitted scans by outcome status.",
		}, []string{"status"}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Successful predictions by verdict.",
		}, []string{"verdict"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Verdict cache lookups by result.",
		}, []string{"result"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inference_in_flight",
			Help:      "Calls to the inference service currently in flight.",
		}),
		InferenceTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Duration of calls to the inference service.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		UploadedBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Size of submitted files.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
	m.Registry.MustRegister(
		m.Scans,
		m.Verdicts,
		m.CacheLookups,
		m.InFlight,
		m.InferenceTime,
		m.UploadedBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
