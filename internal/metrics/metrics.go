// Package metrics defines the Prometheus collectors exported by melo-api.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "melo"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// modelLoadsTotal counts engine load attempts per language.
	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Total number of voice model load attempts",
		},
		[]string{"language", "status"},
	)

	// modelLoadDuration is a histogram of model load time, downloads included.
	modelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_load_duration_seconds",
			Help:      "Duration of voice model loads in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"language"},
	)

	// modelsLoaded is the number of models currently cached.
	modelsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models_loaded",
			Help:      "Number of voice models held in the cache",
		},
	)

	// synthesisDuration is a histogram of engine synthesis time.
	synthesisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Duration of speech synthesis calls in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"language", "status"},
	)

	// synthesisBytes counts WAV bytes returned to callers.
	synthesisBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_output_bytes_total",
			Help:      "Total WAV bytes produced by synthesis",
		},
		[]string{"language"},
	)

	// speakerFallbacksTotal counts requests whose speaker was substituted.
	speakerFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speaker_fallbacks_total",
			Help:      "Requests served with a substitute speaker",
		},
		[]string{"language"},
	)

	// warmupsTotal counts warmup syntheses.
	warmupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warmups_total",
			Help:      "Warmup synthesis attempts",
		},
		[]string{"language", "status"},
	)

	allMetrics = []prometheus.Collector{
		modelLoadsTotal,
		modelLoadDuration,
		modelsLoaded,
		synthesisDuration,
		synthesisBytes,
		speakerFallbacksTotal,
		warmupsTotal,
	}
)

// NewRegistry returns a registry holding every melo-api collector plus the
// Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordModelLoad records one load attempt.
func RecordModelLoad(language string, d time.Duration, err error) {
	modelLoadsTotal.WithLabelValues(language, status(err)).Inc()
	if err == nil {
		modelLoadDuration.WithLabelValues(language).Observe(d.Seconds())
	}
}

// SetModelsLoaded sets the number of cached models.
func SetModelsLoaded(n int) {
	modelsLoaded.Set(float64(n))
}

// RecordSynthesis records one synthesis call and its output size.
func RecordSynthesis(language string, d time.Duration, outputBytes int, err error) {
	synthesisDuration.WithLabelValues(language, status(err)).Observe(d.Seconds())
	if err == nil {
		synthesisBytes.WithLabelValues(language).Add(float64(outputBytes))
	}
}

// RecordSpeakerFallback counts a silent speaker substitution.
func RecordSpeakerFallback(language string) {
	speakerFallbacksTotal.WithLabelValues(language).Inc()
}

// RecordWarmup records one warmup synthesis.
func RecordWarmup(language string, err error) {
	warmupsTotal.WithLabelValues(language, status(err)).Inc()
}
