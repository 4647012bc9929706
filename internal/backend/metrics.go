package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	callDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solverd_backend_call_duration_seconds",
		Help:    "Duration of backend invocations including retries",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"provider", "outcome"})
)

func init() {
	prometheus.MustRegister(callDuration)
}

// observeCall records one completed invocation.
func observeCall(provider string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	callDuration.WithLabelValues(provider, outcome).Observe(time.Since(start).Seconds())
}
