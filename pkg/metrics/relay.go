package metrics

import (
	"context"

	prom "github.com/prometheus/client_golang/prometheus"
)

var (
	relayProcessed = prom.NewCounterVec(
		prom.CounterOpts{
			Name: "outbox_relay_total",
			Help: "Outbox events handled by the relay",
		},
		[]string{"result"},
	)
	relayDuration = prom.NewHistogram(
		prom.HistogramOpts{
			Name:    "outbox_relay_duration_seconds",
			Help:    "Outbox event publish duration",
			Buckets: prom.DefBuckets,
		},
	)
)

func init() {
	prom.MustRegister(relayProcessed, relayDuration)
}

func RelayObserver(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		timer := prom.NewTimer(relayDuration)
		err := fn(ctx)
		timer.ObserveDuration()
		result := "published"
		if err != nil {
			result = "error"
		}
		relayProcessed.WithLabelValues(result).Inc()
		return err
	}
}
