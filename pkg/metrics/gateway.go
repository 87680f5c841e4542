package metrics

import (
	"context"

	prom "github.com/prometheus/client_golang/prometheus"
)

var (
	gatewayCalls = prom.NewCounterVec(
		prom.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Count of SMS gateway calls",
		},
		[]string{"result"},
	)
	gatewayDuration = prom.NewHistogram(
		prom.HistogramOpts{
			Name:    "gateway_duration_seconds",
			Help:    "Duration of SMS gateway calls",
			Buckets: prom.DefBuckets,
		},
	)
)

func init() {
	prom.MustRegister(gatewayCalls, gatewayDuration)
}

func GatewayObserver(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		timer := prom.NewTimer(gatewayDuration)
		err := fn(ctx)
		timer.ObserveDuration()
		result := "success"
		if err != nil {
			result = "error"
		}
		gatewayCalls.WithLabelValues(result).Inc()
		return err
	}
}
