package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

var (
	dispatches = prom.NewCounterVec(
		prom.CounterOpts{
			Name: "sms_dispatch_total",
			Help: "Bulk dispatches by final history status",
		},
		[]string{"status"},
	)
	recipients = prom.NewCounterVec(
		prom.CounterOpts{
			Name: "sms_recipients_total",
			Help: "Recipients attempted by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prom.MustRegister(dispatches, recipients)
}

func DispatchFinished(status string) {
	dispatches.WithLabelValues(status).Inc()
}

func RecipientAttempted(outcome string) {
	recipients.WithLabelValues(outcome).Inc()
}
