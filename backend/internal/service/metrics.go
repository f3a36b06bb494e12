package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

var authEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "crmportal",
		Name:      "auth_events_total",
		Help:      "Auth operations by outcome",
	},
	[]string{"operation", "outcome"},
)

func recordEvent(operation, outcome string) {
	authEventsTotal.WithLabelValues(operation, outcome).Inc()
}
