package email

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSent     = "sent"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected" // circuit open
)

var emailSendTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "crmportal",
		Name:      "email_send_total",
		Help:      "Email deliveries by provider and outcome",
	},
	[]string{"provider", "outcome"},
)
