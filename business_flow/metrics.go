package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Send tasks handed to the queue
	sendTasksEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smsflow_send_tasks_enqueued_total",
			Help: "Total number of per-contact send tasks enqueued",
		},
	)

	// Terminal contact outcomes partitioned by sent/failed
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsflow_messages_total",
			Help: "Total number of campaign messages by outcome",
		},
		[]string{"outcome"},
	)

	// Replies attributed to a campaign contact
	repliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smsflow_replies_total",
			Help: "Total number of inbound replies correlated to a campaign contact",
		},
	)

	// Campaign starts partitioned by manual/scheduled/recovery
	campaignsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsflow_campaigns_started_total",
			Help: "Total number of campaigns moved to running",
		},
		[]string{"trigger"},
	)
)

const (
	triggerManual    = "manual"
	triggerScheduled = "scheduled"
	triggerRecovery  = "recovery"
)
