package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schedulerTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smsflow_scheduler_triggered_total",
		Help: "Scheduled campaigns started by the scheduler",
	})

	sendTaskRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smsflow_send_task_retries_total",
		Help: "Send task attempts beyond the first",
	})

	sendTasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsflow_send_tasks_processed_total",
		Help: "Send tasks handled by workers, by result",
	}, []string{"result"})
)
