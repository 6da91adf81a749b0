package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total failed emails",
		},
	)

	PollTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_ticks_total",
			Help: "Total poll ticks executed",
		},
	)

	TasksCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasks_completed_total",
			Help: "Total tasks that reached SENT",
		},
	)

	TaskFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "task_failures_total",
			Help: "Total tasks that reached ERROR",
		},
	)
)

func Init() {
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(PollTicks)
	prometheus.MustRegister(TasksCompleted)
	prometheus.MustRegister(TaskFailures)
}
