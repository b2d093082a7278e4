package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_submitted_total",
		Help: "Total number of jobs submitted",
	})
	JobsInProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_in_progress",
		Help: "Number of jobs currently running",
	})
	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_completed_total",
		Help: "Total number of jobs reaching a terminal state, by status",
	}, []string{"status"})
	CommandsExecutedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commands_executed_total",
		Help: "Total number of commands with a final log, by status",
	}, []string{"status"})
	CommandDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "command_duration_seconds",
		Help:    "Wall-clock duration of executed commands",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})
)

func init() {
	prometheus.MustRegister(JobsSubmittedTotal, JobsInProgress, JobsCompletedTotal, CommandsExecutedTotal, CommandDuration)
}
