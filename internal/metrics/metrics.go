package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spendbot_messages_total",
		Help: "Total number of chat messages processed, labelled by outcome.",
	}, []string{"outcome"})

	ProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spendbot_process_duration_seconds",
		Help:    "Latency of the message ingestion pipeline.",
		Buckets: prometheus.DefBuckets,
	})

	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spendbot_reports_total",
		Help: "Total number of daily summaries posted, labelled by trigger.",
	}, []string{"trigger"})

	ReportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spendbot_report_failures_total",
		Help: "Total number of daily summaries that could not be delivered.",
	})

	MirroredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spendbot_mirrored_total",
		Help: "Total number of spends mirrored to the spreadsheet, labelled by status.",
	}, []string{"status"})
)
