package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Classification results.
const (
	ResultMatched       = "matched"
	ResultUnknown       = "unknown"
	ResultAutoResponder = "auto_responder"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bouncecsv_messages_processed_total",
			Help: "Total number of bounce messages turned into records",
		},
		[]string{"code"},
	)

	MessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bouncecsv_messages_failed_total",
			Help: "Total number of messages that could not be loaded",
		},
		[]string{"kind"},
	)

	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bouncecsv_classification_total",
			Help: "Classification outcomes by result",
		},
		[]string{"result"},
	)

	RecipientUnresolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bouncecsv_recipient_unresolved_total",
			Help: "Records written without a recipient address",
		},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bouncecsv_batch_duration_seconds",
			Help:    "Duration of batch runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	IntakeMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bouncecsv_intake_messages_total",
			Help: "Messages received by the intake listeners",
		},
		[]string{"transport", "status"},
	)
)
