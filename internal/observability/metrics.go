// Chat pipeline metrics.
//
// HTTP-level instrumentation lives in the middleware package; the collectors
// here cover the pipeline itself so dashboards can separate traffic shape
// from chat activity. Label cardinality is bounded by construction: sender
// has three values and topic is drawn from the fixed auto-responder table.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// MessagesCreated counts persisted chat messages by sender.
	MessagesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_created_total",
			Help: "Total number of chat messages persisted, by sender.",
		},
		[]string{"sender"},
	)

	// AutoReplies counts delivered auto-replies by matched topic.
	AutoReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_auto_replies_total",
			Help: "Total number of auto-replies delivered, by matched topic.",
		},
		[]string{"topic"},
	)

	// FeedSubscribers gauges currently connected live-feed subscribers.
	FeedSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_feed_subscribers",
			Help: "Current number of live message feed subscribers.",
		},
	)

	// AttachmentBytes totals the bytes of successfully stored attachments.
	AttachmentBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_attachment_bytes_total",
			Help: "Total bytes of attachments written to blob storage.",
		},
	)
)

func init() {
	prometheus.MustRegister(MessagesCreated, AutoReplies, FeedSubscribers, AttachmentBytes)
}
