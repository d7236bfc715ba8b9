package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublished tracks delivered events by channel (company/global)
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_events_published_total",
		Help: "Total number of events delivered to a channel after commit",
	}, []string{"channel"})

	// EventsDropped counts events discarded before delivery
	// Labels: reason (rollback, resolver_error)
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_events_dropped_total",
		Help: "Total number of events discarded before delivery",
	}, []string{"reason"})

	// ListenerFailures counts in-process listeners that returned an error or panicked
	ListenerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backend_event_listener_failures_total",
		Help: "Total number of event listener invocations that failed",
	})

	// PushDeliveries tracks per-subscriber push attempts by outcome
	PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_push_deliveries_total",
		Help: "Total number of per-subscriber push delivery attempts",
	}, []string{"status"})

	// NotifyJobsDropped counts jobs rejected because the dispatcher queue was full
	NotifyJobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backend_notify_jobs_dropped_total",
		Help: "Total number of notification jobs dropped on a full queue",
	})

	// NotifyQueueDepth is the current number of queued notification jobs
	NotifyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_notify_queue_depth",
		Help: "Current number of notification jobs waiting for a worker",
	})

	// EmailsSent tracks institutional email attempts by outcome
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_emails_sent_total",
		Help: "Total number of institutional email send attempts",
	}, []string{"status"})

	// ImportRows tracks per-row import outcomes
	ImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_import_rows_total",
		Help: "Total number of import rows by terminal status",
	}, []string{"status"})

	// ImportJobs tracks finished import batches by terminal state
	ImportJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_import_jobs_total",
		Help: "Total number of import jobs by terminal state",
	}, []string{"state"})

	// ImportDuration measures wall-clock time of a whole import batch
	ImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backend_import_duration_seconds",
		Help:    "Duration of import batches in seconds",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 100, 120},
	})

	// ImportBatchSize tracks the number of rows read per batch
	ImportBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backend_import_batch_size",
		Help:    "Number of rows read per import batch",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
	})

	// BrokerHealth provides a binary 0/1 signal for the notification broker link
	BrokerHealth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_broker_healthy",
		Help: "Current health of the notification broker link (1 healthy, 0 down)",
	})

	// BrokerReconnections counts how many times the broker link was restored
	BrokerReconnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backend_broker_reconnections_total",
		Help: "Total number of notification broker reconnection attempts",
	})
)
