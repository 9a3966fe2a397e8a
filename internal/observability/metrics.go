package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_sharing", Name: "rides_created_total", Help: "Total rides posted by drivers"})
	Cancellations = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_sharing", Name: "booking_cancellations_total", Help: "Total bookings cancelled by passengers"})
	RatingsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_sharing", Name: "ratings_total", Help: "Total ratings submitted"})
	SeatsBooked   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_sharing", Name: "seats_booked_total", Help: "Total seats reserved by confirmed bookings"})

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_sharing", Name: "bookings_total", Help: "Booking attempts by result"},
		[]string{"result"},
	)
	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_sharing", Name: "event_publish_failures_total", Help: "Domain events that could not be published"},
		[]string{"type"},
	)
	SearchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "ride_sharing", Name: "search_latency_seconds", Help: "Ride search latency seconds"})
	FeedClients   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_sharing", Name: "feed_clients", Help: "Connected ride feed websocket clients"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_sharing", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_sharing",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
