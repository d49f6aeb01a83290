// Package metrics defines the Prometheus collectors of the allocation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BidsTotal counts bid attempts by result: accepted, invalid, superseded, closed, error.
	BidsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "estatesale",
		Name:      "bids_total",
		Help:      "Bid attempts by result.",
	}, []string{"result"})

	// SettlementsTotal counts settled auctions by outcome: sold, unsold, skipped, failed.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "estatesale",
		Name:      "settlements_total",
		Help:      "Auction settlements by outcome.",
	}, []string{"outcome"})

	// SweepDuration observes the wall time of a settlement sweep.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "estatesale",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of settlement sweeps.",
		Buckets:   prometheus.DefBuckets,
	})

	// LineTransitionsTotal counts line entry transitions by target status.
	LineTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "estatesale",
		Name:      "line_transitions_total",
		Help:      "Line entry transitions by target status.",
	}, []string{"status"})

	// NotificationsTotal counts notification outcomes: delivered, failed.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "estatesale",
		Name:      "notifications_total",
		Help:      "Notification attempts by outcome.",
	}, []string{"outcome"})

	// EventsTotal counts published domain events by outcome: published, failed.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "estatesale",
		Name:      "events_total",
		Help:      "Domain events by outcome.",
	}, []string{"outcome"})

	// RPCsTotal counts Connect calls by procedure and code.
	RPCsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "estatesale",
		Name:      "rpcs_total",
		Help:      "Connect RPCs by procedure and code.",
	}, []string{"procedure", "code"})
)
