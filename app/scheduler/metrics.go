package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Initial messages generated and queued
	messagesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autopilot_messages_generated_total",
			Help: "Initial outreach messages generated and queued",
		},
	)

	// Drain outcomes: sent, failed, bounced, unsubscribed, skipped
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_deliveries_total",
			Help: "Queued messages processed by the drain, by outcome",
		},
		[]string{"outcome"},
	)

	identityExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autopilot_identity_exhausted_total",
			Help: "Drains halted because no sending identity had quota left",
		},
	)

	campaignRunsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_campaign_runs_skipped_total",
			Help: "Campaign runs that did no work, by reason",
		},
		[]string{"reason"},
	)

	collaboratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopilot_collaborator_call_duration_seconds",
			Help:    "Latency of ranking, generation and delivery calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collaborator", "result"},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
