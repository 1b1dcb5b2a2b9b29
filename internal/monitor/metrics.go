package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transferbot_polls_total",
		Help: "Feed polls by outcome.",
	}, []string{"feed", "status"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transferbot_notifications_total",
		Help: "Transfer notifications by delivery kind (card, fallback, failed).",
	}, []string{"feed", "kind"})

	cursorGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transferbot_cursor",
		Help: "Highest transfer id announced per feed.",
	}, []string{"feed"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transferbot_cycle_duration_seconds",
		Help:    "Wall time of one monitoring cycle.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
)
