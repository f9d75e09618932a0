// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkflowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskflow",
		Name:      "workflow_transitions_total",
		Help:      "Committed task and bug state changes.",
	}, []string{"entity", "action"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskflow",
		Name:      "notifications_created_total",
		Help:      "Notifications appended to feeds.",
	}, []string{"type"})

	OutboxDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskflow",
		Name:      "outbox_deliveries_total",
		Help:      "Outbox deliveries by kind and result (sent, failed, deferred).",
	}, []string{"kind", "result"})

	RealtimeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskflow",
		Name:      "realtime_clients",
		Help:      "Open notification stream connections.",
	})
)

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
