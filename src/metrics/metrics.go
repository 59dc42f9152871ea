package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signal_hub"

// Delivery results recorded by the hub per connection and broadcast.
const (
	DeliverySent     = "sent"
	DeliveryFiltered = "filtered"
	DeliveryDropped  = "dropped"
)

var (
	HubConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "ws_connections", Help: "Open websocket connections"},
	)
	BroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "broadcasts_total", Help: "Broadcast messages handled by the hub"},
		[]string{"type"},
	)
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "deliveries_total", Help: "Per-connection broadcast outcomes"},
		[]string{"result"},
	)
	ControlMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "control_messages_total", Help: "Client control frames by type"},
		[]string{"type"},
	)
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ingest_total", Help: "Ingest requests by kind and result"},
		[]string{"kind", "result"},
	)
	NotifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "notify_failures_total", Help: "Hub notifications that could not be delivered"},
	)
)

func init() {
	prometheus.MustRegister(
		HubConnections,
		BroadcastsTotal,
		DeliveriesTotal,
		ControlMessagesTotal,
		IngestTotal,
		NotifyFailuresTotal,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
