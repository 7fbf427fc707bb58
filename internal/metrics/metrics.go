// Package metrics registers the service's Prometheus instruments. Everything
// is promauto-registered on the default registry and exposed via /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveRooms is the number of rooms currently resident in the registry,
	// including empty rooms awaiting the idle sweep.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashcollab_active_rooms",
		Help: "Number of rooms currently held by the registry",
	})

	// ConnectedClients counts registered websocket connections, joined or not.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashcollab_connected_clients",
		Help: "Number of connected websocket clients",
	})

	// EventsRelayed counts collaboration events fanned out, by event type.
	EventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashcollab_events_relayed_total",
		Help: "Total collaboration events relayed to room members",
	}, []string{"type"})

	// StateMerges counts dashboard state patches merged into room state.
	StateMerges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashcollab_state_merges_total",
		Help: "Total dashboard state patches merged",
	})

	// DroppedMessages counts outbound frames dropped because a client's send
	// buffer was full. Delivery is best effort, so these are not errors.
	DroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashcollab_dropped_messages_total",
		Help: "Total outbound messages dropped due to full client buffers",
	})

	// SweptRooms counts rooms deleted by the idle sweeper.
	SweptRooms = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashcollab_swept_rooms_total",
		Help: "Total idle rooms evicted by the sweeper",
	})

	// RejectedMessages counts inbound frames dropped at the transport
	// boundary, by reason.
	RejectedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashcollab_rejected_messages_total",
		Help: "Total inbound messages rejected at the boundary",
	}, []string{"reason"})
)
