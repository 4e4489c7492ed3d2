// Package metrics holds the Prometheus collectors of the party room server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignalConnections is the gauge of open signal WebSockets.
	SignalConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "partyroom_signal_connections",
		Help: "Number of open signal WebSocket connections",
	})

	// RoomMembers is the gauge of users admitted to the room.
	RoomMembers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "partyroom_room_members",
		Help: "Number of users currently in the room",
	})

	// Intents counts client intents by type and outcome.
	Intents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partyroom_intents_total",
		Help: "Client intents handled, by type and result",
	}, []string{"type", "result"})

	// GiftsSent counts successful gifts by gift id.
	GiftsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partyroom_gifts_sent_total",
		Help: "Gifts sent, by gift id",
	}, []string{"gift"})

	// CoinsSpent sums the cost of all gifts sent.
	CoinsSpent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partyroom_coins_spent_total",
		Help: "Total coins spent on gifts",
	})

	// RoomEvents counts state-change events fanned out to clients.
	RoomEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partyroom_room_events_total",
		Help: "Room state-change events, by kind",
	}, []string{"kind"})

	// BackpressureDrops counts frames a slow connection could not take.
	BackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partyroom_backpressure_drops_total",
		Help: "Frames dropped due to backpressure, by frame kind and action",
	}, []string{"frame", "action"})

	// LiveStatus is 1 for the current live co-host connection status, 0 for the others.
	LiveStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "partyroom_live_status",
		Help: "Live co-host connection status",
	}, []string{"status"})

	// LiveAudioBytes counts PCM bytes exchanged with the live model.
	LiveAudioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partyroom_live_audio_bytes_total",
		Help: "PCM bytes streamed to and from the live model",
	}, []string{"direction"})

	// EventPublishErrors counts failures of the Redis event bridge.
	EventPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partyroom_event_publish_errors_total",
		Help: "Room events that failed to publish to Redis",
	})
)

var statuses = []string{"disconnected", "connecting", "connected", "error"}

// SetLiveStatus marks status as the current one.
func SetLiveStatus(status string) {
	for _, s := range statuses {
		v := 0.0
		if s == status {
			v = 1
		}
		LiveStatus.WithLabelValues(s).Set(v)
	}
}

func RecordIntent(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	Intents.WithLabelValues(kind, result).Inc()
}
